// internal/service/order/application/service.go
package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/pkg/metrics"
	"orderdesk/internal/service/order/domain"
	"orderdesk/internal/service/order/domain/port"
)

// OrderApplicationService 负责受理订单：校验、落库、投递异步下单任务
type OrderApplicationService struct {
	orderRepo  domain.OrderRepository
	dispatcher port.PlacementDispatcher
	tracer     trace.Tracer
	metrics    *metrics.OrderMetrics

	dispatchTimeout time.Duration
	newID           func() string
	now             func() time.Time
}

func NewOrderApplicationService(orderRepo domain.OrderRepository, dispatcher port.PlacementDispatcher, tracer trace.Tracer, m *metrics.OrderMetrics) *OrderApplicationService {
	if m == nil {
		m = metrics.NewOrderMetrics(nil)
	}
	return &OrderApplicationService{
		orderRepo:  orderRepo,
		dispatcher: dispatcher,
		tracer:     tracer,
		metrics:    m,

		dispatchTimeout: 5 * time.Second,
		newID:           func() string { return uuid.New().String() },
		now:             time.Now,
	}
}

// SubmitOrder 是暴露给接口层（如HTTP Handler）的入口方法。
// 订单先同步落库，成功后才投递给下单流水线；调用方不会等待下单结果。
func (s *OrderApplicationService) SubmitOrder(ctx context.Context, req *CreateOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.SubmitOrder")
	defer span.End()

	order, err := domain.NewOrder(s.newID(), s.now(), req.ToOrderSpec())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "order validation failed")
		return nil, err
	}
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.type", string(order.Type)),
		attribute.String("order.side", string(order.Side)),
		attribute.String("order.instrument", order.Instrument),
	)

	if err := s.orderRepo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save order")
		logger.Ctx(ctx).Error().Err(err).Str("order_id", order.ID).Msg("Order creation failed")
		return nil, errors.Wrap(err, "create order")
	}
	s.metrics.Submitted.WithLabelValues(string(order.Type), string(order.Side)).Inc()
	span.AddEvent("Order saved with pending status.")

	// 订单已落库，投递不再跟随请求的取消（客户端断开不能让订单永远停在 pending）
	dispatchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
	defer cancel()

	// 投递失败不影响已落库的订单：它会保持 pending，等待外部对账
	if err := s.dispatcher.Dispatch(dispatchCtx, order.ID); err != nil {
		s.metrics.DispatchFailure.Inc()
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Str("order_id", order.ID).
			Msg("CRITICAL: order persisted but placement was not scheduled; it will stay pending")
	} else {
		logger.Ctx(ctx).Info().Str("order_id", order.ID).Str("instrument", order.Instrument).
			Msg("Order accepted and scheduled for placement")
	}

	return order, nil
}

// GetOrder 按 id 查询订单当前状态
func (s *OrderApplicationService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	order, err := s.orderRepo.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrOrderNotFound) {
			span.RecordError(err)
		}
		return nil, err
	}
	return order, nil
}
