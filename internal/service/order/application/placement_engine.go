// internal/service/order/application/placement_engine.go
package application

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/pkg/metrics"
	"orderdesk/internal/service/order/domain"
	"orderdesk/internal/service/order/domain/port"
)

// PlacementEngine 驱动订单从 pending 到终态的唯一一次流转。
// Process 在后台运行，任何错误都只体现在订单自身的状态上，不会返回给调用方。
type PlacementEngine struct {
	orderRepo         domain.OrderRepository
	venue             port.Venue
	guard             port.PlacementGuard
	publisher         port.StatusPublisher
	placementTimeout  time.Duration
	processingTimeout time.Duration
	commitTimeout     time.Duration
	tracer            trace.Tracer
	metrics           *metrics.OrderMetrics
}

// EngineOption 配置 PlacementEngine 的可选依赖
type EngineOption func(*PlacementEngine)

func WithPlacementGuard(g port.PlacementGuard) EngineOption {
	return func(e *PlacementEngine) { e.guard = g }
}

func WithStatusPublisher(p port.StatusPublisher) EngineOption {
	return func(e *PlacementEngine) { e.publisher = p }
}

func WithTimeouts(placement, processing time.Duration) EngineOption {
	return func(e *PlacementEngine) {
		if placement > 0 {
			e.placementTimeout = placement
		}
		if processing > 0 {
			e.processingTimeout = processing
		}
	}
}

func NewPlacementEngine(orderRepo domain.OrderRepository, venue port.Venue, tracer trace.Tracer, m *metrics.OrderMetrics, opts ...EngineOption) *PlacementEngine {
	e := &PlacementEngine{
		orderRepo:         orderRepo,
		venue:             venue,
		placementTimeout:  10 * time.Second,
		processingTimeout: 30 * time.Second,
		commitTimeout:     5 * time.Second,
		tracer:            tracer,
		metrics:           m,
	}
	if e.metrics == nil {
		e.metrics = metrics.NewOrderMetrics(nil)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process 对一个订单执行一次下单并把终态写回存储。
// 订单不存在、已是终态、或被其他 worker 占用时直接跳过。
func (e *PlacementEngine) Process(ctx context.Context, orderID string) {
	ctx, span := e.tracer.Start(ctx, "engine.Process", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	ctx, cancel := context.WithTimeout(ctx, e.processingTimeout)
	defer cancel()

	log := logger.Ctx(ctx).With().Str("order_id", orderID).Logger()

	// 兜底：存储层或发布端的 panic 也不能打断宿主进程
	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "panic during processing")
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).
				Msg("CRITICAL: order processing panicked; order may remain pending")
		}
	}()

	if e.guard != nil {
		release, err := e.guard.Acquire(ctx, orderID)
		switch {
		case errors.Is(err, port.ErrPlacementClaimed):
			log.Info().Msg("order placement already claimed by another worker, skipping")
			span.AddEvent("placement claimed elsewhere")
			return
		case err != nil:
			log.Warn().Err(err).Msg("placement guard unavailable, processing unguarded")
		default:
			defer release()
		}
	}

	order, err := e.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			log.Error().Msg("order not found in database")
		} else {
			log.Error().Err(err).Msg("failed to load order, leaving it pending")
		}
		span.RecordError(err)
		return
	}

	if order.Status != domain.StatusPending {
		log.Info().Str("status", string(order.Status)).Msg("order already settled, skipping")
		span.AddEvent("idempotent skip")
		return
	}

	e.settle(ctx, order, e.place(ctx, order))

	// 决策已经做出，写回不随上游取消（例如进程关停）而放弃
	commitCtx, cancelCommit := context.WithTimeout(context.WithoutCancel(ctx), e.commitTimeout)
	defer cancelCommit()
	err = e.orderRepo.UpdateStatus(commitCtx, order.ID, order.Status, order.ErrorMessage)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrInvalidTransition):
		log.Info().Msg("order settled concurrently, discarding this outcome")
		return
	default:
		// 已知缺口：终态没有写进去，订单会一直停留在 pending，这里不重试
		e.metrics.CommitFailures.Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "status commit failed")
		log.Error().Err(err).Bool("commit_gap", true).Str("decided_status", string(order.Status)).
			Msg("CRITICAL: failed to commit order status, order remains pending")
		return
	}

	e.metrics.Outcomes.WithLabelValues(string(order.Status)).Inc()

	if e.publisher != nil {
		if err := e.publisher.PublishTerminal(ctx, order); err != nil {
			log.Warn().Err(err).Msg("failed to publish terminal status")
		}
	}
}

// settle 根据下单结果推进状态机
func (e *PlacementEngine) settle(ctx context.Context, order *domain.Order, placeErr error) {
	span := trace.SpanFromContext(ctx)
	log := logger.Ctx(ctx).With().Str("order_id", order.ID).Str("instrument", order.Instrument).Logger()

	var placementErr *domain.PlacementError
	switch {
	case placeErr == nil:
		_ = order.Complete()
		log.Info().Msg("order completed")
	case errors.As(placeErr, &placementErr):
		_ = order.Fail(placementErr.Reason)
		span.AddEvent("placement rejected", trace.WithAttributes(attribute.String("reason", placementErr.Reason)))
		log.Warn().Str("reason", placementErr.Reason).Msg("order failed")
	default:
		_ = order.MarkAsError()
		span.RecordError(placeErr)
		span.SetStatus(codes.Error, "unexpected placement error")
		log.Error().Err(placeErr).Msg("order errored")
	}
	span.SetAttributes(attribute.String("order.status", string(order.Status)))
}

type placeResult struct {
	err error
}

// place 调用交易场所，并保证超时与 panic 都被转换成未建模错误。
// venue 在独立 goroutine 中执行，即使它忽略 ctx 也不会卡住引擎。
func (e *PlacementEngine) place(ctx context.Context, order *domain.Order) error {
	ctx, span := e.tracer.Start(ctx, "venue.Place", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	placeCtx, cancel := context.WithTimeout(ctx, e.placementTimeout)
	defer cancel()

	// 副本在启动 goroutine 之前取好：超时后 settle 会改写 order，venue 只能看到这份快照
	snapshot := order.Clone()
	start := time.Now()
	done := make(chan placeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- placeResult{err: fmt.Errorf("venue panicked: %v", r)}
			}
		}()
		done <- placeResult{err: e.venue.Place(placeCtx, snapshot)}
	}()

	var err error
	select {
	case res := <-done:
		err = res.err
	case <-placeCtx.Done():
		// 引擎施加的超时一律按未建模错误处理
		err = errors.Wrap(placeCtx.Err(), "venue placement timed out")
	}
	e.metrics.PlacementTime.Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
	}
	return err
}
