package interfaces

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/service/order/application"
	"orderdesk/internal/service/order/domain"
)

const maxRequestBody = 64 << 10

// orderService 是 handler 依赖的应用层用例
type orderService interface {
	SubmitOrder(ctx context.Context, req *application.CreateOrderRequest) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
}

// OrderHandler 封装了 order 服务的 HTTP 处理器
type OrderHandler struct {
	service  orderService
	hub      *StatusHub
	gatherer prometheus.Gatherer
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例。hub 为 nil 时不提供 websocket 推送。
func NewOrderHandler(service orderService, hub *StatusHub, gatherer prometheus.Gatherer) *OrderHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &OrderHandler{service: service, hub: hub, gatherer: gatherer}
}

// RegisterRoutes 在 router 上注册所有路由
func (h *OrderHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/orders", h.createOrderHandler).Methods(http.MethodPost)
	r.HandleFunc("/orders/{id}", h.getOrderHandler).Methods(http.MethodGet)
	if h.hub != nil {
		r.HandleFunc("/ws/orders", h.hub.ServeWS).Methods(http.MethodGet)
	}
}

// NewRouter 组装路由和 CORS 中间件
func NewRouter(h *OrderHandler, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "traceparent", "baggage"},
	}).Handler(r)
}

func (h *OrderHandler) createOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.CreateOrderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "Invalid request body: "+err.Error())
		return
	}

	order, err := h.service.SubmitOrder(ctx, &req)
	if err != nil {
		var validationErr *domain.ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeDetail(w, http.StatusUnprocessableEntity, validationErr.Message)
		default:
			logger.Ctx(ctx).Error().Err(err).Msg("Error creating order")
			writeDetail(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, application.ToOrderResponse(order))
}

func (h *OrderHandler) getOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	order, err := h.service.GetOrder(ctx, mux.Vars(r)["id"])
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			writeDetail(w, http.StatusNotFound, "Order not found")
		default:
			logger.Ctx(ctx).Error().Err(err).Msg("Error loading order")
			writeDetail(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(w, http.StatusOK, application.ToOrderResponse(order))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
