package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"orderdesk/internal/service/order/application"
	"orderdesk/internal/service/order/domain"
)

type fakeOrderService struct {
	submitted *application.CreateOrderRequest
	orders    map[string]*domain.Order
	err       error
}

func (f *fakeOrderService) SubmitOrder(_ context.Context, req *application.CreateOrderRequest) (*domain.Order, error) {
	f.submitted = req
	if f.err != nil {
		return nil, f.err
	}
	return domain.NewOrder("11111111-2222-3333-4444-555555555555", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), req.ToOrderSpec())
}

func (f *fakeOrderService) GetOrder(_ context.Context, id string) (*domain.Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func newTestRouter(svc *fakeOrderService) http.Handler {
	return NewRouter(NewOrderHandler(svc, nil, prometheus.NewRegistry()), nil)
}

func TestCreateOrder(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantDetail string
		wantPrice  any
	}{
		{
			name:       "market order accepted",
			body:       `{"type":"market","side":"buy","instrument":"TEST12345678","quantity":10}`,
			wantStatus: http.StatusCreated,
			wantPrice:  nil,
		},
		{
			name:       "limit order accepted",
			body:       `{"type":"limit","side":"sell","instrument":"TEST12345678","limit_price":10.5,"quantity":1}`,
			wantStatus: http.StatusCreated,
			wantPrice:  "10.50",
		},
		{
			name:       "limit order without price",
			body:       `{"type":"limit","side":"buy","instrument":"TEST12345678","quantity":1}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantDetail: "Limit orders require limit_price",
		},
		{
			name:       "malformed json",
			body:       `{"type":`,
			wantStatus: http.StatusUnprocessableEntity,
			wantDetail: "Invalid request body",
		},
		{
			name:       "wrong field type",
			body:       `{"type":"market","side":"buy","instrument":"TEST12345678","quantity":"ten"}`,
			wantStatus: http.StatusUnprocessableEntity,
			wantDetail: "Invalid request body",
		},
		{
			name:       "store failure",
			body:       `{"type":"market","side":"buy","instrument":"TEST12345678","quantity":1}`,
			svcErr:     errors.New("create order: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeOrderService{err: tt.svcErr}
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			newTestRouter(svc).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("response is not json: %v", err)
			}
			if tt.wantDetail != "" {
				detail, _ := body["detail"].(string)
				if !strings.Contains(detail, tt.wantDetail) {
					t.Fatalf("detail = %q, want it to contain %q", detail, tt.wantDetail)
				}
				if strings.Contains(detail, "connection refused") {
					t.Fatal("internal diagnostic leaked to the caller")
				}
				return
			}
			if body["status"] != "pending" || body["id"] == "" {
				t.Errorf("body = %v", body)
			}
			if body["limit_price"] != tt.wantPrice {
				t.Errorf("limit_price = %v, want %v", body["limit_price"], tt.wantPrice)
			}
			if _, ok := body["error_message"]; ok {
				t.Errorf("pending order should not carry error_message")
			}
		})
	}
}

func TestGetOrder(t *testing.T) {
	failed := &domain.Order{
		ID: "o-1", Type: domain.TypeMarket, Side: domain.SideSell, Instrument: "TEST12345678",
		Quantity: 3, Status: domain.StatusFailed, ErrorMessage: "venue rejected",
	}
	svc := &fakeOrderService{orders: map[string]*domain.Order{"o-1": failed}}
	router := newTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/o-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp application.OrderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != domain.StatusFailed || resp.ErrorMessage != "venue rejected" {
		t.Fatalf("resp = %+v", resp)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing order status = %d, want 404", rec.Code)
	}
}

func TestOperationalRoutes(t *testing.T) {
	router := newTestRouter(&fakeOrderService{})

	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/orders/o-1", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE status = %d, want 405", rec.Code)
	}
}
