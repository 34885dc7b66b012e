package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"orderdesk/internal/pkg/httpclient"
	"orderdesk/internal/service/order/domain"
)

// HTTPVenue 通过 HTTP 把订单提交给外部交易场所
type HTTPVenue struct {
	client  *httpclient.Client
	resolve func() (string, error)
}

// ServiceDiscoverer 按服务名返回一个健康实例，nacos.Client 实现了它
type ServiceDiscoverer interface {
	DiscoverServiceInstance(serviceName string) (string, int, error)
}

// NewHTTPVenue 使用固定地址
func NewHTTPVenue(client *httpclient.Client, url string) *HTTPVenue {
	return &HTTPVenue{client: client, resolve: func() (string, error) { return url, nil }}
}

// NewDiscoveredHTTPVenue 每次下单前通过注册中心选择一个交易场所实例
func NewDiscoveredHTTPVenue(client *httpclient.Client, discoverer ServiceDiscoverer, serviceName, path string) *HTTPVenue {
	return &HTTPVenue{client: client, resolve: func() (string, error) {
		ip, port, err := discoverer.DiscoverServiceInstance(serviceName)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("http://%s:%d%s", ip, port, path), nil
	}}
}

type venueOrderRequest struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Type       string    `json:"type"`
	Side       string    `json:"side"`
	Instrument string    `json:"instrument"`
	LimitPrice *string   `json:"limit_price"`
	Quantity   int64     `json:"quantity"`
}

type venueRejection struct {
	Reason string `json:"reason"`
}

func (v *HTTPVenue) Place(ctx context.Context, order *domain.Order) error {
	req := venueOrderRequest{
		ID:         order.ID,
		CreatedAt:  order.CreatedAt,
		Type:       string(order.Type),
		Side:       string(order.Side),
		Instrument: order.Instrument,
		Quantity:   order.Quantity,
	}
	if order.LimitPrice.Valid {
		p := order.LimitPrice.Decimal.StringFixed(domain.PriceScale)
		req.LimitPrice = &p
	}

	url, err := v.resolve()
	if err != nil {
		return errors.Wrap(err, "resolve venue endpoint")
	}
	resp, err := v.client.PostJSON(ctx, url, req)
	if err != nil {
		return errors.Wrap(err, "venue request failed")
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusConflict,
		resp.StatusCode == http.StatusUnprocessableEntity:
		var rej venueRejection
		if err := json.Unmarshal(resp.Body, &rej); err != nil || rej.Reason == "" {
			return &domain.PlacementError{Reason: "Venue rejected order"}
		}
		return &domain.PlacementError{Reason: rej.Reason}
	default:
		return errors.Errorf("venue returned unexpected status %d", resp.StatusCode)
	}
}
