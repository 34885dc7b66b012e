// internal/service/order/application/dto.go
package application

import (
	"time"

	"github.com/shopspring/decimal"
	"orderdesk/internal/service/order/domain"
)

// CreateOrderRequest 是创建订单用例的输入数据，字段与 HTTP 请求体一一对应
type CreateOrderRequest struct {
	Type       string           `json:"type"`
	Side       string           `json:"side"`
	Instrument string           `json:"instrument"`
	LimitPrice *decimal.Decimal `json:"limit_price"`
	Quantity   int64            `json:"quantity"`
}

func (req *CreateOrderRequest) ToOrderSpec() domain.OrderSpec {
	return domain.OrderSpec{
		Type:       req.Type,
		Side:       req.Side,
		Instrument: req.Instrument,
		LimitPrice: req.LimitPrice,
		Quantity:   req.Quantity,
	}
}

// OrderResponse 是对外返回的订单记录。limit_price 以两位小数的字符串输出，避免浮点误差。
type OrderResponse struct {
	ID           string        `json:"id"`
	CreatedAt    time.Time     `json:"created_at"`
	Type         string        `json:"type"`
	Side         string        `json:"side"`
	Instrument   string        `json:"instrument"`
	LimitPrice   *string       `json:"limit_price"`
	Quantity     int64         `json:"quantity"`
	Status       domain.Status `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// ToOrderResponse 从领域实体转换为响应 DTO
func ToOrderResponse(o *domain.Order) *OrderResponse {
	resp := &OrderResponse{
		ID:           o.ID,
		CreatedAt:    o.CreatedAt,
		Type:         string(o.Type),
		Side:         string(o.Side),
		Instrument:   o.Instrument,
		Quantity:     o.Quantity,
		Status:       o.Status,
		ErrorMessage: o.ErrorMessage,
	}
	if o.LimitPrice.Valid {
		p := o.LimitPrice.Decimal.StringFixed(domain.PriceScale)
		resp.LimitPrice = &p
	}
	return resp
}
