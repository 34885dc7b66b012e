// internal/service/order/domain/event.go
package domain

import "time"

// OrderPlacementRequested 是订单落库后投递给下单流水线的事件
type OrderPlacementRequested struct {
	OrderID     string    `json:"orderId"`
	TraceID     string    `json:"traceId,omitempty"`
	RequestedAt time.Time `json:"requestedAt"`
}
