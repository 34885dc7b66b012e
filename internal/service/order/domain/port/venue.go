package port

import (
	"context"
	"orderdesk/internal/service/order/domain"
)

// Venue 是外部交易场所的出站端口。
// Place 只尝试一次：nil 表示下单成功，*domain.PlacementError 表示业务拒绝，
// 其它任何错误都视为未建模的失败。重试不是 Venue 的职责。
type Venue interface {
	Place(ctx context.Context, order *domain.Order) error
}
