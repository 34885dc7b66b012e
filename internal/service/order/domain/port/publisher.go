package port

import (
	"context"
	"orderdesk/internal/service/order/domain"
)

// StatusPublisher 在订单进入终态并成功落库后发布通知
type StatusPublisher interface {
	PublishTerminal(ctx context.Context, order *domain.Order) error
}
