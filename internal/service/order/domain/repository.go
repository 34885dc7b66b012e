// internal/service/order/domain/repository.go
package domain

import "context"

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。每个方法都是一个独立事务，要么全部生效，要么全部回滚。
type OrderRepository interface {
	// Create 保存一个新订单，id 冲突时返回 ErrOrderExists。
	Create(ctx context.Context, order *Order) error

	// FindByID 根据 ID 查找订单，不存在时返回 ErrOrderNotFound。
	FindByID(ctx context.Context, id string) (*Order, error)

	// UpdateStatus 把 pending 订单写成终态。
	// 订单不存在返回 ErrOrderNotFound，已不是 pending 返回 ErrInvalidTransition。
	UpdateStatus(ctx context.Context, id string, status Status, errorMessage string) error
}
