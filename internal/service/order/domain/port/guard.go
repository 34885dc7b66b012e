package port

import (
	"context"
	"errors"
)

var ErrPlacementClaimed = errors.New("order placement already claimed")

// PlacementGuard 防止同一订单被重复投递时并发下单。
// Acquire 成功后返回释放函数；订单已被其他 worker 占用时返回 ErrPlacementClaimed。
type PlacementGuard interface {
	Acquire(ctx context.Context, orderID string) (release func(), err error)
}
