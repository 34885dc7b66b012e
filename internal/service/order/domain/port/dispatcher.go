package port

import (
	"context"
	"errors"
)

var (
	ErrDispatchQueueFull = errors.New("placement queue is full")
	ErrDispatcherClosed  = errors.New("placement dispatcher is closed")
)

// PlacementDispatcher 把已落库的订单交给异步下单流水线。
// Dispatch 不等待下单结果；返回 nil 只代表任务已被接收，不保证一定会被执行。
type PlacementDispatcher interface {
	Dispatch(ctx context.Context, orderID string) error
}

// PlacementProcessor 由生命周期引擎实现，供 dispatcher 的消费端调用
type PlacementProcessor interface {
	Process(ctx context.Context, orderID string)
}
