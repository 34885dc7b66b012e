package adapter

import (
	"context"

	"github.com/pkg/errors"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/service/order/domain/port"
	"orderdesk/internal/zookeeper"
)

// ZookeeperPlacementGuard 用 ZooKeeper 临时顺序节点占用订单。
// 节点随会话消失，持有者崩溃后占用会自动释放。
type ZookeeperPlacementGuard struct {
	conn zookeeper.Conn
}

func NewZookeeperPlacementGuard(conn zookeeper.Conn) *ZookeeperPlacementGuard {
	return &ZookeeperPlacementGuard{conn: conn}
}

func (g *ZookeeperPlacementGuard) Acquire(ctx context.Context, orderID string) (func(), error) {
	lock, err := zookeeper.NewDistributedLock(g.conn, "order-"+orderID)
	if err != nil {
		return nil, err
	}
	if err := lock.TryLock(); err != nil {
		if errors.Is(err, zookeeper.ErrLockHeld) {
			return nil, port.ErrPlacementClaimed
		}
		return nil, err
	}

	return func() {
		if err := lock.Unlock(); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).Msg("failed to release zookeeper placement lock")
		}
	}, nil
}
