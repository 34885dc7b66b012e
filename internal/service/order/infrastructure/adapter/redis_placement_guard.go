package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"orderdesk/internal/pkg/logger"
	"orderdesk/internal/service/order/domain/port"
)

const (
	claimScriptName   = "placement_claim"
	releaseScriptName = "placement_release"
)

// scriptRunner 是 *redis.Client 中被 guard 用到的部分
type scriptRunner interface {
	LoadScriptFromContent(name, content string) error
	RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error)
}

// RedisPlacementGuard 用带过期时间的 Redis key 占用订单，防止重复投递的消息被并发处理。
// 占用自动过期，持有者崩溃后订单可被重新处理。
type RedisPlacementGuard struct {
	redisClient scriptRunner
	ttl         time.Duration
}

// NewRedisPlacementGuard 在创建时加载所需的 Lua 脚本
func NewRedisPlacementGuard(redisClient scriptRunner, ttl time.Duration) (*RedisPlacementGuard, error) {
	if err := redisClient.LoadScriptFromContent(claimScriptName, claimScript); err != nil {
		return nil, errors.Wrap(err, "failed to load placement claim script")
	}
	if err := redisClient.LoadScriptFromContent(releaseScriptName, releaseScript); err != nil {
		return nil, errors.Wrap(err, "failed to load placement release script")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisPlacementGuard{redisClient: redisClient, ttl: ttl}, nil
}

func claimKey(orderID string) string {
	return fmt.Sprintf("placement:claim:{%s}", orderID)
}

func (g *RedisPlacementGuard) Acquire(ctx context.Context, orderID string) (func(), error) {
	key := claimKey(orderID)
	token := uuid.NewString()

	result, err := g.redisClient.RunScript(ctx, claimScriptName, []string{key}, token, g.ttl.Milliseconds())
	if err != nil {
		return nil, errors.Wrap(err, "placement guard failed to run claim script")
	}
	code, ok := result.(int64)
	if !ok {
		return nil, errors.Errorf("unexpected result type from claim script: %T", result)
	}
	if code == 0 {
		return nil, port.ErrPlacementClaimed
	}

	release := func() {
		// 释放不随处理的 ctx 一起取消
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if _, err := g.redisClient.RunScript(rctx, releaseScriptName, []string{key}, token); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).Msg("failed to release placement claim, it will expire")
		}
	}
	return release, nil
}

var claimScript = `
-- KEYS[1]: 订单占用的 key, 例如: placement:claim:{order-id}
-- ARGV[1]: 本次占用的 token
-- ARGV[2]: 过期时间(毫秒)
if redis.call('set', KEYS[1], ARGV[1], 'NX', 'PX', ARGV[2]) then
    return 1
end
return 0
`

var releaseScript = `
-- 只删除自己持有的占用
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`
