// internal/pkg/redis/client.go
package redis

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

// Client 封装 go-redis 的 UniversalClient，并缓存已加载的 Lua 脚本
type Client struct {
	client  goredis.UniversalClient
	scripts map[string]*goredis.Script
	mu      sync.RWMutex
}

// NewClient 根据逗号分隔的地址创建客户端：单个地址为单机模式，多个地址为集群模式
func NewClient(addrs string) (*Client, error) {
	list := strings.Split(addrs, ",")
	c := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        list,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, errors.Wrapf(err, "failed to ping redis at %s", addrs)
	}
	return Wrap(c), nil
}

// Wrap 用已有的 go-redis 客户端构造 Client
func Wrap(c goredis.UniversalClient) *Client {
	return &Client{client: c, scripts: make(map[string]*goredis.Script)}
}

// LoadScriptFromContent 以 name 注册一段 Lua 脚本
func (c *Client) LoadScriptFromContent(name, content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.Errorf("script %s is empty", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[name] = goredis.NewScript(content)
	return nil
}

// RunScript 执行已注册的脚本，EVALSHA 未命中时自动回退到 EVAL
func (c *Client) RunScript(ctx context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	c.mu.RLock()
	script, ok := c.scripts[name]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("script %s is not loaded", name)
	}
	return script.Run(ctx, c.client, keys, args...).Result()
}

func (c *Client) Close() error {
	return c.client.Close()
}
