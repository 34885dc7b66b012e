// internal/zookeeper/conn.go
package zookeeper

import (
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"

	"orderdesk/internal/pkg/logger"
)

// Conn 是分布式锁用到的 ZooKeeper 操作，*zk.Conn 实现了它
type Conn interface {
	Exists(path string) (bool, *zk.Stat, error)
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	CreateProtectedEphemeralSequential(path string, data []byte, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	Delete(path string, version int32) error
}

// Connect 连接 ZooKeeper 集群并等待会话建立
func Connect(servers []string, sessionTimeout time.Duration) (*zk.Conn, error) {
	conn, events, err := zk.Connect(servers, sessionTimeout, zk.WithLogInfo(false))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect zookeeper %v", servers)
	}

	timeout := time.After(sessionTimeout)
	for {
		select {
		case ev := <-events:
			if ev.State == zk.StateHasSession {
				logger.L().Info().Strs("servers", servers).Msg("✅ ZooKeeper session established")
				return conn, nil
			}
		case <-timeout:
			conn.Close()
			return nil, errors.Errorf("timeout waiting for zookeeper session on %v", servers)
		}
	}
}
