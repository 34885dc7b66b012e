// internal/zookeeper/lock.go
package zookeeper

import (
	"sort"
	"strings"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const (
	lockRoot = "/distributed_locks" // 所有分布式锁的根节点
	// 顺序节点名的最后 10 位是 ZooKeeper 分配的序号
	sequenceLen = 10
)

// ErrLockHeld 表示锁已被其他会话持有
var ErrLockHeld = errors.New("lock is held by another session")

// DistributedLock 定义了一个分布式锁对象
type DistributedLock struct {
	conn     Conn   // ZooKeeper连接
	path     string // 锁的路径，例如 /distributed_locks/order-123
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建一个新的分布式锁实例，并确保锁路径存在
func NewDistributedLock(conn Conn, resourceID string) (*DistributedLock, error) {
	if err := ensureNode(conn, lockRoot); err != nil {
		return nil, err
	}
	lockPath := lockRoot + "/" + resourceID
	if err := ensureNode(conn, lockPath); err != nil {
		return nil, err
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

func ensureNode(conn Conn, path string) error {
	exists, _, err := conn.Exists(path)
	if err != nil {
		return errors.Wrapf(err, "failed to check lock node %s", path)
	}
	if exists {
		return nil
	}
	_, err = conn.Create(path, []byte(""), 0, zk.WorldACL(zk.PermAll))
	if err != nil && !errors.Is(err, zk.ErrNodeExists) {
		return errors.Wrapf(err, "failed to create lock node %s", path)
	}
	return nil
}

// TryLock 尝试获取锁，不等待。锁被占用时返回 ErrLockHeld。
func (l *DistributedLock) TryLock() error {
	// 在锁路径下创建一个临时顺序节点，会话断开时自动删除
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "failed to create sequential node")
	}

	children, _, err := l.conn.Children(l.path)
	if err != nil {
		_ = l.conn.Delete(nodePath, -1)
		return errors.Wrap(err, "failed to get children nodes")
	}
	// protected 节点带有 GUID 前缀，只能按序号排序
	sort.Slice(children, func(i, j int) bool {
		return sequenceOf(children[i]) < sequenceOf(children[j])
	})

	myNodeName := strings.TrimPrefix(nodePath, l.path+"/")
	if len(children) > 0 && children[0] == myNodeName {
		l.lockNode = nodePath
		return nil
	}

	// 不是最小节点，撤回自己的节点
	if err := l.conn.Delete(nodePath, -1); err != nil && !errors.Is(err, zk.ErrNoNode) {
		return errors.Wrap(err, "failed to withdraw sequential node")
	}
	return ErrLockHeld
}

// Unlock 释放锁，并尝试清理已空的锁路径
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return errors.New("no lock to unlock")
	}
	err := l.conn.Delete(l.lockNode, -1)
	if err != nil && !errors.Is(err, zk.ErrNoNode) {
		return errors.Wrap(err, "failed to delete lock node")
	}
	l.lockNode = ""

	// 其他会话仍在排队时会返回 ErrNotEmpty，忽略即可
	_ = l.conn.Delete(l.path, -1)
	return nil
}

func sequenceOf(node string) string {
	if len(node) <= sequenceLen {
		return node
	}
	return node[len(node)-sequenceLen:]
}
