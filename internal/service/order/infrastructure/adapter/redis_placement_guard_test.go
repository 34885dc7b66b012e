package adapter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"orderdesk/internal/service/order/domain/port"
)

// fakeScripts 在内存中模拟 claim/release 两个脚本的语义
type fakeScripts struct {
	mu     sync.Mutex
	loaded map[string]bool
	held   map[string]string
	err    error
}

func newFakeScripts() *fakeScripts {
	return &fakeScripts{loaded: map[string]bool{}, held: map[string]string{}}
}

func (f *fakeScripts) LoadScriptFromContent(name, _ string) error {
	f.loaded[name] = true
	return nil
}

func (f *fakeScripts) RunScript(_ context.Context, name string, keys []string, args ...interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	token := args[0].(string)
	switch name {
	case claimScriptName:
		if _, ok := f.held[keys[0]]; ok {
			return int64(0), nil
		}
		f.held[keys[0]] = token
		return int64(1), nil
	case releaseScriptName:
		if f.held[keys[0]] == token {
			delete(f.held, keys[0])
			return int64(1), nil
		}
		return int64(0), nil
	}
	return nil, errors.New("unknown script")
}

func TestRedisPlacementGuard_ClaimAndRelease(t *testing.T) {
	scripts := newFakeScripts()
	g, err := NewRedisPlacementGuard(scripts, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisPlacementGuard: %v", err)
	}
	if !scripts.loaded[claimScriptName] || !scripts.loaded[releaseScriptName] {
		t.Fatal("scripts not loaded")
	}

	release, err := g.Acquire(context.Background(), "o-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := g.Acquire(context.Background(), "o-1"); !errors.Is(err, port.ErrPlacementClaimed) {
		t.Fatalf("second Acquire = %v, want ErrPlacementClaimed", err)
	}
	if _, err := g.Acquire(context.Background(), "o-2"); err != nil {
		t.Fatalf("other order should not be blocked: %v", err)
	}

	release()
	if _, err := g.Acquire(context.Background(), "o-1"); err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
}

func TestRedisPlacementGuard_RedisDown(t *testing.T) {
	scripts := newFakeScripts()
	scripts.err = errors.New("dial tcp: connection refused")
	g, _ := NewRedisPlacementGuard(scripts, 0)

	_, err := g.Acquire(context.Background(), "o-1")
	if err == nil || errors.Is(err, port.ErrPlacementClaimed) {
		t.Fatalf("err = %v, want infrastructure error", err)
	}
}
