package redis

import (
	"context"
	"testing"

	goredis "github.com/redis/go-redis/v9"
)

func TestClient_Scripts(t *testing.T) {
	c := Wrap(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"}))
	defer c.Close()

	if err := c.LoadScriptFromContent("empty", "  \n"); err == nil {
		t.Error("expected an empty script to be rejected")
	}
	if err := c.LoadScriptFromContent("noop", "return 1"); err != nil {
		t.Fatalf("LoadScriptFromContent: %v", err)
	}

	if _, err := c.RunScript(context.Background(), "missing", nil); err == nil {
		t.Error("expected an error for a script that was never loaded")
	}
}
