package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "order-service.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_DefaultsWhenFileMissing(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Store.Driver != "pebble" || cfg.Dispatch.Mode != "local" || cfg.Venue.Mode != "simulated" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Engine.PlacementTimeout != 10*time.Second {
		t.Fatalf("placement timeout = %v", cfg.Engine.PlacementTimeout)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := writeConfig(t, `
app:
  port: 9090
engine:
  placement_timeout: 3s
store:
  driver: mysql
  mysql:
    dsn: "root:secret@tcp(db:3306)/orders"
venue:
  fill_probability: 0.5
  rules:
    - name: max-size
      expr: "quantity > 1000"
      reason: insufficient liquidity
`)
	t.Setenv("HTTP_PORT", "7070")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("DISPATCH_MODE", "kafka")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.App.Port != 7070 {
		t.Errorf("port = %d, env should win", cfg.App.Port)
	}
	if cfg.Engine.PlacementTimeout != 3*time.Second {
		t.Errorf("placement timeout = %v", cfg.Engine.PlacementTimeout)
	}
	if cfg.Engine.ProcessingTimeout != 30*time.Second {
		t.Errorf("processing timeout default lost: %v", cfg.Engine.ProcessingTimeout)
	}
	if len(cfg.Dispatch.Kafka.Brokers) != 2 || cfg.Dispatch.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("brokers = %v", cfg.Dispatch.Kafka.Brokers)
	}
	if len(cfg.Venue.Rules) != 1 || cfg.Venue.Rules[0].Reason != "insufficient liquidity" {
		t.Errorf("rules = %+v", cfg.Venue.Rules)
	}
	if cfg.Venue.FillProbability != 0.5 {
		t.Errorf("fill probability = %v", cfg.Venue.FillProbability)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "mysql without dsn", yaml: "store:\n  driver: mysql\n"},
		{name: "unknown dispatch mode", yaml: "dispatch:\n  mode: carrier-pigeon\n"},
		{name: "kafka without brokers", yaml: "dispatch:\n  mode: kafka\n"},
		{name: "http venue without url", yaml: "venue:\n  mode: http\n"},
		{name: "redis guard without addrs", yaml: "guard:\n  mode: redis\n"},
		{name: "bad port env", yaml: "", env: map[string]string{"HTTP_PORT": "eighty"}},
		{name: "malformed yaml", yaml: "app: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(writeConfig(t, tt.yaml)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadConfig_ExplicitMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("an explicitly requested config file must exist")
	}
}
