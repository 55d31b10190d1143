package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseFull(t *testing.T) {
	cfg, err := Parse([]byte(`
version: 1
server:
  port: 9090
  log_mode: prod
  log_level: debug
playback:
  scenario_dir: /srv/reels
  tolerance: 0.25
  max_sessions: 50
store:
  driver: sqlite
  path: /var/lib/reel/reel.db
mqtt:
  enabled: true
  broker: tcp://broker:1883
  topic_prefix: kiosk
  timeout: 2s
  player_timeout: 30s
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port() != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port())
	}
	if cfg.ScenarioDir() != "/srv/reels" {
		t.Errorf("unexpected scenario dir %q", cfg.ScenarioDir())
	}
	if tol, ok := cfg.Tolerance(); !ok || tol != 0.25 {
		t.Errorf("unexpected tolerance %v %v", tol, ok)
	}
	if cfg.StoreDriver() != StoreSQLite || cfg.SQLitePath() != "/var/lib/reel/reel.db" {
		t.Errorf("unexpected store %q %q", cfg.StoreDriver(), cfg.SQLitePath())
	}
	if !cfg.MQTT.Enabled || cfg.TopicPrefix() != "kiosk" || cfg.MQTTTimeout() != 2*time.Second {
		t.Errorf("unexpected mqtt config %+v", cfg.MQTT)
	}
	if cfg.PlayerTimeout() != 30*time.Second {
		t.Errorf("unexpected player timeout %v", cfg.PlayerTimeout())
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte("version: 1\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port() != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port())
	}
	if cfg.ScenarioDir() != "scenarios" {
		t.Errorf("unexpected default scenario dir %q", cfg.ScenarioDir())
	}
	if cfg.StoreDriver() != StoreNone {
		t.Errorf("expected store none, got %q", cfg.StoreDriver())
	}
	if cfg.TopicPrefix() != "reel" || cfg.MQTTTimeout() != 5*time.Second {
		t.Errorf("unexpected mqtt defaults %q %v", cfg.TopicPrefix(), cfg.MQTTTimeout())
	}
	if cfg.PlayerTimeout() != 10*time.Second {
		t.Errorf("unexpected player timeout %v", cfg.PlayerTimeout())
	}
	if cfg.SQLitePath() != "reel.db" {
		t.Errorf("unexpected sqlite path %q", cfg.SQLitePath())
	}
	if _, ok := cfg.Tolerance(); ok {
		t.Error("tolerance must be unset by default")
	}
}

func TestExplicitZeroTolerance(t *testing.T) {
	cfg, err := Parse([]byte("version: 1
playback:
  tolerance: 0
"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tol, ok := cfg.Tolerance(); !ok || tol != 0 {
		t.Errorf("expected explicit zero tolerance, got %v %v", tol, ok)
	}
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"wrong version":      "version: 2\n",
		"missing version":    "server:\n  port: 1\n",
		"unknown driver":     "version: 1\nstore:\n  driver: mongo\n",
		"negative tolerance": "version: 1\nplayback:\n  tolerance: -1\n",
		"negative sessions":  "version: 1\nplayback:\n  max_sessions: -1\n",
		"bad yaml":           "version: [\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reel.yaml")
	if err := os.WriteFile(path, []byte("version: 1\nserver:\n  port: 7000\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 7000 {
		t.Errorf("expected port 7000, got %d", cfg.Port())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
