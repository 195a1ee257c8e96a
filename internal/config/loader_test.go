package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "moecore.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Router.MaxExperts != 3 {
		t.Errorf("expected max_experts 3, got %d", cfg.Router.MaxExperts)
	}
	if cfg.Orchestrator.ExpertsPerToken != 2 {
		t.Errorf("expected experts_per_token 2, got %d", cfg.Orchestrator.ExpertsPerToken)
	}
	if cfg.Dataset.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %s", cfg.Dataset.Driver)
	}
	if cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("expected breaker timeout 30s, got %v", cfg.Breaker.Timeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	path := writeYAML(t, `
server:
  port: "9090"
router:
  max_experts: 5
orchestrator:
  experts_per_token: 3
  experts:
    - index: 0
      name: math
      backend: http
      timeout: 5s
      cache: true
      config:
        url: http://localhost:9000/expert
logging:
  level: "debug"
`)

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Router.MaxExperts != 5 {
		t.Errorf("expected max_experts 5, got %d", cfg.Router.MaxExperts)
	}
	if len(cfg.Orchestrator.Experts) != 1 {
		t.Fatalf("expected 1 expert slot, got %d", len(cfg.Orchestrator.Experts))
	}
	slot := cfg.Orchestrator.Experts[0]
	if slot.Backend != "http" || slot.Timeout != 5*time.Second || !slot.Cache {
		t.Errorf("unexpected slot: %+v", slot)
	}
	if slot.Config["url"] != "http://localhost:9000/expert" {
		t.Errorf("unexpected slot config: %v", slot.Config)
	}
	// Unchanged fields keep defaults
	if cfg.Dataset.SQLitePath != "moecore_dataset.db" {
		t.Errorf("expected default sqlite path, got %s", cfg.Dataset.SQLitePath)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, "/nonexistent/path.yaml"); err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestLoadFrom_MalformedYAML(t *testing.T) {
	path := writeYAML(t, "server: [unclosed")
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("MOECORE_PORT", "7070")
	t.Setenv("MOECORE_ROUTER_MAX_EXPERTS", "4")
	t.Setenv("MOECORE_DATASET_DRIVER", "postgres")
	t.Setenv("MOECORE_DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("MOECORE_LOG_ASYNC", "true")
	t.Setenv("MOECORE_BREAKER_TIMEOUT", "1m")
	t.Setenv("NATS_URL", "nats://nats:4222")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("port = %s", cfg.Server.Port)
	}
	if cfg.Router.MaxExperts != 4 {
		t.Errorf("max_experts = %d", cfg.Router.MaxExperts)
	}
	if cfg.Dataset.Driver != "postgres" || cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("dataset = %+v dsn = %s", cfg.Dataset, cfg.Postgres.DSN)
	}
	if !cfg.Logging.Async {
		t.Error("expected async logging")
	}
	if cfg.Breaker.Timeout != time.Minute {
		t.Errorf("breaker timeout = %v", cfg.Breaker.Timeout)
	}
	if cfg.NATS.URL != "nats://nats:4222" {
		t.Errorf("nats url = %s", cfg.NATS.URL)
	}
}

func TestEnvInvalidValuesIgnored(t *testing.T) {
	t.Setenv("MOECORE_ROUTER_MAX_EXPERTS", "many")
	t.Setenv("MOECORE_BREAKER_TIMEOUT", "soon")

	cfg, err := LoadFrom("/nonexistent/path.yaml")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Router.MaxExperts != 3 {
		t.Errorf("invalid int should keep default, got %d", cfg.Router.MaxExperts)
	}
	if cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("invalid duration should keep default, got %v", cfg.Breaker.Timeout)
	}
}

func TestLoadFrom_FullHierarchy(t *testing.T) {
	path := writeYAML(t, `
server:
  port: "9090"
logging:
  level: "debug"
`)
	t.Setenv("MOECORE_PORT", "7070")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("env should override YAML: got port %q", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("YAML should override default: got level %q", cfg.Logging.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }, "server.port"},
		{"zero max experts", func(c *Config) { c.Router.MaxExperts = 0 }, "router.max_experts"},
		{"zero experts per token", func(c *Config) { c.Orchestrator.ExpertsPerToken = 0 }, "experts_per_token"},
		{"slot out of range", func(c *Config) {
			c.Orchestrator.Experts = []ExpertSlot{{Index: 8, Backend: "mock"}}
		}, "index must be in"},
		{"duplicate slot", func(c *Config) {
			c.Orchestrator.Experts = []ExpertSlot{{Index: 1, Backend: "mock"}, {Index: 1, Backend: "mock"}}
		}, "duplicate index"},
		{"slot without backend", func(c *Config) {
			c.Orchestrator.Experts = []ExpertSlot{{Index: 2}}
		}, "backend is required"},
		{"unknown driver", func(c *Config) { c.Dataset.Driver = "mongo" }, "dataset.driver"},
		{"sqlite without path", func(c *Config) { c.Dataset.SQLitePath = "" }, "sqlite_path"},
		{"postgres without dsn", func(c *Config) {
			c.Dataset.Driver = "postgres"
			c.Postgres.DSN = ""
		}, "postgres.dsn"},
		{"breaker", func(c *Config) { c.Breaker.MaxFailures = 0 }, "breaker.max_failures"},
		{"sample rate", func(c *Config) { c.OTEL.SampleRate = 2 }, "sample_rate"},
		{"analyzer backend", func(c *Config) {
			c.Analyzers = []Analyzer{{ExpertID: "security_ghost"}}
		}, "expert_id and backend"},
		{"analyzer duplicate", func(c *Config) {
			c.Analyzers = []Analyzer{
				{ExpertID: "security_ghost", Backend: "mock"},
				{ExpertID: "security_ghost", Backend: "http"},
			}
		}, "duplicate expert_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_NoneDriverNeedsNothing(t *testing.T) {
	cfg := Defaults()
	cfg.Dataset.Driver = "none"
	cfg.Dataset.SQLitePath = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
