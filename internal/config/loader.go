package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/moecore/internal/domain/expert"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "moecore.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: operator-supplied config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty, parseable env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "MOECORE_PORT")
	setString(&cfg.Server.CORSOrigin, "MOECORE_CORS_ORIGIN")
	setString(&cfg.Server.PublicURL, "MOECORE_PUBLIC_URL")
	setString(&cfg.Server.RegistryDir, "MOECORE_REGISTRY_DIR")

	setInt(&cfg.Router.MaxExperts, "MOECORE_ROUTER_MAX_EXPERTS")
	setInt(&cfg.Orchestrator.ExpertsPerToken, "MOECORE_EXPERTS_PER_TOKEN")
	setString(&cfg.Summarizer.Backend, "MOECORE_SUMMARIZER")

	setString(&cfg.Registry.File, "MOECORE_REGISTRY_FILE")
	setBool(&cfg.Registry.Defaults, "MOECORE_REGISTRY_DEFAULTS")
	setBool(&cfg.Registry.Watch, "MOECORE_REGISTRY_WATCH")
	setDuration(&cfg.Registry.Debounce, "MOECORE_REGISTRY_DEBOUNCE")

	setString(&cfg.Dataset.Driver, "MOECORE_DATASET_DRIVER")
	setString(&cfg.Dataset.SQLitePath, "MOECORE_DATASET_SQLITE_PATH")

	setString(&cfg.Postgres.DSN, "MOECORE_DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "MOECORE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "MOECORE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "MOECORE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "MOECORE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "MOECORE_PG_HEALTH_CHECK")

	setString(&cfg.NATS.URL, "NATS_URL")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "MOECORE_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "MOECORE_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "MOECORE_CACHE_L2_TTL")

	setString(&cfg.LiteLLM.URL, "LITELLM_URL")
	setString(&cfg.LiteLLM.MasterKey, "LITELLM_MASTER_KEY")
	setString(&cfg.LiteLLM.Model, "MOECORE_LITELLM_MODEL")
	setString(&cfg.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&cfg.Gemini.Model, "MOECORE_GEMINI_MODEL")

	setInt(&cfg.Breaker.MaxFailures, "MOECORE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "MOECORE_BREAKER_TIMEOUT")

	setString(&cfg.Logging.Level, "MOECORE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "MOECORE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "MOECORE_LOG_ASYNC")

	// OpenTelemetry
	setBool(&cfg.OTEL.Enabled, "MOECORE_OTEL_ENABLED")
	setString(&cfg.OTEL.Endpoint, "MOECORE_OTEL_ENDPOINT")
	setString(&cfg.OTEL.ServiceName, "MOECORE_OTEL_SERVICE_NAME")
	setBool(&cfg.OTEL.Insecure, "MOECORE_OTEL_INSECURE")
	setFloat64(&cfg.OTEL.SampleRate, "MOECORE_OTEL_SAMPLE_RATE")

	setBool(&cfg.MCP.Enabled, "MOECORE_MCP_ENABLED")
	setString(&cfg.MCP.Addr, "MOECORE_MCP_ADDR")
	setString(&cfg.MCP.APIKey, "MOECORE_MCP_API_KEY")

	setString(&cfg.Worker.ID, "MOECORE_WORKER_ID")
}

// Validate checks that required fields are set and values are in range.
func (cfg *Config) Validate() error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Router.MaxExperts < 1 {
		return errors.New("router.max_experts must be >= 1")
	}
	if cfg.Orchestrator.ExpertsPerToken < 1 {
		return errors.New("orchestrator.experts_per_token must be >= 1")
	}
	seen := make(map[int]bool, len(cfg.Orchestrator.Experts))
	for i, e := range cfg.Orchestrator.Experts {
		if e.Index < 0 || e.Index >= expert.PoolSize {
			return fmt.Errorf("orchestrator.experts[%d].index must be in [0,%d), got %d", i, expert.PoolSize, e.Index)
		}
		if seen[e.Index] {
			return fmt.Errorf("orchestrator.experts[%d]: duplicate index %d", i, e.Index)
		}
		seen[e.Index] = true
		if e.Backend == "" {
			return fmt.Errorf("orchestrator.experts[%d].backend is required", i)
		}
	}
	bound := make(map[string]bool, len(cfg.Analyzers))
	for i, a := range cfg.Analyzers {
		if a.ExpertID == "" || a.Backend == "" {
			return fmt.Errorf("analyzers[%d]: expert_id and backend are required", i)
		}
		if bound[a.ExpertID] {
			return fmt.Errorf("analyzers[%d]: duplicate expert_id %q", i, a.ExpertID)
		}
		bound[a.ExpertID] = true
	}
	switch cfg.Dataset.Driver {
	case "none":
	case "sqlite":
		if cfg.Dataset.SQLitePath == "" {
			return errors.New("dataset.sqlite_path is required for the sqlite driver")
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres driver")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	default:
		return fmt.Errorf("dataset.driver must be sqlite, postgres or none, got %q", cfg.Dataset.Driver)
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.OTEL.SampleRate < 0 || cfg.OTEL.SampleRate > 1 {
		return errors.New("otel.sample_rate must be between 0 and 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
