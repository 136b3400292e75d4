package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "trademesh.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
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

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
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
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "TRADEMESH_PORT")
	setString(&cfg.Server.CORSOrigin, "TRADEMESH_CORS_ORIGIN")
	setString(&cfg.Logging.Level, "TRADEMESH_LOG_LEVEL")
	setString(&cfg.Logging.Service, "TRADEMESH_LOG_SERVICE")

	setInt(&cfg.Engine.MaxParallel, "TRADEMESH_ENGINE_MAX_PARALLEL")
	setDuration(&cfg.Engine.PollInterval, "TRADEMESH_ENGINE_POLL_INTERVAL")
	setDuration(&cfg.Engine.StepTimeout, "TRADEMESH_ENGINE_STEP_TIMEOUT")

	setDuration(&cfg.Registry.HeartbeatTimeout, "TRADEMESH_HEARTBEAT_TIMEOUT")
	setDuration(&cfg.Registry.SweepInterval, "TRADEMESH_SWEEP_INTERVAL")

	setDuration(&cfg.Client.RequestTimeout, "TRADEMESH_CLIENT_TIMEOUT")
	setInt64(&cfg.Client.CardCacheSizeMB, "TRADEMESH_CARD_CACHE_SIZE_MB")
	setDuration(&cfg.Client.CardCacheTTL, "TRADEMESH_CARD_CACHE_TTL")
	setInt(&cfg.Client.BreakerFailures, "TRADEMESH_BREAKER_FAILURES")
	setDuration(&cfg.Client.BreakerTimeout, "TRADEMESH_BREAKER_TIMEOUT")

	setString(&cfg.Agent.ID, "TRADEMESH_AGENT_ID")
	setString(&cfg.Agent.Name, "TRADEMESH_AGENT_NAME")
	setString(&cfg.Agent.Role, "TRADEMESH_AGENT_ROLE")
	setString(&cfg.Agent.AdvertiseURL, "TRADEMESH_ADVERTISE_URL")
	setString(&cfg.Agent.OrchestratorURL, "TRADEMESH_ORCHESTRATOR_URL")
	setDuration(&cfg.Agent.HeartbeatInterval, "TRADEMESH_HEARTBEAT_INTERVAL")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.MCP.Addr, "TRADEMESH_MCP_ADDR")
	setString(&cfg.Otel.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Engine.MaxParallel < 1 {
		return errors.New("engine.max_parallel must be >= 1")
	}
	if cfg.Engine.PollInterval <= 0 {
		return errors.New("engine.poll_interval must be > 0")
	}
	if cfg.Engine.StepTimeout <= 0 {
		return errors.New("engine.step_timeout must be > 0")
	}
	if cfg.Client.BreakerFailures < 1 {
		return errors.New("client.breaker_failures must be >= 1")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
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
