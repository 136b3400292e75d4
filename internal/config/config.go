// Package config provides hierarchical configuration loading for TradeMesh.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the TradeMesh daemons.
// The orchestrator and agent binaries share one config type; each reads
// the sections it needs.
type Config struct {
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
	Engine   Engine   `yaml:"engine"`
	Registry Registry `yaml:"registry"`
	Client   Client   `yaml:"client"`
	Agent    Agent    `yaml:"agent"`
	NATS     NATS     `yaml:"nats"`
	MCP      MCP      `yaml:"mcp"`
	Otel     Otel     `yaml:"otel"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Engine holds workflow engine configuration.
type Engine struct {
	MaxParallel  int           `yaml:"max_parallel"`  // max concurrently running steps per workflow (default: 4)
	PollInterval time.Duration `yaml:"poll_interval"` // task status polling interval (default: 500ms)
	StepTimeout  time.Duration `yaml:"step_timeout"`  // per-step await timeout (default: 2m)
}

// Registry holds agent registry configuration. A HeartbeatTimeout of zero
// disables the staleness sweep entirely; agents are then never flipped to
// OFFLINE automatically.
type Registry struct {
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
}

// Client holds A2A client configuration.
type Client struct {
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	CardCacheSizeMB int64         `yaml:"card_cache_size_mb"`
	CardCacheTTL    time.Duration `yaml:"card_cache_ttl"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout"`
}

// Agent holds capability agent configuration (agentd only).
type Agent struct {
	ID                string        `yaml:"id"`
	Name              string        `yaml:"name"`
	Role              string        `yaml:"role"`         // "market" | "trading" | "risk" | "reporting"
	AdvertiseURL      string        `yaml:"advertise_url"` // endpoint other agents reach us at
	OrchestratorURL   string        `yaml:"orchestrator_url"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// NATS holds the optional JetStream event publisher configuration.
// An empty URL disables publishing.
type NATS struct {
	URL string `yaml:"url"`
}

// MCP holds the MCP tool server configuration. An empty Addr disables it.
type MCP struct {
	Addr string `yaml:"addr"`
}

// Otel holds OpenTelemetry configuration. An empty Endpoint disables the
// OTLP trace exporter; metric instruments always register on the global
// meter.
type Otel struct {
	Endpoint string `yaml:"endpoint"`
}

// Defaults returns the built-in configuration defaults.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8005",
			CORSOrigin: "*",
		},
		Logging: Logging{
			Level:   "info",
			Service: "trademesh",
		},
		Engine: Engine{
			MaxParallel:  4,
			PollInterval: 500 * time.Millisecond,
			StepTimeout:  2 * time.Minute,
		},
		Registry: Registry{
			HeartbeatTimeout: 0,
			SweepInterval:    30 * time.Second,
		},
		Client: Client{
			RequestTimeout:  10 * time.Second,
			CardCacheSizeMB: 16,
			CardCacheTTL:    5 * time.Minute,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Agent: Agent{
			Role:              "market",
			OrchestratorURL:   "http://localhost:8005",
			HeartbeatInterval: 15 * time.Second,
		},
	}
}
