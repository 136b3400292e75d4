package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/trademesh/trademesh/internal/adapter/a2aclient"
	tmhttp "github.com/trademesh/trademesh/internal/adapter/http"
	tmmcp "github.com/trademesh/trademesh/internal/adapter/mcp"
	tmnats "github.com/trademesh/trademesh/internal/adapter/nats"
	"github.com/trademesh/trademesh/internal/adapter/otel"
	"github.com/trademesh/trademesh/internal/adapter/ws"
	"github.com/trademesh/trademesh/internal/config"
	"github.com/trademesh/trademesh/internal/logger"
	"github.com/trademesh/trademesh/internal/port/eventbus"
	"github.com/trademesh/trademesh/internal/registry"
	"github.com/trademesh/trademesh/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)
	log.Info("config loaded", "port", cfg.Server.Port, "log_level", cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	shutdownTracer, err := otel.InitTracer(ctx, cfg.Logging.Service, cfg.Otel.Endpoint, log)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(shutdownCtx)
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Event bus ---
	var bus eventbus.Publisher = eventbus.Noop{}
	if cfg.NATS.URL != "" {
		publisher, err := tmnats.Connect(ctx, cfg.NATS.URL, log)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		bus = publisher
		log.Info("nats connected", "url", cfg.NATS.URL)
	}
	defer func() { _ = bus.Close() }()

	// --- Services ---
	hub := ws.NewHub(log)
	reg := registry.New(log)
	go reg.RunSweeper(ctx, cfg.Registry.SweepInterval, cfg.Registry.HeartbeatTimeout)

	client, err := a2aclient.New(a2aclient.Config{
		RequestTimeout:  cfg.Client.RequestTimeout,
		CardCacheBytes:  cfg.Client.CardCacheSizeMB << 20,
		CardCacheTTL:    cfg.Client.CardCacheTTL,
		BreakerFailures: cfg.Client.BreakerFailures,
		BreakerTimeout:  cfg.Client.BreakerTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("a2a client: %w", err)
	}
	defer client.Close()

	engine := service.NewEngine(cfg.Engine, reg, client, hub, bus, metrics, log)
	functions := service.NewFunctions(reg, engine, log)

	// --- MCP ---
	mcpServer := tmmcp.NewServer(tmmcp.ServerConfig{
		Addr:    cfg.MCP.Addr,
		Name:    "trademesh",
		Version: "0.1.0",
	}, functions, log)
	if err := mcpServer.Start(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mcpServer.Stop(shutdownCtx)
	}()

	// --- HTTP ---
	r := chi.NewRouter()
	r.Use(tmhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(tmhttp.Logger)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))

	r.Get("/health", healthHandler(cfg, hub, reg))
	r.Get("/ws", hub.HandleWS)
	tmhttp.MountRoutes(r, &tmhttp.Handlers{
		Registry:  reg,
		Engine:    engine,
		Functions: functions,
		Events:    hub,
		Bus:       bus,
	})

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Info("starting orchestrator", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down orchestrator")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Let in-flight workflow loops drain before tearing down the client.
	engine.Wait()
	return nil
}

// healthHandler reports service health and live component counts.
func healthHandler(cfg *config.Config, hub *ws.Hub, reg *registry.Registry) http.HandlerFunc {
	type healthStatus struct {
		Status        string `json:"status"`
		Agents        int    `json:"agents"`
		WSConnections int    `json:"ws_connections"`
		NATS          string `json:"nats,omitempty"`
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{
			Status:        "ok",
			Agents:        len(reg.List()),
			WSConnections: hub.ConnectionCount(),
			NATS:          cfg.NATS.URL,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
