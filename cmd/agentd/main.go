package main

import (
	"bytes"
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
	"github.com/google/uuid"

	tmhttp "github.com/trademesh/trademesh/internal/adapter/http"
	"github.com/trademesh/trademesh/internal/adapter/otel"
	"github.com/trademesh/trademesh/internal/capability"
	"github.com/trademesh/trademesh/internal/config"
	"github.com/trademesh/trademesh/internal/dispatch"
	"github.com/trademesh/trademesh/internal/domain/agent"
	"github.com/trademesh/trademesh/internal/logger"
	"github.com/trademesh/trademesh/internal/port/a2a"
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
	if cfg.Agent.ID == "" {
		cfg.Agent.ID = cfg.Agent.Role + "-" + uuid.New().String()[:8]
	}
	if cfg.Agent.Name == "" {
		cfg.Agent.Name = cfg.Agent.Role + " agent"
	}
	if cfg.Agent.AdvertiseURL == "" {
		cfg.Agent.AdvertiseURL = "http://localhost:" + cfg.Server.Port
	}
	if cfg.Logging.Service == "trademesh" {
		cfg.Logging.Service = "agentd"
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)
	log.Info("config loaded",
		"agent_id", cfg.Agent.ID,
		"role", cfg.Agent.Role,
		"port", cfg.Server.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := otel.InitTracer(ctx, cfg.Logging.Service, cfg.Otel.Endpoint, log)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(shutdownCtx)
	}()

	// --- Capability dispatcher ---
	handlers, err := capability.Profile(cfg.Agent.Role)
	if err != nil {
		return fmt.Errorf("capability profile: %w", err)
	}

	dispatcher := dispatch.New(cfg.Agent.ID, dispatch.NewStore(), log)
	for name, h := range handlers {
		dispatcher.RegisterHandler(name, h)
	}

	card := a2a.BuildAgentCard(
		cfg.Agent.ID,
		cfg.Agent.Name,
		cfg.Agent.Role+" capability agent",
		cfg.Agent.AdvertiseURL,
		dispatcher.Capabilities(),
	)
	a2aHandler := a2a.NewHandler(card, dispatcher, log)

	// --- HTTP ---
	r := chi.NewRouter()
	r.Use(tmhttp.Logger)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(otel.HTTPMiddleware(cfg.Logging.Service))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":       "ok",
			"agent_id":     cfg.Agent.ID,
			"capabilities": dispatcher.Capabilities(),
		})
	})
	a2aHandler.MountRoutes(r)

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
		log.Info("starting agent", "addr", addr, "capabilities", dispatcher.Capabilities())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	// Register with the orchestrator and keep the heartbeat alive.
	go heartbeatLoop(ctx, cfg, dispatcher.Capabilities(), log)

	<-ctx.Done()
	log.Info("shutting down agent")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// Drain in-flight task handlers before exiting.
	dispatcher.Wait()
	return nil
}

// heartbeatLoop registers the agent with the orchestrator on startup and
// re-registers every HeartbeatInterval. Registration doubles as the
// heartbeat; failures are retried on the next tick.
func heartbeatLoop(ctx context.Context, cfg *config.Config, capabilities []string, log *slog.Logger) {
	if cfg.Agent.OrchestratorURL == "" {
		log.Warn("no orchestrator configured, skipping registration")
		return
	}

	client := &http.Client{Timeout: 5 * time.Second}
	register := func() {
		body, err := json.Marshal(agent.RegisterRequest{
			ID:           cfg.Agent.ID,
			Name:         cfg.Agent.Name,
			Endpoint:     cfg.Agent.AdvertiseURL,
			Capabilities: capabilities,
		})
		if err != nil {
			log.Error("marshal register request", "error", err)
			return
		}

		url := cfg.Agent.OrchestratorURL + "/api/v1/agents/register"
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			log.Error("build register request", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			log.Warn("orchestrator registration failed", "error", err)
			return
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			log.Warn("orchestrator rejected registration", "status", resp.StatusCode)
			return
		}
		log.Debug("heartbeat sent", "orchestrator", cfg.Agent.OrchestratorURL)
	}

	register()
	ticker := time.NewTicker(cfg.Agent.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			register()
		}
	}
}
