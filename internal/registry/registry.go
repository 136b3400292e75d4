// Package registry holds the orchestrator's in-memory directory of known
// agents, keyed by agent id, with capability-based resolution.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/trademesh/trademesh/internal/domain"
	"github.com/trademesh/trademesh/internal/domain/agent"
)

// Registry is a mutex-guarded agent directory. Registration is an
// idempotent upsert and doubles as a heartbeat.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*agent.Agent
	order  []string // registration order, for capability tie-breaks
	now    func() time.Time
	log    *slog.Logger
}

// New creates an empty registry.
func New(log *slog.Logger) *Registry {
	return &Registry{
		agents: make(map[string]*agent.Agent),
		now:    time.Now,
		log:    log,
	}
}

// Register upserts an agent. A repeat registration for the same id refreshes
// the heartbeat and replaces the advertised endpoint and capabilities; it
// never creates a duplicate entry.
func (r *Registry) Register(req agent.RegisterRequest) (*agent.Agent, error) {
	if req.ID == "" {
		return nil, fmt.Errorf("%w: agent_id is required", domain.ErrValidation)
	}
	if req.Endpoint == "" {
		return nil, fmt.Errorf("%w: endpoint is required", domain.ErrValidation)
	}
	if len(req.Capabilities) == 0 {
		return nil, fmt.Errorf("%w: at least one capability is required", domain.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	existing, ok := r.agents[req.ID]
	if ok {
		existing.Name = req.Name
		existing.Endpoint = req.Endpoint
		existing.Capabilities = append([]string(nil), req.Capabilities...)
		existing.Status = agent.StatusAvailable
		existing.LastHeartbeat = now
		return snapshot(existing), nil
	}

	a := &agent.Agent{
		ID:            req.ID,
		Name:          req.Name,
		Endpoint:      req.Endpoint,
		Capabilities:  append([]string(nil), req.Capabilities...),
		Status:        agent.StatusAvailable,
		LastHeartbeat: now,
		RegisteredAt:  now,
	}
	r.agents[req.ID] = a
	r.order = append(r.order, req.ID)
	r.log.Info("agent registered", "agent_id", req.ID, "endpoint", req.Endpoint, "capabilities", req.Capabilities)
	return snapshot(a), nil
}

// Get returns the agent with the given id.
func (r *Registry) Get(id string) (*agent.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	return snapshot(a), nil
}

// List returns all known agents in registration order.
func (r *Registry) List() []*agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*agent.Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, snapshot(r.agents[id]))
	}
	return out
}

// ResolveByCapability returns the first available agent advertising the
// given capability, in registration order.
func (r *Registry) ResolveByCapability(capability string) (*agent.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		a := r.agents[id]
		if a.Status == agent.StatusAvailable && a.HasCapability(capability) {
			return snapshot(a), nil
		}
	}
	return nil, fmt.Errorf("capability %q: %w", capability, domain.ErrCapabilityUnresolved)
}

// Mark sets an agent's status.
func (r *Registry) Mark(id string, status agent.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	a.Status = status
	return nil
}

// SweepStale flips agents whose last heartbeat is older than timeout to
// OFFLINE and returns the ids it changed. A timeout of zero disables the
// sweep.
func (r *Registry) SweepStale(timeout time.Duration) []string {
	if timeout <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-timeout)
	var stale []string
	for _, id := range r.order {
		a := r.agents[id]
		if a.Status != agent.StatusOffline && a.LastHeartbeat.Before(cutoff) {
			a.Status = agent.StatusOffline
			stale = append(stale, id)
		}
	}
	return stale
}

// RunSweeper periodically sweeps stale agents until ctx is canceled.
func (r *Registry) RunSweeper(ctx context.Context, interval, timeout time.Duration) {
	if interval <= 0 || timeout <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range r.SweepStale(timeout) {
				r.log.Warn("agent heartbeat expired", "agent_id", id)
			}
		}
	}
}

func snapshot(a *agent.Agent) *agent.Agent {
	cp := *a
	cp.Capabilities = append([]string(nil), a.Capabilities...)
	return &cp
}
