// Package agent defines the Agent domain entity tracked by the registry.
package agent

import (
	"slices"
	"time"
)

// Status represents the liveness/availability state of an agent.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusBusy      Status = "BUSY"
	StatusError     Status = "ERROR"
	StatusOffline   Status = "OFFLINE"
)

// Agent represents an independently running service exposing named
// capabilities over HTTP.
type Agent struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Endpoint      string    `json:"endpoint"`
	Capabilities  []string  `json:"capabilities"`
	Status        Status    `json:"status"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	RegisteredAt  time.Time `json:"registered_at"`
}

// HasCapability reports whether the agent declares the named capability.
func (a *Agent) HasCapability(name string) bool {
	return slices.Contains(a.Capabilities, name)
}

// RegisterRequest holds the fields for registering (or re-announcing) an
// agent with the orchestrator.
type RegisterRequest struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Endpoint     string   `json:"endpoint"`
	Capabilities []string `json:"capabilities"`
}
