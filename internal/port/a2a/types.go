// Package a2a defines the agent-to-agent wire protocol: the agent card
// served for discovery and the task endpoints every agent exposes.
package a2a

import "github.com/trademesh/trademesh/internal/domain/task"

// AgentCard describes an agent and its capabilities for discovery.
type AgentCard struct {
	ID           string       `json:"agent_id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	URL          string       `json:"url"`
	Version      string       `json:"version"`
	Capabilities []Capability `json:"capabilities"`
}

// Capability describes a single named operation an agent can perform.
type Capability struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Names returns the capability names on the card.
func (c AgentCard) Names() []string {
	names := make([]string, len(c.Capabilities))
	for i, cap := range c.Capabilities {
		names[i] = cap.Name
	}
	return names
}

// CreateTaskRequest is the body of POST /api/v1/tasks.
type CreateTaskRequest struct {
	Capability  string         `json:"capability"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Priority    string         `json:"priority,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
}

// UpdateTaskRequest is the body of PUT /api/v1/tasks/{id}. It is an
// administrative override; illegal status transitions are rejected.
type UpdateTaskRequest struct {
	Status string         `json:"status"`
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// SendMessageRequest is the body of POST /api/v1/tasks/{id}/messages.
type SendMessageRequest struct {
	FromAgent string         `json:"from_agent"`
	ToAgent   string         `json:"to_agent,omitempty"`
	Content   map[string]any `json:"content"`
	Parts     []task.Part    `json:"parts,omitempty"`
}
