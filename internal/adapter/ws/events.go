package ws

import (
	"context"
	"encoding/json"
)

// Event type constants for WebSocket messages.
const (
	EventWorkflowStatus = "workflow.status"
	EventStepStatus     = "workflow.step"
	EventAgentStatus    = "agent.status"
)

// WorkflowStatusEvent is broadcast when a workflow changes status.
type WorkflowStatusEvent struct {
	WorkflowID string `json:"workflow_id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
}

// StepStatusEvent is broadcast when a workflow step changes status.
type StepStatusEvent struct {
	WorkflowID string `json:"workflow_id"`
	StepID     string `json:"step_id"`
	StepName   string `json:"step_name"`
	AgentID    string `json:"agent_id,omitempty"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

// AgentStatusEvent is broadcast when an agent registers or changes status.
type AgentStatusEvent struct {
	AgentID string `json:"agent_id"`
	Status  string `json:"status"`
}

// BroadcastEvent marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
