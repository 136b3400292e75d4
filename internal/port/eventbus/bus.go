// Package eventbus defines the event publishing port (interface).
package eventbus

import "context"

// Publisher is the port interface for emitting orchestration events.
type Publisher interface {
	// Publish sends an event payload to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Close shuts down the publisher connection.
	Close() error
}

// Subject constants for orchestration events.
const (
	SubjectWorkflowCreated   = "workflows.created"
	SubjectWorkflowStarted   = "workflows.started"
	SubjectWorkflowCompleted = "workflows.completed"
	SubjectWorkflowFailed    = "workflows.failed"
	SubjectWorkflowPaused    = "workflows.paused"
	SubjectStepStarted       = "workflows.step.started"
	SubjectStepCompleted     = "workflows.step.completed"
	SubjectStepFailed        = "workflows.step.failed"
	SubjectAgentRegistered   = "agents.registered"
	SubjectAgentStatus       = "agents.status"
)

// Noop is a Publisher that discards all events. Used when no message broker
// is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, []byte) error { return nil }
func (Noop) Close() error                                  { return nil }
