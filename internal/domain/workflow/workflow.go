// Package workflow defines the Workflow domain entity: a DAG of capability
// steps executed against remote agents with results threaded through a
// shared context.
package workflow

import "time"

// Status represents the lifecycle state of a workflow.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusPaused    Status = "PAUSED"
)

// IsTerminal returns true if the workflow is in a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPaused:
		return true
	}
	return false
}

// StepStatus represents the lifecycle state of an individual step.
type StepStatus string

const (
	StepStatusPending   StepStatus = "PENDING"
	StepStatusRunning   StepStatus = "RUNNING"
	StepStatusCompleted StepStatus = "COMPLETED"
	StepStatusFailed    StepStatus = "FAILED"
)

// IsTerminal returns true if the step is in a final state.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusCompleted || s == StepStatusFailed
}

// Step represents one unit of work in a workflow, mapping to a single Task
// on a remote agent.
type Step struct {
	ID          string         `json:"step_id"`
	Name        string         `json:"name"`
	AgentID     string         `json:"agent_id,omitempty"`
	Capability  string         `json:"capability"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	DependsOn   []string       `json:"depends_on,omitempty"`
	Status      StepStatus     `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Workflow organizes multiple Steps as a DAG with fail-fast semantics.
type Workflow struct {
	ID          string         `json:"workflow_id"`
	Name        string         `json:"name"`
	Status      Status         `json:"status"`
	Steps       []Step         `json:"steps"`
	Context     map[string]any `json:"context"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// StepByID returns a pointer to the step with the given ID, or nil.
func (w *Workflow) StepByID(id string) *Step {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i]
		}
	}
	return nil
}

// Clone returns a deep copy safe to hand to callers outside the store lock.
func (w *Workflow) Clone() *Workflow {
	cp := *w
	cp.Steps = make([]Step, len(w.Steps))
	for i := range w.Steps {
		s := w.Steps[i]
		s.Parameters = cloneMap(s.Parameters)
		s.Result = cloneMap(s.Result)
		s.DependsOn = append([]string(nil), s.DependsOn...)
		cp.Steps[i] = s
	}
	cp.Context = cloneMap(w.Context)
	cp.Parameters = cloneMap(w.Parameters)
	return &cp
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
