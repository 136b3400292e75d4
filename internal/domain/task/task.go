// Package task defines the Task domain entity and its lifecycle state machine.
package task

import "time"

// Status represents the current state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal lifecycle
// transition. The only legal paths are pending → in_progress → completed |
// failed, and pending | in_progress → canceled.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInProgress || next == StatusCanceled
	case StatusInProgress:
		return next == StatusCompleted || next == StatusFailed || next == StatusCanceled
	}
	return false
}

// Priority orders tasks for dispatch. Priority is advisory metadata on the
// wire; the dispatcher runs tasks as they arrive.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Error carries a machine-readable kind plus a human message for a failed
// task or workflow step.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Task represents one request-response unit of work sent to a specific
// agent. Tasks are owned by the agent process that created them; callers
// only ever see serialized snapshots.
type Task struct {
	ID          string         `json:"task_id"`
	Capability  string         `json:"capability"`
	Parameters  map[string]any `json:"parameters"`
	Priority    Priority       `json:"priority"`
	Status      Status         `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	Error       *Error         `json:"error,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Clone returns a snapshot copy safe to hand to callers while the owning
// store keeps mutating the original.
func (t *Task) Clone() *Task {
	c := *t
	if t.Parameters != nil {
		c.Parameters = make(map[string]any, len(t.Parameters))
		for k, v := range t.Parameters {
			c.Parameters[k] = v
		}
	}
	if t.Result != nil {
		c.Result = make(map[string]any, len(t.Result))
		for k, v := range t.Result {
			c.Result[k] = v
		}
	}
	if t.Error != nil {
		e := *t.Error
		c.Error = &e
	}
	return &c
}

// Part is a typed payload fragment of a message.
type Part struct {
	Type     string `json:"type"` // "text" | "data" | "file"
	Content  string `json:"content"`
	Filename string `json:"filename,omitempty"`
}

// Message is an auxiliary exchange tied to a task. The per-task message
// list is append-only.
type Message struct {
	ID        string         `json:"message_id"`
	TaskID    string         `json:"task_id"`
	FromAgent string         `json:"from_agent"`
	ToAgent   string         `json:"to_agent"`
	Content   map[string]any `json:"content"`
	Parts     []Part         `json:"parts,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
