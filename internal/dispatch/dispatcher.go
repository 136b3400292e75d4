package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trademesh/trademesh/internal/domain"
	"github.com/trademesh/trademesh/internal/domain/task"
	"github.com/trademesh/trademesh/internal/port/a2a"
)

// HandlerFunc executes one capability invocation. Returned maps become the
// task result; returned errors mark the task failed.
type HandlerFunc func(ctx context.Context, params map[string]any) (map[string]any, error)

// Dispatcher routes created tasks to registered capability handlers. Task
// creation returns immediately; handler execution happens on its own
// goroutine and reports back through the store.
type Dispatcher struct {
	agentID  string
	store    *Store
	handlers map[string]HandlerFunc
	log      *slog.Logger

	// callbacks are fire-and-forget POSTs of the terminal task snapshot.
	httpClient *http.Client

	wg sync.WaitGroup
}

// New creates a dispatcher with no registered capabilities.
func New(agentID string, store *Store, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		agentID:    agentID,
		store:      store,
		handlers:   make(map[string]HandlerFunc),
		log:        log,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// RegisterHandler binds a capability name to its handler. Duplicate
// registration replaces the previous handler.
func (d *Dispatcher) RegisterHandler(name string, h HandlerFunc) {
	d.handlers[name] = h
}

// Capabilities returns the registered capability names, sorted.
func (d *Dispatcher) Capabilities() []string {
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create validates the request, stores a pending task, and kicks off
// asynchronous execution. An unsupported capability is rejected before
// anything is stored.
func (d *Dispatcher) Create(_ context.Context, req a2a.CreateTaskRequest) (*task.Task, error) {
	if _, ok := d.handlers[req.Capability]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCapabilityNotSupported, req.Capability)
	}

	priority := task.Priority(req.Priority)
	if req.Priority == "" {
		priority = task.PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("%w: unknown priority %q", domain.ErrValidation, req.Priority)
	}

	now := time.Now()
	t := &task.Task{
		ID:          uuid.New().String(),
		Capability:  req.Capability,
		Parameters:  req.Parameters,
		Priority:    priority,
		Status:      task.StatusPending,
		CallbackURL: req.CallbackURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	d.store.Put(t)

	d.wg.Add(1)
	go d.process(t.ID)

	return t.Clone(), nil
}

// Get returns a snapshot of the task.
func (d *Dispatcher) Get(_ context.Context, id string) (*task.Task, error) {
	return d.store.Get(id)
}

// Update applies an administrative override. Any subset of status, result,
// and error may be set; a status, when present, is subject to the normal
// transition rules, while result-only or error-only updates leave the
// status alone.
func (d *Dispatcher) Update(_ context.Context, id string, req a2a.UpdateTaskRequest) (*task.Task, error) {
	mutate := func(t *task.Task) {
		if req.Result != nil {
			t.Result = req.Result
		}
		if req.Error != "" {
			t.Error = &task.Error{Kind: domain.KindInternal, Message: req.Error}
		}
	}

	if req.Status == "" {
		return d.store.Apply(id, mutate)
	}

	next := task.Status(req.Status)
	switch next {
	case task.StatusPending, task.StatusInProgress, task.StatusCompleted, task.StatusFailed, task.StatusCanceled:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, req.Status)
	}

	return d.store.Transition(id, next, mutate)
}

// Cancel marks the task canceled. An in-flight handler is not interrupted;
// its eventual result is dropped because the terminal transition from
// canceled is illegal.
func (d *Dispatcher) Cancel(_ context.Context, id string) (*task.Task, error) {
	return d.store.Transition(id, task.StatusCanceled, nil)
}

// AddMessage appends a message to the task's exchange log.
func (d *Dispatcher) AddMessage(_ context.Context, taskID string, req a2a.SendMessageRequest) (*task.Message, error) {
	msg := task.Message{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		FromAgent: req.FromAgent,
		ToAgent:   d.agentID,
		Content:   req.Content,
		Parts:     req.Parts,
		Timestamp: time.Now(),
	}
	if req.ToAgent != "" {
		msg.ToAgent = req.ToAgent
	}
	if err := d.store.AppendMessage(taskID, msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Messages returns the task's messages in append order.
func (d *Dispatcher) Messages(_ context.Context, taskID string) ([]task.Message, error) {
	return d.store.Messages(taskID)
}

// Wait blocks until all in-flight handlers have finished. Used during
// graceful shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) process(id string) {
	defer d.wg.Done()

	t, err := d.store.Transition(id, task.StatusInProgress, nil)
	if err != nil {
		// Canceled before execution started.
		return
	}

	result, err := d.invoke(t.Capability, t.Parameters)

	var final *task.Task
	if err != nil {
		final, err = d.store.Transition(id, task.StatusFailed, func(t *task.Task) {
			t.Error = &task.Error{Kind: domain.Kind(err), Message: err.Error()}
		})
	} else {
		final, err = d.store.Transition(id, task.StatusCompleted, func(t *task.Task) {
			t.Result = result
		})
	}
	if err != nil {
		// Canceled mid-flight; the handler outcome is dropped.
		d.log.Info("task outcome dropped", "task_id", id, "error", err)
		return
	}

	d.log.Info("task finished", "task_id", id, "capability", final.Capability, "status", final.Status)
	if final.CallbackURL != "" {
		d.postCallback(final)
	}
}

// invoke runs the handler with panic isolation: a panicking handler fails
// its own task and nothing else.
func (d *Dispatcher) invoke(capability string, params map[string]any) (result map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %s panicked: %v", domain.ErrHandlerFailure, capability, r)
		}
	}()

	handler := d.handlers[capability]
	result, err = handler(context.Background(), params)
	if err != nil {
		err = fmt.Errorf("%w: %s: %v", domain.ErrHandlerFailure, capability, err)
	}
	return result, err
}

func (d *Dispatcher) postCallback(t *task.Task) {
	body, err := json.Marshal(t)
	if err != nil {
		d.log.Error("callback marshal failed", "task_id", t.ID, "error", err)
		return
	}
	resp, err := d.httpClient.Post(t.CallbackURL, "application/json", bytes.NewReader(body))
	if err != nil {
		d.log.Warn("callback delivery failed", "task_id", t.ID, "url", t.CallbackURL, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		d.log.Warn("callback rejected", "task_id", t.ID, "url", t.CallbackURL, "status", resp.StatusCode)
	}
}
