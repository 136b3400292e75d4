package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/trademesh/trademesh/internal/adapter/otel"
	"github.com/trademesh/trademesh/internal/adapter/ws"
	"github.com/trademesh/trademesh/internal/config"
	"github.com/trademesh/trademesh/internal/domain"
	"github.com/trademesh/trademesh/internal/domain/agent"
	"github.com/trademesh/trademesh/internal/domain/task"
	"github.com/trademesh/trademesh/internal/domain/workflow"
	"github.com/trademesh/trademesh/internal/port/a2a"
	"github.com/trademesh/trademesh/internal/port/broadcast"
	"github.com/trademesh/trademesh/internal/port/eventbus"
)

// AgentDirectory resolves capabilities to registered agents.
// Implemented by registry.Registry.
type AgentDirectory interface {
	Get(id string) (*agent.Agent, error)
	ResolveByCapability(capability string) (*agent.Agent, error)
	Mark(id string, status agent.Status) error
}

// TaskRunner is the remote-execution surface the engine needs from the A2A
// client.
type TaskRunner interface {
	Discover(ctx context.Context, endpoint string) (a2a.AgentCard, error)
	Submit(ctx context.Context, endpoint string, req a2a.CreateTaskRequest) (*task.Task, error)
	AwaitCompletion(ctx context.Context, endpoint, id string, interval, timeout time.Duration) (*task.Task, error)
}

// Engine runs workflows: one scheduling loop per workflow, launching ready
// steps concurrently and merging their results into the shared context.
type Engine struct {
	cfg     config.Engine
	store   *workflowStore
	agents  AgentDirectory
	client  TaskRunner
	hub     broadcast.Broadcaster
	bus     eventbus.Publisher
	metrics *otel.Metrics
	log     *slog.Logger

	cancelMu sync.Mutex
	cancels  map[string]context.CancelFunc

	wg sync.WaitGroup
}

// NewEngine creates a workflow engine. hub, bus, and metrics may be nil.
func NewEngine(cfg config.Engine, agents AgentDirectory, client TaskRunner, hub broadcast.Broadcaster, bus eventbus.Publisher, metrics *otel.Metrics, log *slog.Logger) *Engine {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 2 * time.Minute
	}
	return &Engine{
		cfg:     cfg,
		store:   newWorkflowStore(),
		agents:  agents,
		client:  client,
		hub:     hub,
		bus:     bus,
		metrics: metrics,
		log:     log,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Templates returns the names of the available workflow templates, sorted.
func (e *Engine) Templates() []string {
	names := make([]string, 0, len(workflow.Presets))
	for name := range workflow.Presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Create instantiates a named template with the given parameters, stores
// the workflow, and begins executing it. The returned snapshot is taken
// before execution starts, so its status is CREATED.
func (e *Engine) Create(_ context.Context, name string, params map[string]any) (*workflow.Workflow, error) {
	tmpl, ok := workflow.Presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown workflow %q (available: %v)", domain.ErrValidation, name, e.Templates())
	}

	wf, err := tmpl.Instantiate(params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	wf.ID = uuid.New().String()
	wf.CreatedAt = time.Now()
	e.store.put(wf)

	e.log.Info("workflow created", "workflow_id", wf.ID, "name", wf.Name, "steps", len(wf.Steps))
	e.emitWorkflow(wf, eventbus.SubjectWorkflowCreated)

	e.wg.Add(1)
	go e.run(wf.ID)

	return wf, nil
}

// Get returns a full workflow snapshot including per-step status.
func (e *Engine) Get(_ context.Context, id string) (*workflow.Workflow, error) {
	return e.store.get(id)
}

// List returns all workflows in creation order.
func (e *Engine) List(_ context.Context) []*workflow.Workflow {
	return e.store.list()
}

// Cancel pauses a workflow: no new steps are scheduled, but steps already
// submitted to remote agents are left to finish.
func (e *Engine) Cancel(_ context.Context, id string) (*workflow.Workflow, error) {
	wf, err := e.store.mutate(id, func(w *workflow.Workflow) error {
		if w.Status.IsTerminal() {
			return fmt.Errorf("%w: workflow is already %s", domain.ErrValidation, w.Status)
		}
		w.Status = workflow.StatusPaused
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.cancelMu.Lock()
	if cancel, ok := e.cancels[id]; ok {
		cancel()
	}
	e.cancelMu.Unlock()

	e.log.Info("workflow paused", "workflow_id", id)
	e.emitWorkflow(wf, eventbus.SubjectWorkflowPaused)
	return wf, nil
}

// Wait blocks until all running workflow loops have finished. Used during
// graceful shutdown.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// launch is one claimed ready step with its parameters already resolved.
type launch struct {
	stepID     string
	stepName   string
	agentID    string
	capability string
	params     map[string]any
}

// outcome is the result of one step execution.
type outcome struct {
	stepID  string
	agentID string
	result  map[string]any
	err     error
}

// run is the per-workflow scheduling loop. Each iteration claims the ready
// set, launches those steps concurrently, then blocks for one outcome.
// After a failure or pause, no new steps are scheduled but in-flight steps
// are drained.
func (e *Engine) run(id string) {
	defer e.wg.Done()

	schedCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	e.cancelMu.Lock()
	e.cancels[id] = cancel
	e.cancelMu.Unlock()
	defer func() {
		e.cancelMu.Lock()
		delete(e.cancels, id)
		e.cancelMu.Unlock()
	}()

	started, err := e.store.mutate(id, func(w *workflow.Workflow) error {
		if w.Status != workflow.StatusCreated {
			return fmt.Errorf("workflow is %s, not startable", w.Status)
		}
		now := time.Now()
		w.Status = workflow.StatusRunning
		w.StartedAt = &now
		return nil
	})
	if err != nil {
		// Paused before the loop began.
		return
	}
	e.emitWorkflow(started, eventbus.SubjectWorkflowStarted)

	_, span := otel.StartWorkflowSpan(context.Background(), id, started.Name)
	defer span.End()

	results := make(chan outcome)
	inflight := 0

	for {
		if schedCtx.Err() == nil {
			for _, l := range e.claimReady(id, e.cfg.MaxParallel-inflight) {
				inflight++
				go func(l launch) {
					result, agentID, err := e.executeStep(id, l)
					results <- outcome{stepID: l.stepID, agentID: agentID, result: result, err: err}
				}(l)
			}
		}

		if inflight == 0 {
			break
		}
		o := <-results
		inflight--
		e.applyOutcome(id, o)
	}

	e.finalize(id, started)
}

// claimReady atomically marks up to limit ready steps RUNNING and resolves
// their parameter templates against the workflow context. A step whose
// template cannot be resolved fails immediately and fails the workflow.
func (e *Engine) claimReady(id string, limit int) []launch {
	if limit <= 0 {
		return nil
	}

	var launches []launch
	var emits []ws.StepStatusEvent
	failed := false

	wf, err := e.store.mutate(id, func(w *workflow.Workflow) error {
		if w.Status != workflow.StatusRunning {
			return nil
		}
		for _, stepID := range workflow.ReadySteps(w.Steps) {
			if len(launches) >= limit {
				break
			}
			step := w.StepByID(stepID)
			now := time.Now()

			params, err := workflow.ResolveParameters(step.Parameters, w.Parameters, w.Context)
			if err != nil {
				step.Status = workflow.StepStatusFailed
				step.Error = domain.KindValidation + ": " + err.Error()
				step.CompletedAt = &now
				w.Status = workflow.StatusFailed
				failed = true
				emits = append(emits, ws.StepStatusEvent{
					WorkflowID: w.ID, StepID: step.ID, StepName: step.Name,
					Status: string(step.Status), Error: step.Error,
				})
				break
			}

			step.Status = workflow.StepStatusRunning
			step.StartedAt = &now
			launches = append(launches, launch{
				stepID:     step.ID,
				stepName:   step.Name,
				agentID:    step.AgentID,
				capability: step.Capability,
				params:     params,
			})
			emits = append(emits, ws.StepStatusEvent{
				WorkflowID: w.ID, StepID: step.ID, StepName: step.Name,
				Status: string(step.Status),
			})
		}
		return nil
	})
	if err != nil {
		e.log.Error("claim ready steps", "workflow_id", id, "error", err)
		return nil
	}

	for _, ev := range emits {
		e.emitStep(ev)
	}
	if failed {
		e.emitWorkflow(wf, eventbus.SubjectWorkflowFailed)
	}
	return launches
}

// executeStep runs one step against a remote agent: resolve the agent,
// verify its card, submit the task, and poll it to a terminal state. Step
// execution does not use the scheduling context; canceling a workflow
// never interrupts work already submitted to an agent.
func (e *Engine) executeStep(workflowID string, l launch) (map[string]any, string, error) {
	ctx, span := otel.StartStepSpan(context.Background(), workflowID, l.stepID, l.capability)
	defer span.End()
	startedAt := time.Now()

	var ag *agent.Agent
	var err error
	if l.agentID != "" {
		ag, err = e.agents.Get(l.agentID)
	} else {
		ag, err = e.agents.ResolveByCapability(l.capability)
	}
	if err != nil {
		return nil, "", err
	}

	card, err := e.client.Discover(ctx, ag.Endpoint)
	if err != nil {
		if errors.Is(err, domain.ErrUnreachable) {
			e.markAgentError(ag.ID)
		}
		return nil, ag.ID, err
	}
	if !slices.Contains(card.Names(), l.capability) {
		return nil, ag.ID, fmt.Errorf("%w: agent %s does not advertise %s", domain.ErrCapabilityNotSupported, ag.ID, l.capability)
	}

	submitted, err := e.client.Submit(ctx, ag.Endpoint, a2a.CreateTaskRequest{
		Capability: l.capability,
		Parameters: l.params,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUnreachable) {
			e.markAgentError(ag.ID)
		}
		return nil, ag.ID, err
	}

	final, err := e.client.AwaitCompletion(ctx, ag.Endpoint, submitted.ID, e.cfg.PollInterval, e.cfg.StepTimeout)
	if err != nil {
		return nil, ag.ID, err
	}

	if e.metrics != nil {
		e.metrics.StepsExecuted.Add(ctx, 1)
		e.metrics.StepDuration.Record(ctx, time.Since(startedAt).Seconds())
	}

	switch final.Status {
	case task.StatusCompleted:
		return final.Result, ag.ID, nil
	case task.StatusCanceled:
		return nil, ag.ID, fmt.Errorf("%w: task %s was canceled on the agent", domain.ErrHandlerFailure, final.ID)
	default:
		msg := "task failed"
		if final.Error != nil {
			msg = final.Error.Message
		}
		return nil, ag.ID, fmt.Errorf("%w: %s", domain.ErrHandlerFailure, msg)
	}
}

// applyOutcome records a finished step. Success merges the result into the
// workflow context under the step's name; failure fails the workflow
// unless it was already paused.
func (e *Engine) applyOutcome(id string, o outcome) {
	var emit ws.StepStatusEvent
	failed := false

	wf, err := e.store.mutate(id, func(w *workflow.Workflow) error {
		step := w.StepByID(o.stepID)
		if step == nil || step.Status != workflow.StepStatusRunning {
			return nil
		}
		now := time.Now()
		step.AgentID = o.agentID
		step.CompletedAt = &now

		if o.err != nil {
			step.Status = workflow.StepStatusFailed
			step.Error = domain.Kind(o.err) + ": " + o.err.Error()
			if w.Status == workflow.StatusRunning {
				w.Status = workflow.StatusFailed
				failed = true
			}
		} else {
			step.Status = workflow.StepStatusCompleted
			step.Result = o.result
			w.Context[step.Name] = o.result
		}

		emit = ws.StepStatusEvent{
			WorkflowID: w.ID, StepID: step.ID, StepName: step.Name,
			AgentID: o.agentID, Status: string(step.Status), Error: step.Error,
		}
		return nil
	})
	if err != nil {
		e.log.Error("apply step outcome", "workflow_id", id, "step_id", o.stepID, "error", err)
		return
	}

	if o.err != nil {
		e.log.Warn("step failed", "workflow_id", id, "step_id", o.stepID, "error", o.err)
	} else {
		e.log.Info("step completed", "workflow_id", id, "step_id", o.stepID, "agent_id", o.agentID)
	}

	e.emitStep(emit)
	if failed {
		e.emitWorkflow(wf, eventbus.SubjectWorkflowFailed)
	}
}

// finalize settles the workflow's terminal status once the loop has
// drained.
func (e *Engine) finalize(id string, started *workflow.Workflow) {
	var subject string
	wf, err := e.store.mutate(id, func(w *workflow.Workflow) error {
		now := time.Now()
		switch {
		case w.Status == workflow.StatusRunning && workflow.AllCompleted(w.Steps):
			w.Status = workflow.StatusCompleted
			w.CompletedAt = &now
			subject = eventbus.SubjectWorkflowCompleted
		case w.Status == workflow.StatusFailed:
			w.CompletedAt = &now
		case w.Status == workflow.StatusRunning:
			// Drained with non-terminal steps left; treat as failed.
			w.Status = workflow.StatusFailed
			w.CompletedAt = &now
			subject = eventbus.SubjectWorkflowFailed
		}
		return nil
	})
	if err != nil {
		e.log.Error("finalize workflow", "workflow_id", id, "error", err)
		return
	}

	if e.metrics != nil {
		ctx := context.Background()
		switch wf.Status {
		case workflow.StatusCompleted:
			e.metrics.WorkflowsCompleted.Add(ctx, 1)
		case workflow.StatusFailed:
			e.metrics.WorkflowsFailed.Add(ctx, 1)
		}
		if started.StartedAt != nil {
			e.metrics.WorkflowDuration.Record(ctx, time.Since(*started.StartedAt).Seconds())
		}
	}

	e.log.Info("workflow finished", "workflow_id", id, "status", wf.Status)
	if subject != "" {
		e.emitWorkflow(wf, subject)
	}
}

func (e *Engine) emitWorkflow(wf *workflow.Workflow, subject string) {
	ctx := context.Background()
	if e.hub != nil {
		e.hub.BroadcastEvent(ctx, ws.EventWorkflowStatus, ws.WorkflowStatusEvent{
			WorkflowID: wf.ID,
			Name:       wf.Name,
			Status:     string(wf.Status),
		})
	}
	if e.bus != nil {
		payload, err := json.Marshal(map[string]any{
			"workflow_id": wf.ID,
			"name":        wf.Name,
			"status":      wf.Status,
		})
		if err == nil {
			if err := e.bus.Publish(ctx, subject, payload); err != nil {
				e.log.Warn("event publish failed", "subject", subject, "error", err)
			}
		}
	}
	if e.metrics != nil && subject == eventbus.SubjectWorkflowStarted {
		e.metrics.WorkflowsStarted.Add(ctx, 1)
	}
}

// markAgentError flips an unreachable agent to ERROR and announces the
// status change.
func (e *Engine) markAgentError(id string) {
	if err := e.agents.Mark(id, agent.StatusError); err != nil {
		return
	}
	ctx := context.Background()
	ev := ws.AgentStatusEvent{AgentID: id, Status: string(agent.StatusError)}
	if e.hub != nil {
		e.hub.BroadcastEvent(ctx, ws.EventAgentStatus, ev)
	}
	if e.bus != nil {
		if payload, err := json.Marshal(ev); err == nil {
			if err := e.bus.Publish(ctx, eventbus.SubjectAgentStatus, payload); err != nil {
				e.log.Warn("event publish failed", "subject", eventbus.SubjectAgentStatus, "error", err)
			}
		}
	}
}

func (e *Engine) emitStep(ev ws.StepStatusEvent) {
	if ev.WorkflowID == "" {
		return
	}
	ctx := context.Background()
	if e.hub != nil {
		e.hub.BroadcastEvent(ctx, ws.EventStepStatus, ev)
	}
	if e.bus != nil {
		subject := eventbus.SubjectStepStarted
		switch ev.Status {
		case string(workflow.StepStatusCompleted):
			subject = eventbus.SubjectStepCompleted
		case string(workflow.StepStatusFailed):
			subject = eventbus.SubjectStepFailed
		}
		if payload, err := json.Marshal(ev); err == nil {
			if err := e.bus.Publish(ctx, subject, payload); err != nil {
				e.log.Warn("event publish failed", "subject", subject, "error", err)
			}
		}
	}
}
