package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/trademesh/trademesh/internal/config"
	"github.com/trademesh/trademesh/internal/domain"
	"github.com/trademesh/trademesh/internal/domain/agent"
	"github.com/trademesh/trademesh/internal/domain/task"
	"github.com/trademesh/trademesh/internal/domain/workflow"
	"github.com/trademesh/trademesh/internal/port/a2a"
	"github.com/trademesh/trademesh/internal/service"
)

type fakeDirectory struct {
	mu     sync.Mutex
	agents []*agent.Agent
	marked map[string]agent.Status
}

func newFakeDirectory(agents ...*agent.Agent) *fakeDirectory {
	return &fakeDirectory{agents: agents, marked: make(map[string]agent.Status)}
}

func (d *fakeDirectory) Get(id string) (*agent.Agent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.agents {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
}

func (d *fakeDirectory) ResolveByCapability(capability string) (*agent.Agent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, a := range d.agents {
		if a.HasCapability(capability) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", capability, domain.ErrCapabilityUnresolved)
}

func (d *fakeDirectory) Mark(id string, status agent.Status) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.marked[id] = status
	return nil
}

type submission struct {
	capability string
	params     map[string]any
}

// fakeRunner executes capabilities in-process. Each capability maps to a
// handler; a nil handler map entry means the step fails. A capability
// listed in block is held until release is closed.
type fakeRunner struct {
	mu       sync.Mutex
	handlers map[string]func(params map[string]any) (map[string]any, error)
	submits  []submission
	pending  map[string]submission
	block    string
	release  chan struct{}
	seq      int
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		handlers: make(map[string]func(params map[string]any) (map[string]any, error)),
		pending:  make(map[string]submission),
	}
}

func (r *fakeRunner) handle(capability string, fn func(params map[string]any) (map[string]any, error)) {
	r.handlers[capability] = fn
}

func (r *fakeRunner) Discover(_ context.Context, _ string) (a2a.AgentCard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	card := a2a.AgentCard{ID: "fake", Name: "fake"}
	for name := range r.handlers {
		card.Capabilities = append(card.Capabilities, a2a.Capability{Name: name})
	}
	return card, nil
}

func (r *fakeRunner) Submit(_ context.Context, _ string, req a2a.CreateTaskRequest) (*task.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	id := fmt.Sprintf("task-%d", r.seq)
	sub := submission{capability: req.Capability, params: req.Parameters}
	r.submits = append(r.submits, sub)
	r.pending[id] = sub
	return &task.Task{ID: id, Capability: req.Capability, Status: task.StatusInProgress}, nil
}

func (r *fakeRunner) AwaitCompletion(_ context.Context, _, id string, _, _ time.Duration) (*task.Task, error) {
	r.mu.Lock()
	sub, ok := r.pending[id]
	blocked := r.block != "" && sub.capability == r.block
	release := r.release
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	if blocked {
		<-release
	}

	fn := r.handlers[sub.capability]
	if fn == nil {
		return &task.Task{ID: id, Status: task.StatusFailed, Error: &task.Error{
			Kind:    domain.KindHandlerFailure,
			Message: sub.capability + " blew up",
		}}, nil
	}
	result, err := fn(sub.params)
	if err != nil {
		return &task.Task{ID: id, Status: task.StatusFailed, Error: &task.Error{
			Kind:    domain.KindHandlerFailure,
			Message: err.Error(),
		}}, nil
	}
	return &task.Task{ID: id, Status: task.StatusCompleted, Result: result}, nil
}

func (r *fakeRunner) submitted(capability string) (map[string]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.submits {
		if s.capability == capability {
			return s.params, true
		}
	}
	return nil, false
}

func okHandler(result map[string]any) func(map[string]any) (map[string]any, error) {
	return func(map[string]any) (map[string]any, error) { return result, nil }
}

func testAgent(capabilities ...string) *agent.Agent {
	return &agent.Agent{
		ID:           "agent-1",
		Name:         "test agent",
		Endpoint:     "http://agent.test",
		Capabilities: capabilities,
		Status:       agent.StatusAvailable,
	}
}

func newTestEngine(dir *fakeDirectory, runner *fakeRunner) *service.Engine {
	cfg := config.Engine{MaxParallel: 4, PollInterval: time.Millisecond, StepTimeout: 5 * time.Second}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return service.NewEngine(cfg, dir, runner, nil, nil, nil, log)
}

func awaitTerminal(t *testing.T, e *service.Engine, id string) *workflow.Workflow {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		wf, err := e.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("get workflow: %v", err)
		}
		if wf.Status.IsTerminal() {
			return wf
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("workflow %s never reached a terminal status", id)
	return nil
}

func TestEngineRunsChainToCompletion(t *testing.T) {
	dir := newFakeDirectory(testAgent("market_analysis", "assess_trade_risk", "execute_trade", "log_trade"))
	runner := newFakeRunner()
	runner.handle("market_analysis", okHandler(map[string]any{"confidence": 0.82, "recommendation": "buy"}))
	runner.handle("assess_trade_risk", okHandler(map[string]any{"approval": true, "risk_score": 31.0}))
	runner.handle("execute_trade", okHandler(map[string]any{"order_id": "ord-77", "status": "filled"}))
	runner.handle("log_trade", okHandler(map[string]any{"trade_number": 1.0}))

	e := newTestEngine(dir, runner)
	wf, err := e.Create(context.Background(), "market_analysis_to_trade", map[string]any{
		"trading_pair": "BTC/USD",
		"side":         "buy",
		"quantity":     0.25,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if wf.Status != workflow.StatusCreated {
		t.Fatalf("status at create = %s, want %s", wf.Status, workflow.StatusCreated)
	}

	final := awaitTerminal(t, e, wf.ID)
	if final.Status != workflow.StatusCompleted {
		t.Fatalf("status = %s, want %s", final.Status, workflow.StatusCompleted)
	}
	for _, step := range final.Steps {
		if step.Status != workflow.StepStatusCompleted {
			t.Fatalf("step %s = %s, want %s", step.ID, step.Status, workflow.StepStatusCompleted)
		}
		if step.StartedAt == nil || step.CompletedAt == nil {
			t.Fatalf("step %s missing timestamps", step.ID)
		}
	}
	if final.CompletedAt == nil {
		t.Fatal("workflow CompletedAt not set")
	}
}

func TestEngineResolvesStepResultsIntoLaterParameters(t *testing.T) {
	dir := newFakeDirectory(testAgent("market_analysis", "assess_trade_risk", "execute_trade", "log_trade"))
	runner := newFakeRunner()
	runner.handle("market_analysis", okHandler(map[string]any{"confidence": 0.91}))
	runner.handle("assess_trade_risk", okHandler(map[string]any{"approval": true}))
	runner.handle("execute_trade", okHandler(map[string]any{"order_id": "ord-42"}))
	runner.handle("log_trade", okHandler(map[string]any{}))

	e := newTestEngine(dir, runner)
	wf, err := e.Create(context.Background(), "market_analysis_to_trade", map[string]any{
		"trading_pair": "ETH/USD",
		"side":         "sell",
		"quantity":     2.0,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	awaitTerminal(t, e, wf.ID)

	params, ok := runner.submitted("assess_trade_risk")
	if !ok {
		t.Fatal("assess_trade_risk was never submitted")
	}
	if got := params["confidence"]; got != 0.91 {
		t.Fatalf("confidence = %v (%T), want 0.91 float64", got, got)
	}
	if got := params["quantity"]; got != 2.0 {
		t.Fatalf("quantity = %v (%T), want 2.0 float64", got, got)
	}

	params, ok = runner.submitted("log_trade")
	if !ok {
		t.Fatal("log_trade was never submitted")
	}
	if got := params["order_id"]; got != "ord-42" {
		t.Fatalf("order_id = %v, want ord-42", got)
	}
}

func TestEngineFailFastLeavesDependentsPending(t *testing.T) {
	dir := newFakeDirectory(testAgent("market_analysis", "assess_trade_risk", "execute_trade", "log_trade"))
	runner := newFakeRunner()
	runner.handle("market_analysis", func(map[string]any) (map[string]any, error) {
		return nil, errors.New("feed offline")
	})
	runner.handle("assess_trade_risk", okHandler(map[string]any{}))
	runner.handle("execute_trade", okHandler(map[string]any{}))
	runner.handle("log_trade", okHandler(map[string]any{}))

	e := newTestEngine(dir, runner)
	wf, err := e.Create(context.Background(), "market_analysis_to_trade", map[string]any{
		"trading_pair": "BTC/USD",
		"side":         "buy",
		"quantity":     1.0,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	final := awaitTerminal(t, e, wf.ID)
	if final.Status != workflow.StatusFailed {
		t.Fatalf("status = %s, want %s", final.Status, workflow.StatusFailed)
	}

	analyze := final.StepByID("analyze")
	if analyze.Status != workflow.StepStatusFailed {
		t.Fatalf("analyze = %s, want %s", analyze.Status, workflow.StepStatusFailed)
	}
	if !strings.Contains(analyze.Error, "feed offline") {
		t.Fatalf("analyze error %q does not mention the failure", analyze.Error)
	}
	for _, id := range []string{"assess", "execute", "log"} {
		if got := final.StepByID(id).Status; got != workflow.StepStatusPending {
			t.Fatalf("step %s = %s, want %s", id, got, workflow.StepStatusPending)
		}
	}
	if _, submitted := runner.submitted("assess_trade_risk"); submitted {
		t.Fatal("dependent step was submitted after its dependency failed")
	}
}

func TestEngineRunsIndependentStepsInParallel(t *testing.T) {
	dir := newFakeDirectory(testAgent(
		"generate_portfolio_valuation", "market_analysis", "execute_trade", "update_portfolio",
	))
	runner := newFakeRunner()

	var mu sync.Mutex
	running := 0
	peak := 0
	slow := func(result map[string]any) func(map[string]any) (map[string]any, error) {
		return func(map[string]any) (map[string]any, error) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			time.Sleep(30 * time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
			return result, nil
		}
	}
	runner.handle("generate_portfolio_valuation", slow(map[string]any{"total_value": 61000.0}))
	runner.handle("market_analysis", slow(map[string]any{"recommendation": "buy"}))
	runner.handle("execute_trade", okHandler(map[string]any{"order_id": "ord-9"}))
	runner.handle("update_portfolio", okHandler(map[string]any{"updated": true}))

	e := newTestEngine(dir, runner)
	wf, err := e.Create(context.Background(), "portfolio_rebalance", map[string]any{
		"trading_pair":      "BTC/USD",
		"target_allocation": 0.1,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	final := awaitTerminal(t, e, wf.ID)
	if final.Status != workflow.StatusCompleted {
		t.Fatalf("status = %s, want %s", final.Status, workflow.StatusCompleted)
	}
	mu.Lock()
	defer mu.Unlock()
	if peak < 2 {
		t.Fatalf("peak concurrency = %d, want the two independent steps overlapping", peak)
	}

	params, _ := runner.submitted("execute_trade")
	if got := params["side"]; got != "buy" {
		t.Fatalf("rebalance side = %v, want recommendation from analysis", got)
	}
}

func TestEngineCancelPausesAndStopsScheduling(t *testing.T) {
	dir := newFakeDirectory(testAgent("assess_trade_risk", "monitor_portfolio_risk"))
	runner := newFakeRunner()
	runner.handle("assess_trade_risk", okHandler(map[string]any{"approval": true}))
	runner.handle("monitor_portfolio_risk", okHandler(map[string]any{"risk_level": "low"}))
	runner.block = "assess_trade_risk"
	runner.release = make(chan struct{})

	e := newTestEngine(dir, runner)
	wf, err := e.Create(context.Background(), "risk_assessment", map[string]any{
		"trading_pair": "BTC/USD",
		"side":         "buy",
		"quantity":     0.5,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Wait until the first step is in flight, then pause the workflow.
	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := e.Get(context.Background(), wf.ID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.StepByID("trade_risk").Status == workflow.StepStatusRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first step never started")
		}
		time.Sleep(time.Millisecond)
	}

	paused, err := e.Cancel(context.Background(), wf.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if paused.Status != workflow.StatusPaused {
		t.Fatalf("status = %s, want %s", paused.Status, workflow.StatusPaused)
	}

	close(runner.release)
	e.Wait()

	final, err := e.Get(context.Background(), wf.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != workflow.StatusPaused {
		t.Fatalf("status after drain = %s, want %s", final.Status, workflow.StatusPaused)
	}
	// The in-flight step drains and records its result.
	if got := final.StepByID("trade_risk").Status; got != workflow.StepStatusCompleted {
		t.Fatalf("in-flight step = %s, want %s", got, workflow.StepStatusCompleted)
	}
	if got := final.StepByID("portfolio_risk").Status; got != workflow.StepStatusPending {
		t.Fatalf("dependent step = %s, want %s", got, workflow.StepStatusPending)
	}
	if _, submitted := runner.submitted("monitor_portfolio_risk"); submitted {
		t.Fatal("step was scheduled after the workflow was paused")
	}

	if _, err := e.Cancel(context.Background(), wf.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("cancel paused workflow: err = %v, want %v", err, domain.ErrValidation)
	}
}

func TestEngineRejectsUnknownTemplate(t *testing.T) {
	e := newTestEngine(newFakeDirectory(), newFakeRunner())
	_, err := e.Create(context.Background(), "nonexistent", nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want %v", err, domain.ErrValidation)
	}
	if !strings.Contains(err.Error(), "market_analysis_to_trade") {
		t.Fatalf("error %q does not list available templates", err)
	}
}

func TestEngineRejectsMissingRequiredParameter(t *testing.T) {
	e := newTestEngine(newFakeDirectory(), newFakeRunner())
	_, err := e.Create(context.Background(), "market_analysis_to_trade", map[string]any{
		"trading_pair": "BTC/USD",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want %v", err, domain.ErrValidation)
	}
}

func TestEngineFailsWhenNoAgentProvidesCapability(t *testing.T) {
	dir := newFakeDirectory(testAgent("log_trade"))
	runner := newFakeRunner()
	runner.handle("log_trade", okHandler(map[string]any{}))

	e := newTestEngine(dir, runner)
	wf, err := e.Create(context.Background(), "risk_assessment", map[string]any{
		"trading_pair": "BTC/USD",
		"side":         "buy",
		"quantity":     1.0,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	final := awaitTerminal(t, e, wf.ID)
	if final.Status != workflow.StatusFailed {
		t.Fatalf("status = %s, want %s", final.Status, workflow.StatusFailed)
	}
	step := final.StepByID("trade_risk")
	if step.Status != workflow.StepStatusFailed {
		t.Fatalf("step = %s, want %s", step.Status, workflow.StepStatusFailed)
	}
	if !strings.HasPrefix(step.Error, domain.KindCapabilityUnresolved) {
		t.Fatalf("step error %q missing kind prefix", step.Error)
	}
}

func TestEngineListReturnsCreationOrder(t *testing.T) {
	dir := newFakeDirectory(testAgent("generate_portfolio_valuation", "generate_performance_report"))
	runner := newFakeRunner()
	runner.handle("generate_portfolio_valuation", okHandler(map[string]any{"total_value": 100.0}))
	runner.handle("generate_performance_report", okHandler(map[string]any{"win_rate": 0.5}))

	e := newTestEngine(dir, runner)
	first, err := e.Create(context.Background(), "performance_report", map[string]any{"period": "7d"})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := e.Create(context.Background(), "performance_report", map[string]any{"period": "30d"})
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	e.Wait()

	all := e.List(context.Background())
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	if all[0].ID != first.ID || all[1].ID != second.ID {
		t.Fatal("workflows not in creation order")
	}
}
