package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	tmhttp "github.com/trademesh/trademesh/internal/adapter/http"
	"github.com/trademesh/trademesh/internal/config"
	"github.com/trademesh/trademesh/internal/domain"
	"github.com/trademesh/trademesh/internal/domain/agent"
	"github.com/trademesh/trademesh/internal/domain/task"
	"github.com/trademesh/trademesh/internal/domain/workflow"
	"github.com/trademesh/trademesh/internal/port/a2a"
	"github.com/trademesh/trademesh/internal/registry"
	"github.com/trademesh/trademesh/internal/service"
)

// stubRunner completes every submitted task immediately with a fixed
// result.
type stubRunner struct {
	result map[string]any
}

func (s *stubRunner) Discover(_ context.Context, _ string) (a2a.AgentCard, error) {
	card := a2a.AgentCard{ID: "stub", Name: "stub"}
	for name := range a2a.CapabilityCatalog {
		card.Capabilities = append(card.Capabilities, a2a.Capability{Name: name})
	}
	return card, nil
}

func (s *stubRunner) Submit(_ context.Context, _ string, req a2a.CreateTaskRequest) (*task.Task, error) {
	return &task.Task{ID: "stub-task", Capability: req.Capability, Status: task.StatusInProgress}, nil
}

func (s *stubRunner) AwaitCompletion(_ context.Context, _, id string, _, _ time.Duration) (*task.Task, error) {
	return &task.Task{ID: id, Status: task.StatusCompleted, Result: s.result}, nil
}

type env struct {
	router   *chi.Mux
	registry *registry.Registry
	engine   *service.Engine
}

func newTestServer(t *testing.T) *env {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New(log)
	runner := &stubRunner{result: map[string]any{
		"confidence":     0.8,
		"recommendation": "buy",
		"order_id":       "ord-1",
		"total_value":    100.0,
	}}
	cfg := config.Engine{MaxParallel: 4, PollInterval: time.Millisecond, StepTimeout: time.Second}
	engine := service.NewEngine(cfg, reg, runner, nil, nil, nil, log)
	functions := service.NewFunctions(reg, engine, log)

	r := chi.NewRouter()
	tmhttp.MountRoutes(r, &tmhttp.Handlers{Registry: reg, Engine: engine, Functions: functions})
	return &env{router: r, registry: reg, engine: engine}
}

func (e *env) do(t *testing.T, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) registerAgent(t *testing.T, id string, capabilities ...string) {
	t.Helper()
	_, err := e.registry.Register(agent.RegisterRequest{
		ID: id, Name: id, Endpoint: "http://" + id + ".test", Capabilities: capabilities,
	})
	if err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestCreateWorkflowReturnsCreatedSnapshot(t *testing.T) {
	e := newTestServer(t)
	e.registerAgent(t, "report-1", "generate_portfolio_valuation", "generate_performance_report")

	rec := e.do(t, http.MethodPost, "/api/v1/workflows",
		`{"workflow_name":"performance_report","parameters":{"period":"7d"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	wf := decode[workflow.Workflow](t, rec)
	if wf.ID == "" {
		t.Fatal("workflow_id not set")
	}
	if wf.Status != workflow.StatusCreated {
		t.Fatalf("status = %s, want %s", wf.Status, workflow.StatusCreated)
	}
	e.engine.Wait()
}

func TestCreateWorkflowRejectsUnknownTemplate(t *testing.T) {
	e := newTestServer(t)

	rec := e.do(t, http.MethodPost, "/api/v1/workflows", `{"workflow_name":"nope"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/workflows", `{"parameters":{}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status without name = %d, want 400", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/workflows", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status for bad body = %d, want 400", rec.Code)
	}
}

func TestGetWorkflowNotFound(t *testing.T) {
	e := newTestServer(t)
	rec := e.do(t, http.MethodGet, "/api/v1/workflows/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestWorkflowLifecycleOverHTTP(t *testing.T) {
	e := newTestServer(t)
	e.registerAgent(t, "report-1", "generate_portfolio_valuation", "generate_performance_report")

	rec := e.do(t, http.MethodPost, "/api/v1/workflows",
		`{"workflow_name":"performance_report","parameters":{"period":"30d"}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	created := decode[workflow.Workflow](t, rec)
	e.engine.Wait()

	rec = e.do(t, http.MethodGet, "/api/v1/workflows/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	got := decode[workflow.Workflow](t, rec)
	if got.Status != workflow.StatusCompleted {
		t.Fatalf("workflow status = %s, want %s", got.Status, workflow.StatusCompleted)
	}
	if len(got.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(got.Steps))
	}

	rec = e.do(t, http.MethodGet, "/api/v1/workflows", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if all := decode[[]workflow.Workflow](t, rec); len(all) != 1 {
		t.Fatalf("list len = %d, want 1", len(all))
	}

	// Terminal workflows cannot be canceled.
	rec = e.do(t, http.MethodPost, "/api/v1/workflows/"+created.ID+"/cancel", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("cancel terminal status = %d, want 400", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/api/v1/workflows/ghost/cancel", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("cancel missing status = %d, want 404", rec.Code)
	}
}

func TestAgentRegistrationOverHTTP(t *testing.T) {
	e := newTestServer(t)

	rec := e.do(t, http.MethodPost, "/api/v1/agents/register",
		`{"id":"market-1","name":"market agent","endpoint":"http://market-1.test","capabilities":["market_analysis"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("register status = %d, body = %s", rec.Code, rec.Body.String())
	}
	ag := decode[agent.Agent](t, rec)
	if ag.Status != agent.StatusAvailable {
		t.Fatalf("agent status = %s, want %s", ag.Status, agent.StatusAvailable)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/agents/register", `{"id":"bad"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid register status = %d, want 400", rec.Code)
	}

	rec = e.do(t, http.MethodGet, "/api/v1/agents", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if agents := decode[[]agent.Agent](t, rec); len(agents) != 1 {
		t.Fatalf("agents = %d, want 1", len(agents))
	}

	rec = e.do(t, http.MethodGet, "/api/v1/agents/market-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	rec = e.do(t, http.MethodGet, "/api/v1/agents/ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get missing status = %d, want 404", rec.Code)
	}
}

type recordingBroadcaster struct {
	events []string
}

func (b *recordingBroadcaster) BroadcastEvent(_ context.Context, eventType string, _ any) {
	b.events = append(b.events, eventType)
}

func TestRegisterAgentAnnouncesEvent(t *testing.T) {
	e := newTestServer(t)
	broadcaster := &recordingBroadcaster{}

	r := chi.NewRouter()
	tmhttp.MountRoutes(r, &tmhttp.Handlers{
		Registry: e.registry,
		Engine:   e.engine,
		Events:   broadcaster,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/agents/register",
		strings.NewReader(`{"id":"risk-1","endpoint":"http://risk-1.test","capabilities":["assess_trade_risk"]}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(broadcaster.events) != 1 {
		t.Fatalf("events = %v, want one agent status event", broadcaster.events)
	}
}

func TestFunctionDispatchOverHTTP(t *testing.T) {
	e := newTestServer(t)
	e.registerAgent(t, "risk-1", "assess_trade_risk")

	rec := e.do(t, http.MethodPost, "/api/v1/functions",
		`{"function":"get_agent_status","arguments":{"agent_id":"risk-1"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[service.FunctionResponse](t, rec)
	if resp.Status != "success" {
		t.Fatalf("envelope status = %s, error = %+v", resp.Status, resp.Error)
	}

	// Unknown functions still answer 200; the failure is in the envelope.
	rec = e.do(t, http.MethodPost, "/api/v1/functions", `{"function":"bogus"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp = decode[service.FunctionResponse](t, rec)
	if resp.Status != "error" || resp.Error.Code != "function_not_found" {
		t.Fatalf("envelope = %+v, want function_not_found", resp)
	}

	rec = e.do(t, http.MethodPost, "/api/v1/functions", `{"arguments":{}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing function name status = %d, want 400", rec.Code)
	}
}

func TestNotFoundKindSurvivesEnvelope(t *testing.T) {
	e := newTestServer(t)
	rec := e.do(t, http.MethodPost, "/api/v1/functions",
		fmt.Sprintf(`{"function":"get_workflow_status","arguments":{"workflow_id":"%s"}}`, "missing"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[service.FunctionResponse](t, rec)
	if resp.Status != "error" || resp.Error.Code != domain.KindNotFound {
		t.Fatalf("envelope = %+v, want %s", resp, domain.KindNotFound)
	}
}
