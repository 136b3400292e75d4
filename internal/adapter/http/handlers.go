package http

import (
	"encoding/json"
	"net/http"

	"github.com/trademesh/trademesh/internal/adapter/ws"
	"github.com/trademesh/trademesh/internal/domain/agent"
	"github.com/trademesh/trademesh/internal/port/broadcast"
	"github.com/trademesh/trademesh/internal/port/eventbus"
	"github.com/trademesh/trademesh/internal/registry"
	"github.com/trademesh/trademesh/internal/service"
)

// Handlers bundles the orchestrator services exposed over HTTP. Events
// and Bus are optional; when set, agent registrations are announced on
// both.
type Handlers struct {
	Registry  *registry.Registry
	Engine    *service.Engine
	Functions *service.Functions
	Events    broadcast.Broadcaster
	Bus       eventbus.Publisher
}

// --- Workflows ---

type createWorkflowRequest struct {
	WorkflowName string         `json:"workflow_name"`
	Parameters   map[string]any `json:"parameters"`
}

func (h *Handlers) CreateWorkflow(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[createWorkflowRequest](w, r)
	if !ok {
		return
	}
	if req.WorkflowName == "" {
		writeError(w, http.StatusBadRequest, "workflow_name is required")
		return
	}

	wf, err := h.Engine.Create(r.Context(), req.WorkflowName, req.Parameters)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, wf)
}

func (h *Handlers) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Engine.List(r.Context()))
}

func (h *Handlers) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.Engine.Get(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (h *Handlers) CancelWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, err := h.Engine.Cancel(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

// --- Agents ---

func (h *Handlers) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agent.RegisterRequest](w, r)
	if !ok {
		return
	}
	ag, err := h.Registry.Register(req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ev := ws.AgentStatusEvent{AgentID: ag.ID, Status: string(ag.Status)}
	if h.Events != nil {
		h.Events.BroadcastEvent(r.Context(), ws.EventAgentStatus, ev)
	}
	if h.Bus != nil {
		if payload, err := json.Marshal(ev); err == nil {
			_ = h.Bus.Publish(r.Context(), eventbus.SubjectAgentRegistered, payload)
		}
	}

	writeJSON(w, http.StatusOK, ag)
}

func (h *Handlers) ListAgents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Registry.List())
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	ag, err := h.Registry.Get(urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ag)
}

// --- Functions ---

type functionCallRequest struct {
	Function  string         `json:"function"`
	Arguments map[string]any `json:"arguments"`
}

// CallFunction dispatches a named orchestrator function. The response is
// always 200 with the dispatch envelope; operation failures live inside
// the envelope, not in the HTTP status.
func (h *Handlers) CallFunction(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[functionCallRequest](w, r)
	if !ok {
		return
	}
	if req.Function == "" {
		writeError(w, http.StatusBadRequest, "function is required")
		return
	}
	writeJSON(w, http.StatusOK, h.Functions.Call(r.Context(), req.Function, req.Arguments))
}
