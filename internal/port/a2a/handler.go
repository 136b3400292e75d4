package a2a

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/trademesh/trademesh/internal/domain"
	"github.com/trademesh/trademesh/internal/domain/task"
)

// TaskService is the capability-dispatch surface the handler exposes over
// HTTP. Implemented by the dispatch package.
type TaskService interface {
	Capabilities() []string
	Create(ctx context.Context, req CreateTaskRequest) (*task.Task, error)
	Get(ctx context.Context, id string) (*task.Task, error)
	Update(ctx context.Context, id string, req UpdateTaskRequest) (*task.Task, error)
	Cancel(ctx context.Context, id string) (*task.Task, error)
	AddMessage(ctx context.Context, taskID string, req SendMessageRequest) (*task.Message, error)
	Messages(ctx context.Context, taskID string) ([]task.Message, error)
}

// Handler serves the agent-side A2A protocol endpoints.
type Handler struct {
	card  AgentCard
	tasks TaskService
	log   *slog.Logger
}

// NewHandler creates an A2A handler serving the given card.
func NewHandler(card AgentCard, tasks TaskService, log *slog.Logger) *Handler {
	return &Handler{card: card, tasks: tasks, log: log}
}

// MountRoutes registers the A2A routes on the given chi router. The agent
// card is additionally served at the well-known discovery path, which is
// mounted at the root rather than under /api/v1.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/.well-known/agent.json", h.handleCard)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/agent", h.handleCard)
		r.Post("/tasks", h.handleCreateTask)
		r.Get("/tasks/{id}", h.handleGetTask)
		r.Put("/tasks/{id}", h.handleUpdateTask)
		r.Delete("/tasks/{id}", h.handleCancelTask)
		r.Post("/tasks/{id}/messages", h.handleSendMessage)
		r.Get("/tasks/{id}/messages", h.handleListMessages)
	})
}

func (h *Handler) handleCard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.card)
}

func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Capability == "" {
		writeError(w, http.StatusBadRequest, "capability is required")
		return
	}

	t, err := h.tasks.Create(r.Context(), req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.log.Info("task created", "task_id", t.ID, "capability", t.Capability)
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.tasks.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := h.tasks.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	t, err := h.tasks.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.log.Info("task canceled", "task_id", t.ID)
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Content) == 0 && len(req.Parts) == 0 {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	msg, err := h.tasks.AddMessage(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.tasks.Messages(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if msgs == nil {
		msgs = []task.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, domain.ErrCapabilityNotSupported):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": ")
		writeError(w, http.StatusBadRequest, msg)
	default:
		h.log.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
