package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the orchestrator API routes on the given chi
// router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Workflows
		r.Post("/workflows", h.CreateWorkflow)
		r.Get("/workflows", h.ListWorkflows)
		r.Get("/workflows/{id}", h.GetWorkflow)
		r.Post("/workflows/{id}/cancel", h.CancelWorkflow)

		// Agents
		r.Post("/agents/register", h.RegisterAgent)
		r.Get("/agents", h.ListAgents)
		r.Get("/agents/{id}", h.GetAgent)

		// MCP-style function dispatch
		r.Post("/functions", h.CallFunction)
	})
}
