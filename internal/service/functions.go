package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/trademesh/trademesh/internal/domain"
	"github.com/trademesh/trademesh/internal/domain/agent"
)

// AgentRoster is the registry surface the function dispatcher needs.
type AgentRoster interface {
	Get(id string) (*agent.Agent, error)
	List() []*agent.Agent
	Register(req agent.RegisterRequest) (*agent.Agent, error)
}

// FunctionResponse is the uniform envelope every dispatched function
// returns. Exactly one of Result and Error is set.
type FunctionResponse struct {
	Status string         `json:"status"`
	Result any            `json:"result,omitempty"`
	Error  *FunctionError `json:"error,omitempty"`
}

// FunctionError carries a machine-readable code and a human message.
type FunctionError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func success(result any) FunctionResponse {
	return FunctionResponse{Status: "success", Result: result}
}

func failure(code, message string) FunctionResponse {
	return FunctionResponse{Status: "error", Error: &FunctionError{Code: code, Message: message}}
}

type functionImpl func(ctx context.Context, args map[string]any) FunctionResponse

// Functions dispatches named orchestrator operations behind a uniform
// envelope. It never returns a Go error to the caller; operation failures
// are folded into the envelope.
type Functions struct {
	registry  AgentRoster
	engine    *Engine
	log       *slog.Logger
	functions map[string]functionImpl
}

// NewFunctions builds the dispatcher with its static name table.
func NewFunctions(registry AgentRoster, engine *Engine, log *slog.Logger) *Functions {
	f := &Functions{registry: registry, engine: engine, log: log}
	f.functions = map[string]functionImpl{
		"get_agent_status":      f.getAgentStatus,
		"get_all_agents_status": f.getAllAgentsStatus,
		"register_agent":        f.registerAgent,
		"execute_workflow":      f.executeWorkflow,
		"get_workflow_status":   f.getWorkflowStatus,
		"list_workflows":        f.listWorkflows,
	}
	return f
}

// Names returns the registered function names, sorted.
func (f *Functions) Names() []string {
	names := make([]string, 0, len(f.functions))
	for name := range f.functions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Call dispatches a named function. Unknown names and operation failures
// both come back as error envelopes, never as Go errors.
func (f *Functions) Call(ctx context.Context, name string, args map[string]any) FunctionResponse {
	fn, ok := f.functions[name]
	if !ok {
		return failure("function_not_found",
			fmt.Sprintf("function %q not found (available: %s)", name, strings.Join(f.Names(), ", ")))
	}
	f.log.Debug("function call", "function", name)
	resp := fn(ctx, args)
	if resp.Status == "error" {
		f.log.Warn("function failed", "function", name, "code", resp.Error.Code, "message", resp.Error.Message)
	}
	return resp
}

func (f *Functions) getAgentStatus(_ context.Context, args map[string]any) FunctionResponse {
	id, _ := args["agent_id"].(string)
	if id == "" {
		return failure(domain.KindValidation, "agent_id is required")
	}
	ag, err := f.registry.Get(id)
	if err != nil {
		return failure(domain.Kind(err), err.Error())
	}
	return success(ag)
}

func (f *Functions) getAllAgentsStatus(_ context.Context, _ map[string]any) FunctionResponse {
	agents := f.registry.List()
	return success(map[string]any{
		"agents":        agents,
		"system_health": systemHealth(agents),
	})
}

func (f *Functions) registerAgent(_ context.Context, args map[string]any) FunctionResponse {
	req := agent.RegisterRequest{}
	req.ID, _ = args["id"].(string)
	req.Name, _ = args["name"].(string)
	req.Endpoint, _ = args["endpoint"].(string)
	if raw, ok := args["capabilities"].([]any); ok {
		for _, c := range raw {
			if s, ok := c.(string); ok {
				req.Capabilities = append(req.Capabilities, s)
			}
		}
	}
	ag, err := f.registry.Register(req)
	if err != nil {
		return failure(domain.Kind(err), err.Error())
	}
	return success(ag)
}

func (f *Functions) executeWorkflow(ctx context.Context, args map[string]any) FunctionResponse {
	name, _ := args["workflow_name"].(string)
	if name == "" {
		return failure(domain.KindValidation, "workflow_name is required")
	}
	params, _ := args["parameters"].(map[string]any)
	wf, err := f.engine.Create(ctx, name, params)
	if err != nil {
		return failure(domain.Kind(err), err.Error())
	}
	return success(wf)
}

func (f *Functions) getWorkflowStatus(ctx context.Context, args map[string]any) FunctionResponse {
	id, _ := args["workflow_id"].(string)
	if id == "" {
		return failure(domain.KindValidation, "workflow_id is required")
	}
	wf, err := f.engine.Get(ctx, id)
	if err != nil {
		return failure(domain.Kind(err), err.Error())
	}
	return success(wf)
}

func (f *Functions) listWorkflows(ctx context.Context, _ map[string]any) FunctionResponse {
	return success(f.engine.List(ctx))
}

// systemHealth folds the roster into one health word: any errored agents
// push the system to degraded, more than a third errored to critical, and
// a mostly-offline roster reads degraded even without errors.
func systemHealth(agents []*agent.Agent) string {
	if len(agents) == 0 {
		return "healthy"
	}
	errored := 0
	offline := 0
	for _, a := range agents {
		switch a.Status {
		case agent.StatusError:
			errored++
		case agent.StatusOffline:
			offline++
		}
	}
	switch {
	case errored > len(agents)/3:
		return "critical"
	case errored > 0:
		return "degraded"
	case offline > len(agents)/2:
		return "degraded"
	}
	return "healthy"
}
