package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// registerTools registers all MCP tools on the server. Every tool maps
// one-to-one onto a dispatcher function of the same name.
func (s *Server) registerTools() {
	s.addTool(mcplib.NewTool("get_agent_status",
		mcplib.WithDescription("Get the status of a specific registered agent"),
		mcplib.WithString("agent_id",
			mcplib.Required(),
			mcplib.Description("The agent ID to look up"),
		),
	))
	s.addTool(mcplib.NewTool("get_all_agents_status",
		mcplib.WithDescription("List all registered agents with a derived system health"),
	))
	s.addTool(mcplib.NewTool("register_agent",
		mcplib.WithDescription("Register an agent or refresh its heartbeat"),
		mcplib.WithString("id",
			mcplib.Required(),
			mcplib.Description("Unique agent ID"),
		),
		mcplib.WithString("name",
			mcplib.Description("Human-readable agent name"),
		),
		mcplib.WithString("endpoint",
			mcplib.Required(),
			mcplib.Description("Base URL where the agent serves its A2A API"),
		),
		mcplib.WithArray("capabilities",
			mcplib.Description("Capability names the agent serves"),
		),
	))
	s.addTool(mcplib.NewTool("execute_workflow",
		mcplib.WithDescription("Instantiate a workflow template and start executing it"),
		mcplib.WithString("workflow_name",
			mcplib.Required(),
			mcplib.Description("Name of the workflow template"),
		),
		mcplib.WithObject("parameters",
			mcplib.Description("Template parameters"),
		),
	))
	s.addTool(mcplib.NewTool("get_workflow_status",
		mcplib.WithDescription("Get a full workflow snapshot including per-step status"),
		mcplib.WithString("workflow_id",
			mcplib.Required(),
			mcplib.Description("The workflow ID to look up"),
		),
	))
	s.addTool(mcplib.NewTool("list_workflows",
		mcplib.WithDescription("List all workflows in creation order"),
	))
}

func (s *Server) addTool(tool mcplib.Tool) {
	st := mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.dispatchHandler(tool.Name),
	}
	s.tools[tool.Name] = st
	s.mcpServer.AddTools(st)
}

// dispatchHandler adapts the dispatcher's envelope to a tool result:
// error envelopes become tool errors, success results come back as JSON
// text.
func (s *Server) dispatchHandler(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		resp := s.functions.Call(ctx, name, req.GetArguments())
		if resp.Status == "error" {
			return mcplib.NewToolResultError(
				fmt.Sprintf("%s: %s", resp.Error.Code, resp.Error.Message)), nil
		}
		data, err := json.Marshal(resp.Result)
		if err != nil {
			return mcplib.NewToolResultErrorFromErr("failed to marshal result", err), nil
		}
		return mcplib.NewToolResultText(string(data)), nil
	}
}
