// Package mcp exposes the orchestrator's function dispatcher as MCP tools
// over the streamable HTTP transport.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/trademesh/trademesh/internal/service"
)

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
}

// FunctionCaller is the dispatch surface the MCP tools wrap.
type FunctionCaller interface {
	Call(ctx context.Context, name string, args map[string]any) service.FunctionResponse
}

// Server wraps an MCP server whose tools delegate to the orchestrator's
// function dispatcher.
type Server struct {
	cfg        ServerConfig
	functions  FunctionCaller
	log        *slog.Logger
	mcpServer  *mcpserver.MCPServer
	httpServer *mcpserver.StreamableHTTPServer
	tools      map[string]mcpserver.ServerTool
}

// NewServer creates the MCP server and registers all tools.
func NewServer(cfg ServerConfig, functions FunctionCaller, log *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		functions: functions,
		log:       log,
		tools:     make(map[string]mcpserver.ServerTool),
	}
	s.mcpServer = mcpserver.NewMCPServer(cfg.Name, cfg.Version,
		mcpserver.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Tool returns a registered tool by name.
func (s *Server) Tool(name string) (mcpserver.ServerTool, bool) {
	tool, ok := s.tools[name]
	return tool, ok
}

// ToolNames returns the registered tool names, sorted.
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Start begins serving MCP over streamable HTTP. A blank Addr disables
// the transport; the tools stay reachable through the function dispatch
// endpoint.
func (s *Server) Start() error {
	if s.cfg.Addr == "" {
		return nil
	}
	s.httpServer = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	go func() {
		if err := s.httpServer.Start(s.cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("mcp server failed", "error", err)
		}
	}()
	s.log.Info("mcp server listening", "addr", s.cfg.Addr)
	return nil
}

// Stop gracefully shuts down the MCP HTTP transport.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
