package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kaijie-yu/google-ui/internal/engine"
	"github.com/kaijie-yu/google-ui/internal/repository"
)

type Server struct {
	mcpServer *server.MCPServer
	repo      repository.Repository
	session   *engine.Session
}

func NewServer(repo repository.Repository, session *engine.Session) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"AutoFlow",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		repo:    repo,
		session: session,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_workflows",
			mcp.WithDescription("List the saved test workflows"),
		),
		s.handleListWorkflows,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_elements",
			mcp.WithDescription("List the page elements steps can target"),
			mcp.WithString("query", mcp.Description("Case-insensitive filter on element name or locator")),
		),
		s.handleListElements,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"run_workflow",
			mcp.WithDescription("Open a saved workflow in the builder, run it and return the execution log"),
			mcp.WithString("id", mcp.Required(), mcp.Description("The ID of the workflow")),
			mcp.WithString("mode", mcp.Description("SIMULATED (default) or REAL"), mcp.Enum(string(engine.ModeSimulated), string(engine.ModeReal))),
		),
		s.handleRunWorkflow,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_run_log",
			mcp.WithDescription("Return the log of the current or last run"),
		),
		s.handleGetRunLog,
	)
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflows, err := s.repo.ListWorkflows(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list workflows: %v", err)), nil
	}

	jsonBytes, _ := json.Marshal(workflows)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleListElements(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var query string
	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		query, _ = args["query"].(string)
	}

	elements, err := s.repo.ListElements(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list elements: %v", err)), nil
	}

	matched := elements[:0:0]
	for _, el := range elements {
		if el.Matches(query) {
			matched = append(matched, el)
		}
	}

	jsonBytes, _ := json.Marshal(matched)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleRunWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return mcp.NewToolResultError("Invalid arguments type"), nil
	}

	id, ok := args["id"].(string)
	if !ok || id == "" {
		return mcp.NewToolResultError("Missing required parameter: id"), nil
	}

	mode := engine.ModeSimulated
	if raw, ok := args["mode"].(string); ok && raw != "" {
		parsed, err := engine.ParseRunMode(raw)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		mode = parsed
	}

	if _, err := s.session.SelectWorkflow(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to open workflow: %v", err)), nil
	}
	if err := s.session.SetMode(mode); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to set mode: %v", err)), nil
	}
	done, err := s.session.Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to start run: %v", err)), nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return mcp.NewToolResultError("Run still in progress; use get_run_log to follow it"), nil
	}

	jsonBytes, _ := json.Marshal(s.session.Log().Snapshot())
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGetRunLog(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jsonBytes, _ := json.Marshal(s.session.Log().Snapshot())
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// MountHTTPHandlers serves the MCP server over SSE. Clients open the event
// stream at /mcp/sse and post JSON-RPC messages to /mcp/message.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer, server.WithStaticBasePath("/mcp"))
	mux.Handle("/mcp/sse", sseServer.SSEHandler())
	mux.Handle("/mcp/message", sseServer.MessageHandler())
}
