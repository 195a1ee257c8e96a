package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/moecore/internal/domain/expert"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.routeQueryTool(),
		s.suggestExpertsTool(),
		s.queryExpertsTool(),
		s.listDomainsTool(),
		s.runOrchestratorTool(),
	)
}

func (s *Server) routeQueryTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("route_query",
		mcplib.WithDescription("Rank the registered experts for a query"),
		mcplib.WithString("query",
			mcplib.Required(),
			mcplib.Description("The query to route"),
		),
		mcplib.WithString("domain",
			mcplib.Description("Restrict candidates to one domain label"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleRouteQuery}
}

func (s *Server) suggestExpertsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("suggest_experts",
		mcplib.WithDescription("Suggest experts for a free-form task description"),
		mcplib.WithString("description",
			mcplib.Required(),
			mcplib.Description("What the task is about"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleSuggestExperts}
}

func (s *Server) queryExpertsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("query_experts",
		mcplib.WithDescription("Route a query and collect an analysis from each selected expert"),
		mcplib.WithString("query",
			mcplib.Required(),
			mcplib.Description("The query to analyze"),
		),
		mcplib.WithString("domain",
			mcplib.Description("Restrict candidates to one domain label"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleQueryExperts}
}

func (s *Server) listDomainsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_domains",
		mcplib.WithDescription("List expert domains with their experts"),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleListDomains}
}

func (s *Server) runOrchestratorTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("run_orchestrator",
		mcplib.WithDescription("Dispatch a prompt across the expert pool and return the combined decision"),
		mcplib.WithString("prompt",
			mcplib.Required(),
			mcplib.Description("The prompt to dispatch"),
		),
	)
	return mcpserver.ServerTool{Tool: tool, Handler: s.handleRunOrchestrator}
}

func stringArg(req mcplib.CallToolRequest, name string) string { //nolint:gocritic // hugeParam: mcp-go request type
	v, _ := req.GetArguments()[name].(string)
	return v
}

func routeContext(req mcplib.CallToolRequest) *expert.RouteContext { //nolint:gocritic // hugeParam: mcp-go request type
	d := stringArg(req, "domain")
	if d == "" {
		return nil
	}
	return &expert.RouteContext{Domain: d}
}

func marshalResult(v any, what string) *mcplib.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal "+what, err)
	}
	return toolResultJSON(string(data))
}

func (s *Server) handleRouteQuery(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Engine == nil {
		return mcplib.NewToolResultError("expert engine not configured"), nil
	}
	query := stringArg(req, "query")
	if query == "" {
		return mcplib.NewToolResultError("query is required"), nil
	}
	sels, err := s.deps.Engine.Route(ctx, query, routeContext(req))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to route query", err), nil
	}
	return marshalResult(expert.Summarize(sels), "selections"), nil
}

func (s *Server) handleSuggestExperts(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Engine == nil {
		return mcplib.NewToolResultError("expert engine not configured"), nil
	}
	desc := stringArg(req, "description")
	if desc == "" {
		return mcplib.NewToolResultError("description is required"), nil
	}
	out, err := s.deps.Engine.Suggestions(ctx, desc)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to suggest experts", err), nil
	}
	return marshalResult(out, "suggestions"), nil
}

func (s *Server) handleQueryExperts(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Engine == nil {
		return mcplib.NewToolResultError("expert engine not configured"), nil
	}
	query := stringArg(req, "query")
	if query == "" {
		return mcplib.NewToolResultError("query is required"), nil
	}
	resp, err := s.deps.Engine.QueryExperts(ctx, query, routeContext(req))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to query experts", err), nil
	}
	return marshalResult(resp, "analyses"), nil
}

func (s *Server) handleListDomains(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Engine == nil {
		return mcplib.NewToolResultError("expert engine not configured"), nil
	}
	return marshalResult(s.deps.Engine.ListDomains(), "domains"), nil
}

func (s *Server) handleRunOrchestrator(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Orchestration == nil {
		return mcplib.NewToolResultError("orchestrator not configured"), nil
	}
	prompt := stringArg(req, "prompt")
	if prompt == "" {
		return mcplib.NewToolResultError("prompt is required"), nil
	}
	report, err := s.deps.Orchestration.Run(ctx, prompt, nil)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("orchestrator run failed", err), nil
	}
	return marshalResult(report, "run report"), nil
}
