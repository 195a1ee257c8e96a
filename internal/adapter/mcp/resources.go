package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"moecore://experts",
			"Expert Registry",
			mcplib.WithResourceDescription("All registered expert descriptors"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleExpertsResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			"moecore://stats",
			"Engine Statistics",
			mcplib.WithResourceDescription("Registry and routing statistics"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleStatsResource,
	)
}

func jsonResource(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func notConfigured(uri string) []mcplib.ResourceContents {
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     `{"error":"expert engine not configured"}`,
		},
	}
}

func (s *Server) handleExpertsResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Engine == nil {
		return notConfigured(req.Params.URI), nil
	}
	return jsonResource(req.Params.URI, s.deps.Engine.Experts())
}

func (s *Server) handleStatsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Engine == nil {
		return notConfigured(req.Params.URI), nil
	}
	stats, err := s.deps.Engine.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, stats)
}
