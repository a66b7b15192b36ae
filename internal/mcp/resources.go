package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerResources() {
	// ── sfetl://config ─────────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"sfetl://config",
		"Configuration document",
		mcp.WithMIMEType("application/json"),
	), s.handleConfigResource)

	// ── sfetl://load-order ─────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"sfetl://load-order",
		"Load steps in order",
		mcp.WithMIMEType("application/json"),
	), s.handleLoadOrderResource)
}

func (s *Server) handleConfigResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s.mu.Lock()
	doc := s.sess.Document()
	s.mu.Unlock()
	return jsonResource(req.Params.URI, doc)
}

func (s *Server) handleLoadOrderResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s.mu.Lock()
	steps := s.sess.Steps()
	s.mu.Unlock()
	return jsonResource(req.Params.URI, steps)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
