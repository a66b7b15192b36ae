package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"sfetl/internal/etl"
)

func (s *Server) registerCatalogTools() {
	s.mcp.AddTool(mcp.NewTool("list_objects",
		mcp.WithDescription("List the source objects that can be mapped"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListObjects)

	s.mcp.AddTool(mcp.NewTool("list_fields",
		mcp.WithDescription("List the fields of a source object"),
		mcp.WithString("object", mcp.Description("Source object name"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListFields)

	s.mcp.AddTool(mcp.NewTool("list_target_tables",
		mcp.WithDescription("List target tables and their columns"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListTargetTables)

	s.mcp.AddTool(mcp.NewTool("preview_object",
		mcp.WithDescription("Fetch a few sample rows of a source object (default 5, max 200)"),
		mcp.WithString("object", mcp.Description("Source object name"), mcp.Required()),
		mcp.WithArray("fields", mcp.Description("Fields to return"), mcp.Required(), mcp.WithStringItems()),
		mcp.WithNumber("limit", mcp.Description("Maximum rows")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handlePreviewObject)
}

func (s *Server) handleListObjects(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.read(func(sess *etl.Session) (*mcp.CallToolResult, error) {
		c := sess.Catalog()
		return jsonResult(map[string]any{
			"objects":  c.Objects(),
			"degraded": c.Degraded(),
		})
	})
}

func (s *Server) handleListFields(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	object, err := requireString(req, "object")
	if err != nil {
		return nil, err
	}
	return s.read(func(sess *etl.Session) (*mcp.CallToolResult, error) {
		fields, err := sess.Fields(ctx, object)
		if err != nil {
			return editError(err)
		}
		return jsonResult(fields)
	})
}

func (s *Server) handleListTargetTables(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.read(func(sess *etl.Session) (*mcp.CallToolResult, error) {
		return jsonResult(sess.Catalog().Tables())
	})
}

func (s *Server) handlePreviewObject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	object, err := requireString(req, "object")
	if err != nil {
		return nil, err
	}
	fields := stringList(req, "fields")
	limit := intArg(req, "limit", etl.DefaultPreviewRows)

	rows, err := s.engine.Preview(ctx, object, fields, limit)
	if err != nil {
		return editError(err)
	}
	return jsonResult(rows)
}
