package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"sfetl/internal/etl"
)

func (s *Server) registerMappingTools() {
	s.mcp.AddTool(mcp.NewTool("list_mappings",
		mcp.WithDescription("List the mapping registry: which fields of which source objects are extracted, in order"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListMappings)

	s.mcp.AddTool(mcp.NewTool("add_mapping",
		mcp.WithDescription("Append a mapping of a source object and a selection of its fields"),
		mcp.WithString("object", mcp.Description("Source object name"), mcp.Required()),
		mcp.WithArray("fields", mcp.Description("Selected field names, at least one"), mcp.Required(), mcp.WithStringItems()),
	), s.handleAddMapping)

	s.mcp.AddTool(mcp.NewTool("replace_mapping",
		mcp.WithDescription("Replace the mapping at a position"),
		mcp.WithNumber("index", mcp.Description("Zero-based position"), mcp.Required()),
		mcp.WithString("object", mcp.Description("Source object name"), mcp.Required()),
		mcp.WithArray("fields", mcp.Description("Selected field names, at least one"), mcp.Required(), mcp.WithStringItems()),
	), s.handleReplaceMapping)

	s.mcp.AddTool(mcp.NewTool("remove_mapping",
		mcp.WithDescription("Remove the mapping at a position. Rules of objects no longer mapped are kept but stop being loaded."),
		mcp.WithNumber("index", mcp.Description("Zero-based position"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleRemoveMapping)
}

func (s *Server) handleListMappings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.read(func(sess *etl.Session) (*mcp.CallToolResult, error) {
		return jsonResult(sess.Mappings())
	})
}

func (s *Server) handleAddMapping(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	object := req.GetString("object", "")
	fields := stringList(req, "fields")
	return s.edit(ctx, func(sess *etl.Session) (any, error) {
		s.warmFields(ctx, sess, object)
		if err := sess.AddMapping(object, fields); err != nil {
			return nil, err
		}
		return sess.Mappings(), nil
	})
}

func (s *Server) handleReplaceMapping(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := requireIndex(req, "index")
	if err != nil {
		return nil, err
	}
	object := req.GetString("object", "")
	fields := stringList(req, "fields")
	return s.edit(ctx, func(sess *etl.Session) (any, error) {
		s.warmFields(ctx, sess, object)
		if err := sess.ReplaceMapping(index, object, fields); err != nil {
			return nil, err
		}
		return sess.Mappings(), nil
	})
}

func (s *Server) handleRemoveMapping(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := requireIndex(req, "index")
	if err != nil {
		return nil, err
	}
	return s.edit(ctx, func(sess *etl.Session) (any, error) {
		if err := sess.RemoveMapping(index); err != nil {
			return nil, err
		}
		return map[string]any{
			"mappings":   sess.Mappings(),
			"load_order": sess.LoadOrder(),
		}, nil
	})
}

// warmFields caches the field list of object so unknown field names are
// rejected. Without it the names go unchecked.
func (s *Server) warmFields(ctx context.Context, sess *etl.Session, object string) {
	if _, err := sess.Fields(ctx, object); err != nil {
		s.log.Warn().Err(err).Str("object", object).Msg("field list unavailable, field names not checked")
	}
}
