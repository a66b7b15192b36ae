package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"sfetl/internal/etl"
)

func (s *Server) registerLoadTools() {
	s.mcp.AddTool(mcp.NewTool("get_load_order",
		mcp.WithDescription("Show the load steps in order with strategy, match key and validity, plus the batch size"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleGetLoadOrder)

	s.mcp.AddTool(mcp.NewTool("move_step",
		mcp.WithDescription("Move a load step one position up or down. Moving past either end does nothing."),
		mcp.WithNumber("index", mcp.Description("Zero-based position in the load order"), mcp.Required()),
		mcp.WithString("direction", mcp.Description("up or down"), mcp.Required()),
	), s.handleMoveStep)

	s.mcp.AddTool(mcp.NewTool("set_strategy",
		mcp.WithDescription("Set the load strategy of a mapped object: insert, bulk_load, upsert or overwrite. Upsert needs a match key (set_match_key)."),
		mcp.WithString("object", mcp.Description("Mapped source object"), mcp.Required()),
		mcp.WithString("strategy", mcp.Description("insert | bulk_load | upsert | overwrite"), mcp.Required()),
	), s.handleSetStrategy)

	s.mcp.AddTool(mcp.NewTool("set_match_key",
		mcp.WithDescription("Choose the column an upsert matches existing rows on. Must be one of the object's mapped columns."),
		mcp.WithString("object", mcp.Description("Mapped source object"), mcp.Required()),
		mcp.WithString("column", mcp.Description("Mapped target column"), mcp.Required()),
	), s.handleSetMatchKey)

	s.mcp.AddTool(mcp.NewTool("set_batch_size",
		mcp.WithDescription(fmt.Sprintf("Set the load batch size (%d-%d)", etl.MinBatchSize, etl.MaxBatchSize)),
		mcp.WithNumber("size", mcp.Description("Rows per batch"), mcp.Required()),
	), s.handleSetBatchSize)

	s.mcp.AddTool(mcp.NewTool("build_plan",
		mcp.WithDescription("Build the executable load plan. Fails while any step is invalid."),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleBuildPlan)

	s.mcp.AddTool(mcp.NewTool("dry_run",
		mcp.WithDescription("Render the statements each plan step would issue and count the rows one batch would read. Writes nothing to the target."),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleDryRun)
}

func (s *Server) handleGetLoadOrder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.read(func(sess *etl.Session) (*mcp.CallToolResult, error) {
		return jsonResult(map[string]any{
			"steps":      sess.Steps(),
			"flow":       sess.FlowSummary(),
			"batch_size": sess.BatchSize(),
		})
	})
}

func (s *Server) handleMoveStep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	index, err := requireIndex(req, "index")
	if err != nil {
		return nil, err
	}
	direction := strings.ToLower(req.GetString("direction", ""))
	return s.edit(ctx, func(sess *etl.Session) (any, error) {
		var err error
		switch direction {
		case "up":
			err = sess.MoveUp(index)
		case "down":
			err = sess.MoveDown(index)
		default:
			err = &etl.ValidationError{Field: "direction", Msg: fmt.Sprintf("must be up or down, got %q", direction)}
		}
		if err != nil {
			return nil, err
		}
		return sess.LoadOrder(), nil
	})
}

func (s *Server) handleSetStrategy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	object := req.GetString("object", "")
	strategy := req.GetString("strategy", "")
	return s.edit(ctx, func(sess *etl.Session) (any, error) {
		return sess.SetStrategy(object, etl.LoadStrategy(strategy))
	})
}

func (s *Server) handleSetMatchKey(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	object := req.GetString("object", "")
	column := req.GetString("column", "")
	return s.edit(ctx, func(sess *etl.Session) (any, error) {
		if err := sess.SetMatchKey(object, column); err != nil {
			return nil, err
		}
		st, _ := sess.Step(object)
		return st, nil
	})
}

func (s *Server) handleSetBatchSize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	size, err := requireIndex(req, "size")
	if err != nil {
		return nil, err
	}
	return s.edit(ctx, func(sess *etl.Session) (any, error) {
		if err := sess.SetBatchSize(size); err != nil {
			return nil, err
		}
		return map[string]int{"batch_size": sess.BatchSize()}, nil
	})
}

func (s *Server) handleBuildPlan(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.read(func(sess *etl.Session) (*mcp.CallToolResult, error) {
		plan, err := sess.Plan()
		if err != nil {
			return editError(err)
		}
		return jsonResult(plan)
	})
}

func (s *Server) handleDryRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.read(func(sess *etl.Session) (*mcp.CallToolResult, error) {
		report, err := s.svc.Run(ctx, sess, s.engine.Loader)
		if err != nil && report == nil {
			return editError(err)
		}
		return jsonResult(report)
	})
}
