package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"sfetl/internal/etl"
	"sfetl/internal/schedule"
)

func (s *Server) registerConfigTools() {
	s.mcp.AddTool(mcp.NewTool("get_config",
		mcp.WithDescription("Return the whole configuration document as it would be saved"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleGetConfig)

	s.mcp.AddTool(mcp.NewTool("save_config",
		mcp.WithDescription("Persist the edited configuration. Replaces the stored document."),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleSaveConfig)

	s.mcp.AddTool(mcp.NewTool("reload_config",
		mcp.WithDescription("Discard unsaved edits and reload the stored configuration"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleReloadConfig)

	s.mcp.AddTool(mcp.NewTool("set_schedule",
		mcp.WithDescription("Set when the load job runs"),
		mcp.WithString("frequency", mcp.Description("Daily | Hourly | Weekly | Cron Expression"), mcp.Required()),
		mcp.WithString("runTime", mcp.Description("HH:MM:SS (default 09:00:00)")),
		mcp.WithString("weekday", mcp.Description("Weekly only, default Monday")),
		mcp.WithString("cronExpr", mcp.Description("Five-field cron expression, for Cron Expression")),
		mcp.WithBoolean("active", mcp.Description("Whether the schedule is enabled")),
	), s.handleSetSchedule)

	s.mcp.AddTool(mcp.NewTool("next_runs",
		mcp.WithDescription("List the next activation times of the schedule"),
		mcp.WithNumber("count", mcp.Description("How many (default 5)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleNextRuns)
}

func (s *Server) handleGetConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.read(func(sess *etl.Session) (*mcp.CallToolResult, error) {
		return jsonResult(sess.Document())
	})
}

func (s *Server) handleSaveConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.svc.Save(ctx, s.sess); err != nil {
		return nil, fmt.Errorf("save configuration: %w", err)
	}
	s.dirty = false
	return textResult("Configuration saved. Load flow: " + s.sess.FlowSummary()), nil
}

func (s *Server) handleReloadConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.svc.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload configuration: %w", err)
	}
	discarded := s.dirty
	s.sess, s.dirty = sess, false
	return jsonResult(map[string]any{
		"discarded_edits": discarded,
		"mappings":        sess.Mappings(),
		"load_order":      sess.LoadOrder(),
	})
}

func (s *Server) handleSetSchedule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sc := etl.ScheduleConfig{
		Frequency: etl.Frequency(req.GetString("frequency", "")),
		RunTime:   etl.DefaultRunTime,
		Weekday:   req.GetString("weekday", ""),
		CronExpr:  req.GetString("cronExpr", ""),
		IsActive:  boolArg(req, "active"),
	}
	if rt := req.GetString("runTime", ""); rt != "" {
		t, err := etl.ParseClock(rt)
		if err != nil {
			return editError(err)
		}
		sc.RunTime = t
	}
	return s.edit(ctx, func(sess *etl.Session) (any, error) {
		if err := s.svc.SetSchedule(sess, sc); err != nil {
			return nil, err
		}
		return map[string]any{
			"schedule":    sess.Schedule(),
			"description": schedule.Describe(sess.Schedule()),
		}, nil
	})
}

func (s *Server) handleNextRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := intArg(req, "count", 5)
	if n <= 0 || n > 100 {
		n = 5
	}
	return s.read(func(sess *etl.Session) (*mcp.CallToolResult, error) {
		times, err := schedule.Next(sess.Schedule(), time.Now(), n)
		if err != nil {
			return editError(err)
		}
		return jsonResult(times)
	})
}
