package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("map_object",
		mcp.WithPromptDescription("Guide through mapping a source object into a staging table"),
		mcp.WithArgument("object",
			mcp.ArgumentDescription("Source object to map (e.g. Contact)"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("table",
			mcp.ArgumentDescription("Target table (e.g. stg_sf_contact)"),
			mcp.RequiredArgument(),
		),
	), s.handleMapObjectPrompt)

	s.mcp.AddPrompt(mcp.NewPrompt("review_plan",
		mcp.WithPromptDescription("Check the configuration for stale rules and invalid steps before saving"),
	), s.handleReviewPlanPrompt)
}

func (s *Server) handleMapObjectPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	object := req.Params.Arguments["object"]
	table := req.Params.Arguments["table"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Map %s into %s", object, table),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Map the source object "%s" into the target table "%s". Follow these steps:

1. Use list_fields for %s and list_target_tables to see both sides
2. Use add_mapping with the fields that have a matching column
3. Use set_target_table, then bind_field for each selected field
4. Add set_transform where types differ (numbers, dates, booleans, picklists)
5. Pick a strategy with set_strategy; for upsert, also call set_match_key with a unique column
6. Check get_load_order: the step must be valid. Then save_config.`, object, table, object),
				},
			},
		},
	}, nil
}

func (s *Server) handleReviewPlanPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Review the load configuration",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: `Review the current load configuration:

1. Call diagnostics and explain each stale rule; fix the ones that are mistakes
2. Call get_load_order and fix every invalid step (missing match key, no mapped columns)
3. Make sure parents load before children (accounts before contacts), using move_step
4. Call dry_run and summarise the statements per step
5. Save with save_config only when build_plan succeeds`,
				},
			},
		},
	}, nil
}
