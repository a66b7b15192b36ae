package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"sfetl/internal/etl"
)

func (s *Server) registerTransformTools() {
	s.mcp.AddTool(mcp.NewTool("set_target_table",
		mcp.WithDescription("Choose the target table a mapped object loads into"),
		mcp.WithString("object", mcp.Description("Mapped source object"), mcp.Required()),
		mcp.WithString("table", mcp.Description("Target table name"), mcp.Required()),
	), s.handleSetTargetTable)

	s.mcp.AddTool(mcp.NewTool("bind_field",
		mcp.WithDescription("Bind a mapped field to a column of the object's target table. Omit column to skip the field."),
		mcp.WithString("object", mcp.Description("Mapped source object"), mcp.Required()),
		mcp.WithString("field", mcp.Description("Mapped field"), mcp.Required()),
		mcp.WithString("column", mcp.Description("Target column; omit to unbind")),
	), s.handleBindField)

	s.mcp.AddTool(mcp.NewTool("set_transform",
		mcp.WithDescription(`Set the transform applied to a field. transformJSON is an object with "type" and its parameters:
- none
- to_number: {decimal_places 0-10, null_strategy zero|keep_null|default}
- to_date / to_datetime: {source_format, target_format (YYYY-MM-DD|YYYYMMDD|YYYY/MM/DD|ISO8601|Manual), timezone_convert, source_tz, target_tz}
- to_boolean: {true_values: [...], false_values: [...]} non-empty and disjoint
- enum_mapping: {enum_map: "{\"a\":\"b\"}"} JSON object text`),
		mcp.WithString("object", mcp.Description("Mapped source object"), mcp.Required()),
		mcp.WithString("field", mcp.Description("Mapped field"), mcp.Required()),
		mcp.WithString("transformJSON", mcp.Description("Transform configuration as JSON"), mcp.Required()),
	), s.handleSetTransform)

	s.mcp.AddTool(mcp.NewTool("get_transformation",
		mcp.WithDescription("Show an object's target table, bindings, transforms and field statuses"),
		mcp.WithString("object", mcp.Description("Source object"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleGetTransformation)

	s.mcp.AddTool(mcp.NewTool("diagnostics",
		mcp.WithDescription("List stale rules: unmapped objects or fields that still carry bindings, and columns missing from the target table"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleDiagnostics)
}

func (s *Server) handleSetTargetTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	object := req.GetString("object", "")
	table := req.GetString("table", "")
	return s.edit(ctx, func(sess *etl.Session) (any, error) {
		if err := sess.SetTargetTable(object, table); err != nil {
			return nil, err
		}
		return sess.Transformation(object), nil
	})
}

func (s *Server) handleBindField(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	object := req.GetString("object", "")
	field := req.GetString("field", "")
	var column *string
	if c, ok := optionalString(req, "column"); ok {
		column = &c
	}
	return s.edit(ctx, func(sess *etl.Session) (any, error) {
		if err := sess.BindField(object, field, column); err != nil {
			return nil, err
		}
		return map[string]any{
			"bindings":   sess.Bindings(object),
			"load_order": sess.LoadOrder(),
		}, nil
	})
}

func (s *Server) handleSetTransform(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	object := req.GetString("object", "")
	field := req.GetString("field", "")

	// transformJSON may come as a string or as a raw JSON object
	var raw []byte
	switch v := req.GetArguments()["transformJSON"].(type) {
	case string:
		raw = []byte(v)
	case nil:
		return nil, fmt.Errorf("transformJSON is required")
	default:
		raw, _ = json.Marshal(v)
	}
	var cfg etl.TransformConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parse transformJSON: %v", err)), nil
	}

	return s.edit(ctx, func(sess *etl.Session) (any, error) {
		if err := sess.SetTransform(object, field, cfg); err != nil {
			return nil, err
		}
		return sess.Transformation(object), nil
	})
}

type fieldView struct {
	Field     string              `json:"field"`
	Status    etl.FieldStatus     `json:"status"`
	Transform etl.TransformConfig `json:"transform"`
}

func (s *Server) handleGetTransformation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	object, err := requireString(req, "object")
	if err != nil {
		return nil, err
	}
	return s.read(func(sess *etl.Session) (*mcp.CallToolResult, error) {
		st := sess.State()
		var fields []fieldView
		for _, f := range st.Mappings.FieldsOf(object) {
			fields = append(fields, fieldView{
				Field:     f,
				Status:    sess.Status(object, f),
				Transform: st.Transformations.Transform(object, f),
			})
		}
		return jsonResult(map[string]any{
			"rule":           sess.Transformation(object),
			"fields":         fields,
			"mapped_columns": sess.MappedColumns(object),
		})
	})
}

func (s *Server) handleDiagnostics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.read(func(sess *etl.Session) (*mcp.CallToolResult, error) {
		diags := sess.Diagnostics()
		out := make([]string, len(diags))
		for i, d := range diags {
			out[i] = d.String()
		}
		return jsonResult(out)
	})
}
