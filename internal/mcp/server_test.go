package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfetl/internal/etl"
	"sfetl/internal/service"
	"sfetl/internal/storage"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	provider := func(*etl.Document) etl.CatalogProvider {
		return &etl.StaticProvider{
			Objects: []etl.ObjectInfo{{Name: "Account"}, {Name: "Contact"}},
			Fields: map[string][]etl.FieldInfo{
				"Account": {{Name: "Id"}, {Name: "Name"}},
				"Contact": {{Name: "Id"}, {Name: "Email"}},
			},
			Tables: etl.DefaultTargetTables(),
		}
	}
	svc := service.NewConfigService(storage.NewConfigStore(storage.NewFileSink(path), ""), provider, nil, zerolog.Nop())
	s, err := New(context.Background(), Deps{Service: svc, Log: zerolog.Nop()})
	require.NoError(t, err)
	return s, path
}

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestTools_ContactUpsertEndToEnd(t *testing.T) {
	s, path := newTestServer(t)

	res := call(t, s.handleAddMapping, map[string]any{"object": "Contact", "fields": []any{"Id", "Email"}})
	require.False(t, res.IsError, text(t, res))
	res = call(t, s.handleSetTargetTable, map[string]any{"object": "Contact", "table": "stg_sf_contact"})
	require.False(t, res.IsError, text(t, res))
	res = call(t, s.handleBindField, map[string]any{"object": "Contact", "field": "Email", "column": "email"})
	require.False(t, res.IsError, text(t, res))
	res = call(t, s.handleSetStrategy, map[string]any{"object": "Contact", "strategy": "upsert"})
	require.False(t, res.IsError, text(t, res))
	res = call(t, s.handleSetMatchKey, map[string]any{"object": "Contact", "column": "email"})
	require.False(t, res.IsError, text(t, res))

	var step etl.LoadStep
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &step))
	assert.Equal(t, etl.StrategyUpsert, step.Strategy)
	require.NotNil(t, step.MatchKey)
	assert.Equal(t, "email", *step.MatchKey)
	assert.True(t, step.Valid)

	res = call(t, s.handleSaveConfig, nil)
	assert.Contains(t, text(t, res), "Contact (upsert)")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"match_key": "email"`)
}

func TestTools_ValidationErrorLeavesSessionUnchanged(t *testing.T) {
	s, _ := newTestServer(t)

	res := call(t, s.handleAddMapping, map[string]any{"object": "Opportunity", "fields": []any{"Id"}})
	assert.True(t, res.IsError)
	assert.Empty(t, s.sess.Mappings())
	assert.False(t, s.dirty)

	res = call(t, s.handleRemoveMapping, map[string]any{"index": float64(0)})
	assert.True(t, res.IsError)
}

func TestTools_UpsertWithoutColumnsIsInvalid(t *testing.T) {
	s, _ := newTestServer(t)
	call(t, s.handleAddMapping, map[string]any{"object": "Account", "fields": []any{"Id"}})

	res := call(t, s.handleSetStrategy, map[string]any{"object": "Account", "strategy": "upsert"})
	require.False(t, res.IsError, text(t, res))

	var step etl.LoadStep
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &step))
	assert.Nil(t, step.MatchKey)
	assert.False(t, step.Valid)
}

func TestTools_BindFieldWithoutColumnUnbinds(t *testing.T) {
	s, _ := newTestServer(t)
	call(t, s.handleAddMapping, map[string]any{"object": "Account", "fields": []any{"Id", "Name"}})
	call(t, s.handleSetTargetTable, map[string]any{"object": "Account", "table": "stg_sf_account"})
	call(t, s.handleBindField, map[string]any{"object": "Account", "field": "Name", "column": "name"})
	assert.Equal(t, []string{"Account"}, s.sess.LoadOrder())

	res := call(t, s.handleBindField, map[string]any{"object": "Account", "field": "Name"})
	require.False(t, res.IsError, text(t, res))
	assert.Empty(t, s.sess.LoadOrder())
}

func TestTools_MoveStep(t *testing.T) {
	s, _ := newTestServer(t)
	for _, o := range []struct{ object, field, table, column string }{
		{"Account", "Name", "stg_sf_account", "name"},
		{"Contact", "Email", "stg_sf_contact", "email"},
	} {
		call(t, s.handleAddMapping, map[string]any{"object": o.object, "fields": []any{o.field}})
		call(t, s.handleSetTargetTable, map[string]any{"object": o.object, "table": o.table})
		call(t, s.handleBindField, map[string]any{"object": o.object, "field": o.field, "column": o.column})
	}
	require.Equal(t, []string{"Account", "Contact"}, s.sess.LoadOrder())

	call(t, s.handleMoveStep, map[string]any{"index": float64(1), "direction": "up"})
	assert.Equal(t, []string{"Contact", "Account"}, s.sess.LoadOrder())

	call(t, s.handleMoveStep, map[string]any{"index": float64(0), "direction": "up"})
	assert.Equal(t, []string{"Contact", "Account"}, s.sess.LoadOrder())

	res := call(t, s.handleMoveStep, map[string]any{"index": float64(0), "direction": "sideways"})
	assert.True(t, res.IsError)
}

func TestTools_SetTransformAcceptsObject(t *testing.T) {
	s, _ := newTestServer(t)
	call(t, s.handleAddMapping, map[string]any{"object": "Account", "fields": []any{"Id"}})

	res := call(t, s.handleSetTransform, map[string]any{
		"object":        "Account",
		"field":         "Id",
		"transformJSON": map[string]any{"type": "to_number", "decimal_places": float64(2), "null_strategy": "zero"},
	})
	require.False(t, res.IsError, text(t, res))
	cfg := s.sess.State().Transformations.Transform("Account", "Id")
	assert.Equal(t, etl.TransformToNumber, cfg.Type)
	assert.Equal(t, 2, cfg.DecimalPlaces)

	res = call(t, s.handleSetTransform, map[string]any{
		"object":        "Account",
		"field":         "Id",
		"transformJSON": `{"type": "to_number", "decimal_places": 11}`,
	})
	assert.True(t, res.IsError)
	assert.Equal(t, 2, s.sess.State().Transformations.Transform("Account", "Id").DecimalPlaces)
}

func TestTools_ReloadDiscardsEdits(t *testing.T) {
	s, _ := newTestServer(t)
	call(t, s.handleAddMapping, map[string]any{"object": "Account", "fields": []any{"Id"}})
	require.True(t, s.dirty)

	res := call(t, s.handleReloadConfig, nil)
	assert.Contains(t, text(t, res), `"discarded_edits": true`)
	assert.Empty(t, s.sess.Mappings())
}

func TestTools_AddMappingLogsUnavailableFieldList(t *testing.T) {
	var logs bytes.Buffer
	provider := func(*etl.Document) etl.CatalogProvider {
		return &etl.StaticProvider{Objects: []etl.ObjectInfo{{Name: "Account"}}, Tables: etl.DefaultTargetTables()}
	}
	path := filepath.Join(t.TempDir(), "config.json")
	svc := service.NewConfigService(storage.NewConfigStore(storage.NewFileSink(path), ""), provider, nil, zerolog.Nop())
	s, err := New(context.Background(), Deps{Service: svc, Log: zerolog.New(&logs)})
	require.NoError(t, err)

	res := call(t, s.handleAddMapping, map[string]any{"object": "Account", "fields": []any{"Id"}})
	require.False(t, res.IsError, text(t, res))
	assert.Contains(t, logs.String(), `"object":"Account"`)
	assert.Contains(t, logs.String(), "field names not checked")
}
