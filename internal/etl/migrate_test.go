package etl

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestMigrate_LegacySelection(t *testing.T) {
	raw := []byte(`{"etl_config":{"selected_object":"Account","selected_fields":["Id"," Name ",""],"batch_size":500}}`)
	out, warnings, err := Migrate(raw)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.False(t, gjson.GetBytes(out, "etl_config.selected_object").Exists())
	assert.False(t, gjson.GetBytes(out, "etl_config.selected_fields").Exists())
	assert.JSONEq(t, `[{"object":"Account","fields":["Id","Name"]}]`, gjson.GetBytes(out, "etl_config.mappings").Raw)
	assert.Equal(t, int64(500), gjson.GetBytes(out, "etl_config.batch_size").Int())
}

func TestMigrate_RootSelectionMovesIntoETLConfig(t *testing.T) {
	out, warnings, err := Migrate([]byte(`{"selected_object":"Lead","selected_fields":["Email"],"sf_config":{"username":"u"}}`))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.JSONEq(t, `{"sf_config":{"username":"u"},"etl_config":{"mappings":[{"object":"Lead","fields":["Email"]}]}}`, string(out))
}

func TestMigrate_RootSelectionMergesWithExistingMappings(t *testing.T) {
	raw := []byte(`{"selected_object":"Lead","selected_fields":["Email"],
		"etl_config":{"mappings":[{"object":"Contact","fields":["Id"]},{"object":"Lead","fields":["Email"]}],"batch_size":50}}`)
	out, _, err := Migrate(raw)
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(out, "selected_object").Exists())
	assert.JSONEq(t, `[{"object":"Contact","fields":["Id"]},{"object":"Lead","fields":["Email"]}]`,
		gjson.GetBytes(out, "etl_config.mappings").Raw)

	raw = []byte(`{"selected_object":"Account","selected_fields":["Id"],"etl_config":{"mappings":[{"object":"Contact","fields":["Id"]}]}}`)
	out, _, err = Migrate(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"object":"Contact","fields":["Id"]},{"object":"Account","fields":["Id"]}]`,
		gjson.GetBytes(out, "etl_config.mappings").Raw)
}

func TestMigrate_RootAndNestedSelections(t *testing.T) {
	raw := []byte(`{"selected_object":"Lead","selected_fields":["Email"],
		"etl_config":{"selected_object":"Account","selected_fields":["Id"]}}`)
	out, _, err := Migrate(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"object":"Account","fields":["Id"]},{"object":"Lead","fields":["Email"]}]`,
		gjson.GetBytes(out, "etl_config.mappings").Raw)
	assert.False(t, gjson.GetBytes(out, "etl_config.selected_object").Exists())
}

func TestMigrate_RootSelectionBesideNonObjectConfig(t *testing.T) {
	raw := []byte(`{"selected_object":"Lead","selected_fields":["Email"],"etl_config":"broken"}`)
	out, warnings, err := Migrate(raw)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, string(raw), string(out))
}

func TestMigrate_RootSelectionReachesSession(t *testing.T) {
	out, _, err := Migrate([]byte(`{"selected_object":"Account","selected_fields":["Id","Name"]}`))
	require.NoError(t, err)

	var doc Document
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.NotContains(t, doc.Extra, "mappings")

	sess, _ := NewSession(&doc, nil)
	assert.Equal(t, Registry{{Object: "Account", Fields: []string{"Id", "Name"}}}, sess.Mappings())
}

func TestMigrate_DroppedSelectionsWarn(t *testing.T) {
	out, warnings, err := Migrate([]byte(`{"etl_config":{"selected_object":"Account","selected_fields":[]}}`))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "etl_config.selected_object", warnings[0].Path)
	assert.JSONEq(t, `[]`, gjson.GetBytes(out, "etl_config.mappings").Raw)

	_, warnings, err = Migrate([]byte(`{"etl_config":{"selected_fields":["Id"]}}`))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "etl_config.selected_fields", warnings[0].Path)
}

func TestMigrate_ExistingMappingsWin(t *testing.T) {
	raw := []byte(`{"etl_config":{"mappings":[{"object":"Contact","fields":["Id"]}],"selected_object":"Account","selected_fields":["Id"]}}`)
	out, warnings, err := Migrate(raw)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, string(raw), string(out))
}

func TestMigrate_CurrentDocumentIsByteIdentical(t *testing.T) {
	doc := DefaultDocument()
	doc.ETL.Mappings = Registry{{Object: "Account", Fields: []string{"Id"}}}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	out, warnings, err := Migrate(raw)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, raw, out)

	again, _, err := Migrate(out)
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestMigrate_Idempotent(t *testing.T) {
	inputs := map[string]string{
		"nested selection":   `{"etl_config":{"selected_object":"Account","selected_fields":["Id","Name"]}}`,
		"root selection":     `{"selected_object":"Lead","selected_fields":["Email"],"extra":{"a":[1,2]}}`,
		"both selections":    `{"selected_object":"Lead","selected_fields":["Email"],"etl_config":{"selected_object":"Account","selected_fields":["Id"]}}`,
		"empty selection":    `{"etl_config":{"selected_object":"Account","selected_fields":[]}}`,
		"short run time":     `{"schedule_config":{"frequency":"Daily","run_time":"7:05"}}`,
		"pm run time":        `{"schedule_config":{"frequency":"Daily","run_time":"3:30 PM"}}`,
		"rfc3339 run time":   `{"schedule_config":{"frequency":"Daily","run_time":"2024-01-02T06:07:08Z"}}`,
		"fractional seconds": `{"schedule_config":{"frequency":"Daily","run_time":"06:07:08.250000"}}`,
		"bad run time":       `{"schedule_config":{"frequency":"Daily","run_time":"teatime"}}`,
		"numeric run time":   `{"schedule_config":{"frequency":"Daily","run_time":900}}`,
		"legacy transforms": `{"etl_config":{"transformations":{"Lead":{"load_strategy":"MERGE (UPSERT)",
			"field_configs":{"IsActive":{"type":"To Boolean","true_val":"Y, yes","false_val":"N"}}}}}}`,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			once, _, err := Migrate([]byte(in))
			require.NoError(t, err)
			twice, warnings, err := Migrate(once)
			require.NoError(t, err)
			assert.Empty(t, warnings)
			assert.Equal(t, string(once), string(twice))
		})
	}
}

func TestMigrate_RunTime(t *testing.T) {
	out, warnings, err := Migrate([]byte(`{"schedule_config":{"frequency":"Daily","run_time":"7:05"}}`))
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "07:05:00", gjson.GetBytes(out, "schedule_config.run_time").Str)

	out, warnings, err = Migrate([]byte(`{"schedule_config":{"frequency":"Daily","run_time":"teatime"}}`))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "schedule_config.run_time", warnings[0].Path)
	assert.Equal(t, DefaultRunTime.String(), gjson.GetBytes(out, "schedule_config.run_time").Str)

	out, _, err = Migrate([]byte(`{"schedule_config":{"frequency":"Daily","run_time":900}}`))
	require.NoError(t, err)
	assert.Equal(t, "09:00:00", gjson.GetBytes(out, "schedule_config.run_time").Str)
}

func TestMigrate_LegacyTransformKeys(t *testing.T) {
	raw := []byte(`{
		"etl_config": {
			"transformations": {
				"Opportunity": {
					"target_table": "stg_sf_opportunity",
					"load_strategy": "MERGE (UPSERT)",
					"field_configs": {
						"Amount": {"type": "To Number", "handle_null": "Keep Null", "decimal_places": 2},
						"CloseDate": {"type": "to_date", "src_fmt": "ISO8601", "tgt_fmt": "YYYY-MM-DD", "tz_convert": false},
						"IsWon": {"type": "to_boolean", "true_val": "Y, yes", "false_val": "N", "false_values": ["No"]}
					},
					"x_custom": {"keep": true}
				}
			}
		},
		"ui_state": {"collapsed": ["Opportunity"]}
	}`)
	out, warnings, err := Migrate(raw)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	obj := gjson.GetBytes(out, "etl_config.transformations.Opportunity")
	assert.Equal(t, "upsert", obj.Get("load_strategy").Str)
	assert.JSONEq(t, `{"type":"to_number","null_strategy":"keep_null","decimal_places":2}`, obj.Get("field_configs.Amount").Raw)
	assert.JSONEq(t, `{"type":"to_date","source_format":"ISO8601","target_format":"YYYY-MM-DD","timezone_convert":false}`,
		obj.Get("field_configs.CloseDate").Raw)
	assert.JSONEq(t, `{"type":"to_boolean","true_values":["Y","yes"],"false_values":["No"]}`, obj.Get("field_configs.IsWon").Raw)

	assert.JSONEq(t, `{"keep":true}`, obj.Get("x_custom").Raw, "nested unknown keys survive")
	assert.JSONEq(t, `{"collapsed":["Opportunity"]}`, gjson.GetBytes(out, "ui_state").Raw)

	again, _, err := Migrate(out)
	require.NoError(t, err)
	assert.Equal(t, out, again, "migration is idempotent")
}

func TestMigrate_RejectsNonObjects(t *testing.T) {
	for _, raw := range []string{`[]`, `"config"`, `{"broken":`, ``} {
		_, _, err := Migrate([]byte(raw))
		assert.Error(t, err, raw)
	}
}
