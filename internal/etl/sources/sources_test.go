package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfetl/internal/etl"
)

func TestParseFixture(t *testing.T) {
	f, err := ParseFixture([]byte(`
objects:
  - name: Account
    fields: [{name: Id, label: Account ID}, {name: Name}]
    rows:
      - {Id: "001", Name: Acme}
      - {Id: "002", Name: Globex}
tables:
  - {name: dim_account, columns: [id, name]}
`))
	require.NoError(t, err)
	ctx := context.Background()

	objs, err := f.ListObjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []etl.ObjectInfo{{Name: "Account", Label: "Account"}}, objs)

	fields, err := f.ListFields(ctx, "Account")
	require.NoError(t, err)
	assert.Equal(t, []etl.FieldInfo{{Name: "Id", Label: "Account ID"}, {Name: "Name", Label: "Name"}}, fields)

	tables, err := f.ListTargetTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []etl.TableInfo{{Name: "dim_account", Columns: []string{"id", "name"}}}, tables)

	rows, err := f.Query(ctx, "Account", []string{"Name"}, 1)
	require.NoError(t, err)
	assert.Equal(t, []etl.Record{{Data: map[string]any{"Name": "Acme"}}}, rows)

	_, err = f.Query(ctx, "Account", []string{"Phone"}, 0)
	assert.Error(t, err)
	_, err = f.ListFields(ctx, "Lead")
	assert.Error(t, err)
}

func TestParseFixture_Invalid(t *testing.T) {
	_, err := ParseFixture([]byte(`objects: [{label: nameless}]`))
	assert.Error(t, err)
	_, err = ParseFixture([]byte(`objects: [{name: A}, {name: A}]`))
	assert.Error(t, err)
}

func TestFixture_DefaultTables(t *testing.T) {
	f, err := ParseFixture([]byte(`objects: [{name: Account}]`))
	require.NoError(t, err)
	tables, err := f.ListTargetTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, etl.DefaultTargetTables(), tables)
}

func TestCSVDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Lead.csv"),
		[]byte("Id,Email,IsConverted,Score\nL1,a@example.com,yes,12.5\nL2,,no,\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Account.csv"), []byte("Id\nA1\n"), 0o600))

	src, err := etl.OpenSource(TypeCSVDir, etl.SourceConfig{"dirPath": dir})
	require.NoError(t, err)
	ctx := context.Background()

	objs, err := src.ListObjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []etl.ObjectInfo{{Name: "Account", Label: "Account"}, {Name: "Lead", Label: "Lead"}}, objs)

	fields, err := src.ListFields(ctx, "Lead")
	require.NoError(t, err)
	assert.Equal(t, []string{"Id", "Email", "IsConverted", "Score"}, etl.FieldNames(fields))

	rows, err := src.Query(ctx, "Lead", []string{"Email", "IsConverted", "Score"}, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]any{"Email": "a@example.com", "IsConverted": true, "Score": 12.5}, rows[0].Data)
	assert.Equal(t, map[string]any{"Email": nil, "IsConverted": false, "Score": nil}, rows[1].Data)

	_, err = src.Query(ctx, "../Lead", []string{"Id"}, 1)
	assert.Error(t, err)
	_, err = etl.OpenSource(TypeCSVDir, etl.SourceConfig{"dirPath": filepath.Join(dir, "Lead.csv")})
	assert.Error(t, err)
}

func TestOpenFixtureRequiresPath(t *testing.T) {
	_, err := etl.OpenSource(TypeFixture, etl.SourceConfig{})
	assert.Error(t, err)
}
