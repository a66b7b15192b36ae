package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfetl/internal/etl"
)

const testFixture = `
objects:
  - name: Account
    fields:
      - {name: Id}
      - {name: Name}
    rows:
      - {Id: "001", Name: Acme}
  - name: Contact
    fields:
      - {name: Id}
      - {name: Email}
    rows:
      - {Id: "003A", Email: a@example.com}
      - {Id: "003B", Email: b@example.com}
`

type harness struct {
	t       *testing.T
	store   string
	fixture string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	fixture := filepath.Join(dir, "fixture.yaml")
	require.NoError(t, os.WriteFile(fixture, []byte(testFixture), 0o600))
	return &harness{t: t, store: filepath.Join(dir, "config.json"), fixture: fixture}
}

// run executes one sfetl invocation and returns its stdout.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--store-path", h.store, "--fixture", h.fixture, "--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, "sfetl %s", strings.Join(args, " "))
	return out
}

func (h *harness) buildContactUpsert() {
	h.mustRun("mapping", "add", "Contact", "Id", "Email")
	h.mustRun("transform", "table", "Contact", "stg_sf_contact")
	h.mustRun("transform", "bind", "Contact", "Id", "sf_id")
	h.mustRun("transform", "bind", "Contact", "Email", "email")
	h.mustRun("load", "strategy", "Contact", "upsert")
	h.mustRun("load", "key", "Contact", "email")
}

func TestCLI_EditPlanAndRun(t *testing.T) {
	h := newHarness(t)
	h.buildContactUpsert()

	order := h.mustRun("load", "order")
	assert.Contains(t, order, "stg_sf_contact")
	assert.Contains(t, order, "Contact (upsert)")

	var plan etl.LoadPlan
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("plan")), &plan))
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, "email", plan.Steps[0].MatchKey)
	assert.Equal(t, etl.DefaultBatchSize, plan.BatchSize)

	run := h.mustRun("run")
	assert.Contains(t, run, "ON DUPLICATE KEY UPDATE `sf_id` = VALUES(`sf_id`)")
	assert.Contains(t, run, "2 rows read")
	assert.Contains(t, run, "success")
}

func TestCLI_ValidationErrorLeavesStoreUntouched(t *testing.T) {
	h := newHarness(t)
	h.mustRun("mapping", "add", "Contact", "Id", "Email")
	before, err := os.ReadFile(h.store)
	require.NoError(t, err)

	_, err = h.run("transform", "table", "Contact", "no_such_table")
	require.Error(t, err)

	_, err = h.run("mapping", "add", "Contact", "NoSuchField")
	require.Error(t, err)

	after, err := os.ReadFile(h.store)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCLI_UpsertWithoutKeyBlocksPlan(t *testing.T) {
	h := newHarness(t)
	h.mustRun("mapping", "add", "Contact", "Email")
	h.mustRun("transform", "table", "Contact", "stg_sf_contact")
	h.mustRun("transform", "bind", "Contact", "Email", "email")

	out := h.mustRun("load", "strategy", "Contact", "upsert")
	assert.Contains(t, out, "invalid")

	_, err := h.run("plan")
	require.Error(t, err)
	assert.True(t, etl.IsValidation(err))
}

func TestCLI_RemoveMappingShrinksLoadOrder(t *testing.T) {
	h := newHarness(t)
	h.mustRun("mapping", "add", "Account", "Id", "Name")
	h.mustRun("transform", "table", "Account", "stg_sf_account")
	h.mustRun("transform", "bind", "Account", "Name", "name")
	h.buildContactUpsert()

	out := h.mustRun("load", "move", "1", "up")
	assert.Equal(t, "Contact (upsert) → Account (insert)\n", out)

	out = h.mustRun("mapping", "remove", "0")
	assert.Contains(t, out, "load order: Contact (upsert)")

	diags := h.mustRun("transform", "diagnostics")
	assert.Contains(t, diags, "Account")
}

func TestCLI_BindSkipAndTransform(t *testing.T) {
	h := newHarness(t)
	h.mustRun("mapping", "add", "Contact", "Id", "Email")
	h.mustRun("transform", "table", "Contact", "stg_sf_contact")
	h.mustRun("transform", "bind", "Contact", "Email", "email")
	h.mustRun("transform", "bind", "Contact", "Id", "--skip")
	h.mustRun("transform", "set", "Contact", "Email", "--type", "to_boolean", "--true", "Y,yes", "--false", "N")

	show := h.mustRun("transform", "show", "Contact")
	assert.Contains(t, show, "Contact → stg_sf_contact")
	assert.Contains(t, show, string(etl.StatusUnmapped))

	_, err := h.run("transform", "bind", "Contact", "Id")
	require.Error(t, err)
	_, err = h.run("transform", "set", "Contact", "Email", "--type", "to_number", "--decimals", "11")
	require.Error(t, err)
}

func TestCLI_BatchSizeBounds(t *testing.T) {
	h := newHarness(t)
	h.mustRun("load", "batch", "500")
	_, err := h.run("load", "batch", "0")
	require.Error(t, err)
	_, err = h.run("load", "batch", "10001")
	require.Error(t, err)
	assert.Contains(t, h.mustRun("load", "order"), "nothing to load")
}

func TestCLI_Schedule(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("schedule", "set", "--frequency", "Weekly", "--weekday", "Friday", "--time", "18:00:00", "--active")
	assert.Contains(t, out, "Friday")

	next := h.mustRun("schedule", "next", "-n", "3")
	lines := strings.Split(strings.TrimSpace(next), "\n")
	require.Len(t, lines, 3)
	for _, l := range lines {
		assert.True(t, strings.HasPrefix(l, "Fri,"), l)
	}

	_, err := h.run("schedule", "set", "--frequency", "Cron Expression", "--cron", "not a cron")
	require.Error(t, err)
}

func TestCLI_MigrateLegacyFile(t *testing.T) {
	h := newHarness(t)
	legacy := filepath.Join(t.TempDir(), "legacy.json")
	require.NoError(t, os.WriteFile(legacy, []byte(`{"etl_config":{"selected_object":"Account","selected_fields":["Id","Name"]}}`), 0o600))

	out := h.mustRun("migrate", legacy)
	assert.Contains(t, out, `"mappings"`)
	assert.Contains(t, out, `"Account"`)
	assert.NotContains(t, out, "selected_object")
}

func TestCLI_Preview(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("preview", "Contact", "Email", "--limit", "1")
	assert.Contains(t, out, "a@example.com")
	assert.NotContains(t, out, "b@example.com")
}

func TestCLI_HistoryNeedsDatabaseStore(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("history")
	require.Error(t, err)
}

func TestCLI_MappingWithoutSourceLogsUncheckedFields(t *testing.T) {
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"--store-path", filepath.Join(t.TempDir(), "config.json"),
		"--log-level", "warn", "--log-format", "json", "mapping", "add", "Account", "Id"})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "mapped Account: Id")
	assert.Contains(t, errOut.String(), `"object":"Account"`)
	assert.Contains(t, errOut.String(), "field names not checked")
}

func TestCLI_Sources(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("sources")
	assert.Contains(t, out, "csv_dir")
	assert.Contains(t, out, "dirPath")
	assert.Contains(t, out, "fixture")
	assert.Contains(t, out, "filePath")
	assert.Less(t, strings.Index(out, "csv_dir"), strings.Index(out, "fixture"), "sorted by type")
}

func TestCLI_Status(t *testing.T) {
	h := newHarness(t)
	var st struct {
		Store    string `json:"store"`
		Key      string `json:"key"`
		Stored   bool   `json:"stored"`
		Mappings int    `json:"mappings"`
		Flow     string `json:"load_order"`
	}
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("status", "-o", "json")), &st))
	assert.False(t, st.Stored)
	assert.Equal(t, "default", st.Key)
	assert.Equal(t, "file "+h.store, st.Store)

	h.buildContactUpsert()
	require.NoError(t, json.Unmarshal([]byte(h.mustRun("status", "-o", "json")), &st))
	assert.True(t, st.Stored)
	assert.Equal(t, 1, st.Mappings)
	assert.Equal(t, "Contact (upsert)", st.Flow)

	assert.Contains(t, h.mustRun("status"), "load order:")
}

func TestCLI_HistoryShowWithSQLiteStore(t *testing.T) {
	h := newHarness(t)
	h.store = filepath.Join(t.TempDir(), "sfetl.db")
	h.mustRun("--store-backend", "sqlite", "mapping", "add", "Account", "Id")
	h.mustRun("--store-backend", "sqlite", "mapping", "add", "Contact", "Email")

	lines := strings.Split(strings.TrimSpace(h.mustRun("--store-backend", "sqlite", "history")), "\n")
	require.Len(t, lines, 3, "header and two revisions")
	var counts []int
	for _, line := range lines[1:] {
		id := strings.Fields(line)[2]
		var doc etl.Document
		require.NoError(t, json.Unmarshal([]byte(h.mustRun("--store-backend", "sqlite", "history", "show", id)), &doc))
		assert.Equal(t, "Account", doc.ETL.Mappings[0].Object)
		counts = append(counts, len(doc.ETL.Mappings))
	}
	assert.ElementsMatch(t, []int{1, 2}, counts)

	_, err := h.run("--store-backend", "sqlite", "history", "show", "missing")
	assert.Error(t, err)

	assert.Contains(t, h.mustRun("--store-backend", "sqlite", "status"), "sqlite "+h.store)
}
