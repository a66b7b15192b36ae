package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfetl/internal/etl"
)

func sampleDocument() *etl.Document {
	doc := etl.DefaultDocument()
	email := "email"
	doc.ETL.Mappings = etl.Registry{{Object: "Contact", Fields: []string{"Id", "Email"}}}
	doc.ETL.Transformations = etl.Rules{"Contact": {
		TargetTable:  "stg_sf_contact",
		FieldMap:     map[string]*string{"Email": &email, "Id": nil},
		LoadStrategy: etl.StrategyUpsert,
		MatchKey:     &email,
	}}
	doc.ETL.LoadOrder = []string{"Contact"}
	doc.Extra = map[string]json.RawMessage{"ui_state": json.RawMessage(`{"tab":2}`)}
	return doc
}

// ── File sink ──────────────────────────────────────────────

func TestFileSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	store := NewConfigStore(NewFileSink(path), "")
	ctx := context.Background()

	doc, warnings, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, doc, "absent document")
	assert.Empty(t, warnings)

	require.NoError(t, store.Save(ctx, sampleDocument()))
	got, warnings, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, sampleDocument(), got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp", "temp files are renamed or removed")
	}
}

func TestFileSink_EmptyFileLoadsEmptyDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	doc, _, err := NewConfigStore(NewFileSink(path), "").Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Empty(t, doc.ETL.Mappings)
}

func TestFileSink_CorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"etl_config": [`), 0o600))

	_, _, err := NewConfigStore(NewFileSink(path), "").Load(context.Background())
	assert.ErrorIs(t, err, etl.ErrPersistence)
}

func TestFileSink_PathFor(t *testing.T) {
	s := NewFileSink("/etc/sfetl/config.json")

	p, err := s.PathFor(DefaultKey)
	require.NoError(t, err)
	assert.Equal(t, "/etc/sfetl/config.json", p)

	p, err = s.PathFor("staging")
	require.NoError(t, err)
	assert.Equal(t, "/etc/sfetl/config.staging.json", p)

	for _, bad := range []string{"../x", `a\b`, ".."} {
		_, err := s.PathFor(bad)
		assert.Error(t, err, bad)
	}
}

func TestFileSink_KeysAreIndependent(t *testing.T) {
	sink := NewFileSink(filepath.Join(t.TempDir(), "config.json"))
	ctx := context.Background()
	require.NoError(t, sink.Put(ctx, "a", []byte(`{"n":1}`)))
	require.NoError(t, sink.Put(ctx, "b", []byte(`{"n":2}`)))

	a, found, err := sink.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"n":1}`, string(a))

	_, found, err = sink.Get(ctx, DefaultKey)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDecode_MigratesLegacyDocument(t *testing.T) {
	doc, warnings, err := Decode([]byte(`{
		"etl_config": {"selected_object": "Account", "selected_fields": ["Id", "Name"], "batch_size": 250},
		"schedule_config": {"frequency": "Weekly", "run_time": "nonsense"},
		"legacy_flag": true
	}`))
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, etl.Registry{{Object: "Account", Fields: []string{"Id", "Name"}}}, doc.ETL.Mappings)
	assert.Equal(t, 250, doc.ETL.BatchSize)
	assert.Equal(t, etl.DefaultRunTime, doc.Schedule.RunTime)
	assert.JSONEq(t, `true`, string(doc.Extra["legacy_flag"]))
}

func TestConfigStore_LoadTopLevelLegacySelection(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"selected_object":"Account","selected_fields":["Id","Name"]}`), 0o600))

	doc, warnings, err := NewConfigStore(NewFileSink(path), "").Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Empty(t, doc.Extra)

	sess, _ := etl.NewSession(doc, nil)
	assert.Equal(t, etl.Registry{{Object: "Account", Fields: []string{"Id", "Name"}}}, sess.Mappings())
}

// ── SQL sink ───────────────────────────────────────────────

func openSQLite(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(context.Background(), DialectSQLite, filepath.Join(t.TempDir(), "sfetl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLSink_RoundTripAndRevisions(t *testing.T) {
	sink := NewSQLSink(openSQLite(t))
	store := NewConfigStore(sink, "prod")
	ctx := context.Background()

	doc, _, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, doc)

	first := sampleDocument()
	require.NoError(t, store.Save(ctx, first))
	second := sampleDocument()
	second.ETL.BatchSize = 50
	require.NoError(t, store.Save(ctx, second))

	got, _, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	revs, err := sink.Revisions(ctx, "prod", 10)
	require.NoError(t, err)
	require.Len(t, revs, 2)
	for _, r := range revs {
		assert.Equal(t, "prod", r.Key)
		data, err := sink.Revision(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, r.Size, len(data))
	}

	_, err = sink.Revision(ctx, "missing")
	assert.Error(t, err)

	other, err := sink.Revisions(ctx, DefaultKey, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSQLSink_Runs(t *testing.T) {
	sink := NewSQLSink(openSQLite(t))
	ctx := context.Background()
	start := time.Now().Add(-time.Minute)

	log, err := sink.RecordRun(ctx, start, &etl.LoadReport{
		PlanID:   "plan-1",
		Status:   "error",
		Duration: 3 * time.Second,
		Error:    "read Contact: boom",
		Steps:    []etl.StepReport{{Object: "Account", RowsRead: 4}, {Object: "Contact", RowsRead: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, log.RowsRead)

	runs, err := sink.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "plan-1", runs[0].PlanID)
	assert.Equal(t, "error", runs[0].Status)
	assert.Equal(t, 2, runs[0].Steps)
	assert.Equal(t, "read Contact: boom", runs[0].Error)
	assert.WithinDuration(t, start.Add(3*time.Second), runs[0].FinishedAt, time.Second)
}

func TestRebind(t *testing.T) {
	pg := &DB{dialect: DialectPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))
	lite := &DB{dialect: DialectSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestOpenDB_UnknownDialect(t *testing.T) {
	_, err := OpenDB(context.Background(), "oracle", "")
	assert.Error(t, err)
}

// ── Lint ───────────────────────────────────────────────────

func TestLint(t *testing.T) {
	current, err := Encode(sampleDocument())
	require.NoError(t, err)
	problems, err := Lint(current)
	require.NoError(t, err)
	assert.Empty(t, problems)

	problems, err = Lint([]byte(`{
		"etl_config": {"selected_object": "Account", "batch_size": 0},
		"schedule_config": {"run_time": "9am"}
	}`))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(problems), 3)
}
