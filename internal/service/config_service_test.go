package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfetl/internal/etl"
	"sfetl/internal/service"
	"sfetl/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// ConfigService tests
// File and SQLite sinks in t.TempDir(), static catalog metadata.
// ─────────────────────────────────────────────────────────────

func testProvider(*etl.Document) etl.CatalogProvider {
	return &etl.StaticProvider{
		Objects: []etl.ObjectInfo{{Name: "Account", Label: "Account"}, {Name: "Contact", Label: "Contact"}},
		Fields: map[string][]etl.FieldInfo{
			"Account": {{Name: "Id"}, {Name: "Name"}},
			"Contact": {{Name: "Id"}, {Name: "Email"}},
		},
		Tables: etl.DefaultTargetTables(),
	}
}

func newFileService(t *testing.T) (*service.ConfigService, *service.MockEmitter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	emitter := &service.MockEmitter{}
	store := storage.NewConfigStore(storage.NewFileSink(path), "")
	return service.NewConfigService(store, testProvider, emitter, zerolog.Nop()), emitter, path
}

func strp(s string) *string { return &s }

func buildContact(t *testing.T, sess *etl.Session) {
	t.Helper()
	require.NoError(t, sess.AddMapping("Contact", []string{"Id", "Email"}))
	require.NoError(t, sess.SetTargetTable("Contact", "stg_sf_contact"))
	require.NoError(t, sess.BindField("Contact", "Email", strp("email")))
	_, err := sess.SetStrategy("Contact", etl.StrategyUpsert)
	require.NoError(t, err)
	require.NoError(t, sess.SetMatchKey("Contact", "email"))
}

func TestConfigService_OpenEmptyStore(t *testing.T) {
	svc, emitter, _ := newFileService(t)

	sess, err := svc.Open(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sess.Mappings())
	assert.Empty(t, sess.LoadOrder())
	assert.Equal(t, etl.DefaultBatchSize, sess.BatchSize())
	assert.Empty(t, emitter.Events)
}

func TestConfigService_SaveAndReopen(t *testing.T) {
	svc, emitter, _ := newFileService(t)
	ctx := context.Background()

	sess, err := svc.Open(ctx)
	require.NoError(t, err)
	buildContact(t, sess)
	require.NoError(t, svc.Save(ctx, sess))
	assert.Len(t, emitter.Named(service.EventSaved), 1)

	again, err := svc.Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Contact"}, again.LoadOrder())
	step, ok := again.Step("Contact")
	require.True(t, ok)
	assert.True(t, step.Valid)
	require.NotNil(t, step.MatchKey)
	assert.Equal(t, "email", *step.MatchKey)
}

func TestConfigService_OpenLegacyEmitsWarnings(t *testing.T) {
	svc, emitter, path := newFileService(t)
	legacy := `{
		"etl_config": {"selected_object": "Account", "selected_fields": ["Id", "Name"]},
		"schedule_config": {"frequency": "Daily", "run_time": "half past nine"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	sess, err := svc.Open(context.Background())
	require.NoError(t, err)
	require.Len(t, sess.Mappings(), 1)
	assert.Equal(t, "Account", sess.Mappings()[0].Object)
	assert.Equal(t, etl.DefaultRunTime, sess.Schedule().RunTime)

	warnings := emitter.Named(service.EventWarning)
	require.NotEmpty(t, warnings)
	w, ok := warnings[0].Data.(etl.MigrationWarning)
	require.True(t, ok)
	assert.Equal(t, "schedule_config.run_time", w.Path)
}

func TestConfigService_Migrate(t *testing.T) {
	svc, _, path := newFileService(t)
	ctx := context.Background()
	legacy := `{"selected_object": "Contact", "selected_fields": ["Email"], "ui_theme": {"dark": true}}`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	changed, _, err := svc.Migrate(ctx)
	require.NoError(t, err)
	assert.True(t, changed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mappings"`)
	assert.Contains(t, string(data), `"ui_theme"`)
	assert.NotContains(t, string(data), `"selected_object"`)

	changed, _, err = svc.Migrate(ctx)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestConfigService_MigrateAbsent(t *testing.T) {
	svc, _, _ := newFileService(t)
	changed, warnings, err := svc.Migrate(context.Background())
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, warnings)
}

func TestConfigService_SetSchedule(t *testing.T) {
	svc, _, _ := newFileService(t)
	sess, err := svc.Open(context.Background())
	require.NoError(t, err)

	err = svc.SetSchedule(sess, etl.ScheduleConfig{Frequency: etl.FrequencyCron, CronExpr: "every day"})
	require.Error(t, err)
	assert.True(t, etl.IsValidation(err))
	assert.Equal(t, etl.FrequencyDaily, sess.Schedule().Frequency)

	sc := etl.ScheduleConfig{Frequency: etl.FrequencyCron, CronExpr: "0 6 * * 1-5", IsActive: true}
	require.NoError(t, svc.SetSchedule(sess, sc))
	assert.Equal(t, sc, sess.Schedule())
}

type failingProvider struct{}

func (failingProvider) ListObjects(context.Context) ([]etl.ObjectInfo, error) {
	return nil, errors.New("login refused")
}

func (failingProvider) ListFields(context.Context, string) ([]etl.FieldInfo, error) {
	return nil, errors.New("login refused")
}

func (failingProvider) ListTargetTables(context.Context) ([]etl.TableInfo, error) {
	return etl.DefaultTargetTables(), nil
}

func TestConfigService_DegradedCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	emitter := &service.MockEmitter{}
	store := storage.NewConfigStore(storage.NewFileSink(path), "")
	svc := service.NewConfigService(store, func(*etl.Document) etl.CatalogProvider { return failingProvider{} }, emitter, zerolog.Nop())

	sess, err := svc.Open(context.Background())
	require.NoError(t, err)
	assert.True(t, sess.Catalog().Degraded())
	assert.Len(t, emitter.Named(service.EventDegraded), 1)

	// Objects cannot be checked, so any name is accepted.
	require.NoError(t, sess.AddMapping("Whatever__c", []string{"Id"}))
}

func TestConfigService_RunRecordsHistory(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenDB(ctx, storage.DialectSQLite, filepath.Join(t.TempDir(), "sfetl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	emitter := &service.MockEmitter{}
	store := storage.NewConfigStore(storage.NewSQLSink(db), "")
	svc := service.NewConfigService(store, testProvider, emitter, zerolog.Nop())

	sess, err := svc.Open(ctx)
	require.NoError(t, err)
	buildContact(t, sess)
	require.NoError(t, svc.Save(ctx, sess))

	report, err := svc.Run(ctx, sess, &etl.DryRunLoader{})
	require.NoError(t, err)
	assert.Equal(t, "success", report.Status)
	require.Len(t, report.Steps, 1)
	assert.Contains(t, report.Steps[0].Statements[0], "ON DUPLICATE KEY UPDATE")

	runs, err := svc.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.PlanID, runs[0].PlanID)
	assert.Len(t, emitter.Named(service.EventRunFinish), 1)

	revs, err := svc.History(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, revs, 1)
}

func TestConfigService_RunRefusesInvalidPlan(t *testing.T) {
	svc, _, _ := newFileService(t)
	ctx := context.Background()
	sess, err := svc.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.AddMapping("Contact", []string{"Id"}))

	_, err = svc.Run(ctx, sess, &etl.DryRunLoader{})
	require.Error(t, err)
	assert.True(t, etl.IsValidation(err))
}

func TestConfigService_HistoryUnsupported(t *testing.T) {
	svc, _, _ := newFileService(t)
	_, err := svc.History(context.Background(), 5)
	assert.Error(t, err)
	_, err = svc.Runs(context.Background(), 5)
	assert.Error(t, err)
}

func TestConfigService_WatchReloadsExternalEdits(t *testing.T) {
	svc, emitter, path := newFileService(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess, err := svc.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.Save(ctx, sess))

	changed := make(chan *etl.Session, 1)
	require.NoError(t, svc.Watch(ctx, func(s *etl.Session) {
		select {
		case changed <- s:
		default:
		}
	}))
	defer svc.Stop()

	external := `{"etl_config": {"mappings": [{"object": "Account", "fields": ["Id"]}]}}`
	require.NoError(t, os.WriteFile(path, []byte(external), 0o644))

	select {
	case s := <-changed:
		require.Len(t, s.Mappings(), 1)
		assert.Equal(t, "Account", s.Mappings()[0].Object)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after external edit")
	}
	assert.NotEmpty(t, emitter.Named(service.EventChanged))
}

func TestConfigService_WatchRequiresFileSink(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenDB(ctx, storage.DialectSQLite, filepath.Join(t.TempDir(), "sfetl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := service.NewConfigService(storage.NewConfigStore(storage.NewSQLSink(db), ""), nil, nil, zerolog.Nop())
	assert.Error(t, svc.Watch(ctx, nil))
}

func TestConfigService_StopIdempotent(t *testing.T) {
	svc, _, _ := newFileService(t)
	svc.Stop()
	svc.Stop()
}
