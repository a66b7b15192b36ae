package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"sfetl/internal/etl"
	"sfetl/internal/schedule"
	"sfetl/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Config Service: the load/save boundary of one document
// ─────────────────────────────────────────────────────────────

// ProviderFunc returns the catalog provider for a loaded document. The
// target half usually depends on the document's target_db section.
type ProviderFunc func(doc *etl.Document) etl.CatalogProvider

// runRecorder is implemented by sinks that keep a load-run history.
type runRecorder interface {
	RecordRun(ctx context.Context, start time.Time, report *etl.LoadReport) (*storage.RunLog, error)
}

const watchDebounce = 500 * time.Millisecond

// ErrNotWatchable is returned by Watch for stores that are not file-backed.
var ErrNotWatchable = errors.New("only file-backed documents can be watched")

// ConfigService loads documents into editing sessions and saves them back.
// Warnings raised while loading are logged and emitted, never fatal.
type ConfigService struct {
	store    *storage.ConfigStore
	provider ProviderFunc
	emitter  EventEmitter
	log      zerolog.Logger
	guard    *docGuard

	// watcher lifecycle
	watchMu     sync.Mutex
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	lastSaved   []byte
}

// NewConfigService creates a ConfigService. A nil provider validates
// against an empty offline catalog; a nil emitter drops events.
func NewConfigService(store *storage.ConfigStore, provider ProviderFunc, emitter EventEmitter, log zerolog.Logger) *ConfigService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &ConfigService{
		store:    store,
		provider: provider,
		emitter:  emitter,
		log:      log.With().Str("key", store.Key()).Logger(),
		guard:    &docGuard{key: store.Key()},
	}
}

// Store returns the underlying config store.
func (s *ConfigService) Store() *storage.ConfigStore { return s.store }

// ── Load / Save ────────────────────────────────────────────

// Open loads the stored document, or the default document when nothing is
// stored yet, and returns an editing session over it.
func (s *ConfigService) Open(ctx context.Context) (*etl.Session, error) {
	doc, warnings, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	s.report(ctx, warnings)
	if doc == nil {
		s.log.Info().Msg("no stored configuration, starting from defaults")
		doc = etl.DefaultDocument()
	}

	sess, warnings := etl.NewSession(doc, s.Catalog(ctx, doc))
	s.report(ctx, warnings)
	return sess, nil
}

// Catalog loads the schema catalog for doc. A failing provider degrades
// the catalog; the failure is logged and emitted.
func (s *ConfigService) Catalog(ctx context.Context, doc *etl.Document) *etl.Catalog {
	if s.provider == nil {
		return etl.OfflineCatalog()
	}
	c, err := etl.LoadCatalog(ctx, s.provider(doc))
	if err != nil {
		s.log.Warn().Err(err).Msg("catalog degraded, existence checks skipped")
		s.emitter.Emit(ctx, EventDegraded, err.Error())
	}
	return c
}

func (s *ConfigService) report(ctx context.Context, warnings []etl.MigrationWarning) {
	for _, w := range warnings {
		s.log.Warn().Str("path", w.Path).Msg(w.Msg)
		s.emitter.Emit(ctx, EventWarning, w)
	}
}

// Save persists the session's document. A save overlapping another save
// or a migration fails with a BusyError rather than interleaving.
func (s *ConfigService) Save(ctx context.Context, sess *etl.Session) error {
	release, err := s.guard.acquire(opSave)
	if err != nil {
		return err
	}
	defer release()

	doc := sess.Document()
	if err := s.store.Save(ctx, doc); err != nil {
		s.log.Error().Err(err).Msg("save failed")
		return err
	}
	if data, err := storage.Encode(doc); err == nil {
		s.remember(data)
	}
	s.log.Info().Int("mappings", len(doc.ETL.Mappings)).Int("steps", len(doc.ETL.LoadOrder)).Msg("configuration saved")
	s.emitter.Emit(ctx, EventSaved, s.store.Key())
	return nil
}

// Migrate rewrites the stored document into the current shape in place.
// Unknown keys, nested ones included, survive. It reports whether the
// stored bytes changed.
func (s *ConfigService) Migrate(ctx context.Context) (bool, []etl.MigrationWarning, error) {
	release, err := s.guard.acquire(opMigrate)
	if err != nil {
		return false, nil, err
	}
	defer release()

	raw, found, err := s.store.Sink().Get(ctx, s.store.Key())
	if err != nil {
		return false, nil, &etl.PersistenceError{Op: "load", Err: err}
	}
	if !found {
		return false, nil, nil
	}
	out, warnings, err := etl.Migrate(raw)
	if err != nil {
		return false, nil, &etl.PersistenceError{Op: "migrate", Err: err}
	}
	s.report(ctx, warnings)
	if bytes.Equal(out, raw) {
		return false, warnings, nil
	}
	if err := s.store.Sink().Put(ctx, s.store.Key(), out); err != nil {
		return false, warnings, &etl.PersistenceError{Op: "save", Err: err}
	}
	s.remember(out)
	s.log.Info().Int("warnings", len(warnings)).Msg("configuration migrated")
	return true, warnings, nil
}

// Lint checks the stored document against the current document schema.
func (s *ConfigService) Lint(ctx context.Context) ([]string, error) {
	raw, found, err := s.store.Sink().Get(ctx, s.store.Key())
	if err != nil {
		return nil, &etl.PersistenceError{Op: "load", Err: err}
	}
	if !found {
		return nil, fmt.Errorf("no configuration stored under %q", s.store.Key())
	}
	return storage.Lint(raw)
}

// SetSchedule validates sc, cron expression included, and stores it on sess.
func (s *ConfigService) SetSchedule(sess *etl.Session, sc etl.ScheduleConfig) error {
	if err := schedule.Validate(sc); err != nil {
		return err
	}
	return sess.SetSchedule(sc)
}

// ── History ────────────────────────────────────────────────

// History lists saved revisions when the sink keeps them.
func (s *ConfigService) History(ctx context.Context, limit int) ([]storage.Revision, error) {
	h, ok := s.store.Sink().(storage.Historian)
	if !ok {
		return nil, fmt.Errorf("%T keeps no revision history", s.store.Sink())
	}
	return h.Revisions(ctx, s.store.Key(), limit)
}

// Revision returns the document bytes of one saved revision.
func (s *ConfigService) Revision(ctx context.Context, id string) ([]byte, error) {
	h, ok := s.store.Sink().(storage.Historian)
	if !ok {
		return nil, fmt.Errorf("%T keeps no revision history", s.store.Sink())
	}
	return h.Revision(ctx, id)
}

// Runs lists recorded load runs when the sink keeps them.
func (s *ConfigService) Runs(ctx context.Context, limit int) ([]storage.RunLog, error) {
	sink, ok := s.store.Sink().(*storage.SQLSink)
	if !ok {
		return nil, fmt.Errorf("%T keeps no run history", s.store.Sink())
	}
	return sink.ListRuns(ctx, limit)
}

// ── Run ────────────────────────────────────────────────────

// Run builds the session's plan and hands it to loader. Only one run per
// document executes at a time, and never during a migration. The outcome
// is recorded when the sink keeps a run history.
func (s *ConfigService) Run(ctx context.Context, sess *etl.Session, loader etl.Loader) (*etl.LoadReport, error) {
	release, err := s.guard.acquire(opRun)
	if err != nil {
		return nil, err
	}
	defer release()

	plan, err := sess.Plan()
	if err != nil {
		return nil, err
	}

	engine := &etl.Engine{Loader: loader}
	start := time.Now()
	report, runErr := engine.Run(ctx, plan)
	if report == nil {
		return nil, runErr
	}

	if rec, ok := s.store.Sink().(runRecorder); ok {
		if _, err := rec.RecordRun(ctx, start, report); err != nil {
			s.log.Warn().Err(err).Msg("record run failed")
		}
	}
	ev := s.log.Info()
	if runErr != nil {
		ev = s.log.Error().Err(runErr)
	}
	ev.Str("plan", report.PlanID).Int("steps", len(report.Steps)).Dur("duration", report.Duration).Msg("load finished")
	s.emitter.Emit(ctx, EventRunFinish, report)
	return report, runErr
}

// WaitIdle blocks until running saves, migrations and loads finish. It
// returns ctx's error if they outlast it.
func (s *ConfigService) WaitIdle(ctx context.Context) error {
	return s.guard.waitAll(ctx)
}

// remember records bytes this service wrote so the watcher skips them.
func (s *ConfigService) remember(data []byte) {
	s.watchMu.Lock()
	s.lastSaved = data
	s.watchMu.Unlock()
}

// ── Watch ──────────────────────────────────────────────────

// Watch reloads the document whenever its file changes on disk and passes
// the fresh session to onChange. Bursts of events are debounced; writes
// made by Save itself are ignored. Watch returns once the watcher is set
// up; Stop or cancelling ctx ends it.
func (s *ConfigService) Watch(ctx context.Context, onChange func(*etl.Session)) error {
	fileSink, ok := s.store.Sink().(*storage.FileSink)
	if !ok {
		return ErrNotWatchable
	}
	path, err := fileSink.PathFor(s.store.Key())
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch %q: %w", path, err)
	}

	s.Stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(absPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch dir %q: %w", dir, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	s.watchMu.Lock()
	s.watcher = watcher
	s.watchCancel = cancel
	s.watchMu.Unlock()

	go func() {
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if name, _ := filepath.Abs(event.Name); name != absPath {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(watchDebounce, func() {
					s.reload(watchCtx, absPath, onChange)
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Warn().Err(err).Msg("watcher error")
			}
		}
	}()

	s.log.Info().Str("path", absPath).Msg("watching configuration")
	return nil
}

func (s *ConfigService) reload(ctx context.Context, path string, onChange func(*etl.Session)) {
	if ctx.Err() != nil {
		return
	}
	if s.guard.holding(opSave, opMigrate) {
		s.log.Debug().Str("path", path).Msg("write in progress, reload skipped")
		return
	}
	raw, _, err := s.store.Sink().Get(ctx, s.store.Key())
	if err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("reload failed")
		return
	}
	s.watchMu.Lock()
	own := s.lastSaved != nil && bytes.Equal(raw, s.lastSaved)
	s.watchMu.Unlock()
	if own {
		return
	}

	sess, err := s.Open(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("reload failed")
		return
	}
	s.log.Info().Str("path", path).Msg("configuration changed on disk")
	s.emitter.Emit(ctx, EventChanged, path)
	if onChange != nil {
		onChange(sess)
	}
}

// Stop tears down the file watcher. Safe to call repeatedly.
func (s *ConfigService) Stop() {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
}
