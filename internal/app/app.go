package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"sfetl/internal/config"
	"sfetl/internal/etl"
	"sfetl/internal/etl/sources"
	"sfetl/internal/service"
	"sfetl/internal/storage"
)

// App wires settings, storage, catalog metadata and the config service
// together. The command line and the MCP server both work through it.
type App struct {
	Config  *config.Config
	Log     zerolog.Logger
	Service *service.ConfigService

	// Source answers catalog and preview queries; nil when no fixture is
	// configured.
	Source etl.Source

	db      *storage.DB
	emitter service.EventEmitter
}

// New opens the configured sink and source. Close releases them.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, emitter service.EventEmitter) (*App, error) {
	a := &App{Config: cfg, Log: log, emitter: emitter}

	sink, err := a.openSink(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.Catalog.Fixture != "" {
		src, err := openSource(cfg.Catalog.Fixture)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Source = src
	}

	store := storage.NewConfigStore(sink, cfg.Store.Key)
	a.Service = service.NewConfigService(store, a.provider, emitter, log)
	return a, nil
}

func (a *App) openSink(ctx context.Context) (storage.Sink, error) {
	st := a.Config.Store
	switch st.Backend {
	case config.BackendFile:
		return storage.NewFileSink(st.Path), nil
	case config.BackendSQLite:
		db, err := storage.OpenDB(ctx, storage.DialectSQLite, st.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.db = db
		return storage.NewSQLSink(db), nil
	case config.BackendMySQL, config.BackendPostgres:
		db, err := storage.OpenDB(ctx, st.Backend, st.DSN)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.db = db
		return storage.NewSQLSink(db), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", st.Backend)
	}
}

// openSource opens a fixture file, or a directory of per-object CSV files.
func openSource(path string) (etl.Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog fixture: %w", err)
	}
	if info.IsDir() {
		return etl.OpenSource(sources.TypeCSVDir, etl.SourceConfig{"dirPath": path})
	}
	return etl.OpenSource(sources.TypeFixture, etl.SourceConfig{"filePath": path})
}

// provider builds the catalog provider for doc: the configured source for
// objects and fields; the target database, the fixture's tables or the
// default staging schema for tables.
func (a *App) provider(doc *etl.Document) etl.CatalogProvider {
	p := etl.CombinedProvider{Source: a.Source, Target: defaultTables{}}
	if a.Config.Catalog.IntrospectTarget {
		p.Target = &TargetCatalog{DB: doc.TargetDB}
	} else if tc, ok := a.Source.(etl.TargetCatalog); ok {
		p.Target = tc
	}
	return p
}

// Open loads the stored document into an editing session.
func (a *App) Open(ctx context.Context) (*etl.Session, error) {
	return a.Service.Open(ctx)
}

// Engine returns a preview/run engine over the configured source.
func (a *App) Engine() *etl.Engine {
	e := &etl.Engine{Loader: &etl.DryRunLoader{}}
	if a.Source != nil {
		e.Source = a.Source
		e.Loader = &etl.DryRunLoader{Source: a.Source}
	}
	return e
}

// shutdownGrace bounds how long Close waits for running saves and loads.
const shutdownGrace = 5 * time.Second

// Close waits for in-flight saves and loads, then stops the watcher and
// closes the store database, if any.
func (a *App) Close() error {
	var errs []error
	if a.Service != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		if err := a.Service.WaitIdle(ctx); err != nil {
			a.Log.Warn().Err(err).Msg("closing with operations still running")
		}
		cancel()
		a.Service.Stop()
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

// Status summarizes where the document lives and what it holds.
type Status struct {
	Store    string `json:"store"`
	Key      string `json:"key"`
	Stored   bool   `json:"stored"`
	Degraded bool   `json:"catalog_degraded"`
	Mappings int    `json:"mappings"`
	Flow     string `json:"load_order"`
	Stale    int    `json:"stale_references"`
}

// Status opens the document and reports on it without changing anything.
func (a *App) Status(ctx context.Context) (*Status, error) {
	st := &Status{Store: a.Config.Store.Backend + " " + a.Config.Store.Path, Key: a.Service.Store().Key()}
	if a.db != nil {
		st.Store = a.db.Dialect()
		if a.db.Dialect() == storage.DialectSQLite {
			st.Store += " " + a.Config.Store.Path
		}
	}
	_, found, err := a.Service.Store().Sink().Get(ctx, st.Key)
	if err != nil {
		return nil, &etl.PersistenceError{Op: "load", Err: err}
	}
	st.Stored = found

	sess, err := a.Open(ctx)
	if err != nil {
		return nil, err
	}
	st.Degraded = sess.Catalog().Degraded()
	st.Mappings = len(sess.Mappings())
	st.Flow = sess.FlowSummary()
	st.Stale = len(sess.Diagnostics())
	return st, nil
}

type defaultTables struct{}

func (defaultTables) ListTargetTables(context.Context) ([]etl.TableInfo, error) {
	return etl.DefaultTargetTables(), nil
}
