// Package cli implements the sfetl command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"sfetl/internal/app"
	"sfetl/internal/config"
	"sfetl/internal/etl"
	"sfetl/internal/logging"
	"sfetl/internal/service"
)

// env is the state shared by all commands of one invocation.
type env struct {
	cfgFile string
	v       *viper.Viper
	log     zerolog.Logger
	app     *app.App
}

// flagKeys binds persistent flags to settings keys.
var flagKeys = map[string]string{
	"store.backend":             "store-backend",
	"store.path":                "store-path",
	"store.dsn":                 "store-dsn",
	"store.key":                 "key",
	"catalog.fixture":           "fixture",
	"catalog.introspect_target": "introspect-target",
	"log.level":                 "log-level",
	"log.format":                "log-format",
}

// NewRootCmd builds the sfetl command tree.
func NewRootCmd() *cobra.Command {
	root, _ := newRoot()
	return root
}

func newRoot() (*cobra.Command, *env) {
	e := &env{}
	root := &cobra.Command{
		Use:   "sfetl",
		Short: "sfetl edits and validates Salesforce-to-SQL load configurations",
		Long: `A command-line editor for ETL load configurations: which source objects
and fields are extracted, how each field is transformed and bound to a target
column, and in which order and with which strategy objects are loaded.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  e.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error { return e.close() },
	}

	pf := root.PersistentFlags()
	pf.StringVar(&e.cfgFile, "config", "", "settings file (YAML)")
	pf.String("store-backend", config.BackendFile, "where the configuration document lives: file, sqlite, mysql or postgres")
	pf.String("store-path", "config.json", "document file, or database file for the sqlite backend")
	pf.String("store-dsn", "", "connection string for the mysql and postgres backends")
	pf.String("key", "default", "document key within the store")
	pf.String("fixture", "", "source metadata: a YAML/JSON fixture file or a directory of <Object>.csv files")
	pf.Bool("introspect-target", false, "list target tables from the configured target database")
	pf.String("log-level", "info", "debug, info, warn or error")
	pf.String("log-format", logging.FormatText, "text or json")

	root.AddCommand(
		newMappingCmd(e),
		newTransformCmd(e),
		newLoadCmd(e),
		newPlanCmd(e),
		newRunCmd(e),
		newPreviewCmd(e),
		newScheduleCmd(e),
		newTargetCmd(e),
		newMigrateCmd(e),
		newLintCmd(e),
		newHistoryCmd(e),
		newWatchCmd(e),
		newMCPCmd(e),
		newSourcesCmd(),
		newStatusCmd(e),
	)
	return root, e
}

// Execute runs the root command until it finishes or the process is
// interrupted, and returns the exit code.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root, e := newRoot()
	// PersistentPostRunE is skipped when a command fails.
	defer e.close()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func (e *env) setup(cmd *cobra.Command, _ []string) error {
	v, err := config.NewViper(e.cfgFile)
	if err != nil {
		return err
	}
	if err := bindFlags(v, cmd.Root().PersistentFlags()); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	a, err := app.New(cmd.Context(), cfg, log, service.LogEmitter{Log: log})
	if err != nil {
		return err
	}
	e.v, e.log, e.app = v, log, a
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for key, name := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func (e *env) close() error {
	if e.app == nil {
		return nil
	}
	err := e.app.Close()
	e.app = nil
	return err
}

// edit opens the stored document, applies fn and saves the result. Nothing
// is written when fn fails.
func (e *env) edit(ctx context.Context, fn func(*etl.Session) error) (*etl.Session, error) {
	sess, err := e.app.Open(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	if err := e.app.Service.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ── Output ─────────────────────────────────────────────────

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func printAs(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		return printJSON(w, v)
	case "yaml":
		return printYAML(w, v)
	default:
		return fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
