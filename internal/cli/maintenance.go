package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sfetl/internal/etl"
	"sfetl/internal/storage"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [file]",
		Short: "Rewrite a legacy configuration into the current shape",
		Long: `Without an argument the stored document is rewritten in place. With a
file argument the migrated document is printed and the file is left alone.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				raw, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				migrated, warnings, err := etl.Migrate(raw)
				if err != nil {
					return err
				}
				for _, w := range warnings {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", w.Path, w.Msg)
				}
				_, err = out.Write(append(migrated, '\n'))
				return err
			}

			changed, warnings, err := e.app.Service.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintln(out, "already current")
				return nil
			}
			fmt.Fprintf(out, "migrated (%d warnings)\n", len(warnings))
			return nil
		},
	}
}

func newLintCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "lint [file]",
		Short: "Check a configuration document against the document schema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var problems []string
			if len(args) == 1 {
				raw, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				if problems, err = storage.Lint(raw); err != nil {
					return err
				}
			} else {
				var err error
				if problems, err = e.app.Service.Lint(cmd.Context()); err != nil {
					return err
				}
			}
			for _, p := range problems {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			if len(problems) > 0 {
				return fmt.Errorf("%d schema problems", len(problems))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func newHistoryCmd(e *env) *cobra.Command {
	var (
		runs  bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved revisions, or recorded load runs with --runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if runs {
				logs, err := e.app.Service.Runs(ctx, limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "STARTED\tSTATUS\tSTEPS\tROWS\tPLAN\tERROR")
				for _, l := range logs {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
						l.StartedAt.Local().Format(time.DateTime), l.Status, l.Steps, l.RowsRead, l.PlanID, l.Error)
				}
				return w.Flush()
			}

			revs, err := e.app.Service.History(ctx, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "SAVED\tID\tBYTES")
			for _, r := range revs {
				fmt.Fprintf(w, "%s\t%s\t%d\n", r.CreatedAt.Local().Format(time.DateTime), r.ID, r.Size)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&runs, "runs", false, "list load runs instead of revisions")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "entries to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print the document as it was saved in one revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := e.app.Service.Revision(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if _, err := out.Write(data); err != nil {
				return err
			}
			if len(data) > 0 && data[len(data)-1] != '\n' {
				fmt.Fprintln(out)
			}
			return nil
		},
	})
	return cmd
}

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the source types --fixture can open and their settings",
		Args:  cobra.NoArgs,
		// Needs neither settings nor a store.
		PersistentPreRunE:  func(*cobra.Command, []string) error { return nil },
		PersistentPostRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tSETTING\tREQUIRED\tDEFAULT\tDESCRIPTION")
			for _, spec := range etl.ListSources() {
				fmt.Fprintf(w, "%s\t\t\t\t%s\n", spec.Type, spec.Label)
				for _, f := range spec.ConfigFields {
					req := "no"
					if f.Required {
						req = "yes"
					}
					fmt.Fprintf(w, "\t%s\t%s\t%s\t%s\n", f.Key, req, f.Default, f.Help)
				}
			}
			return w.Flush()
		},
	}
}

func newStatusCmd(e *env) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize the stored document and the store holding it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := e.app.Status(cmd.Context())
			if err != nil {
				return err
			}
			if format != "" {
				return printAs(cmd.OutOrStdout(), format, st)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "store:\t%s\n", st.Store)
			fmt.Fprintf(w, "key:\t%s\n", st.Key)
			fmt.Fprintf(w, "stored:\t%t\n", st.Stored)
			fmt.Fprintf(w, "catalog degraded:\t%t\n", st.Degraded)
			fmt.Fprintf(w, "mappings:\t%d\n", st.Mappings)
			fmt.Fprintf(w, "load order:\t%s\n", orNone(st.Flow))
			fmt.Fprintf(w, "stale references:\t%d\n", st.Stale)
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "", "json or yaml instead of text")
	return cmd
}

func newWatchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Revalidate the document whenever its file changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			err := e.app.Service.Watch(ctx, func(sess *etl.Session) {
				fmt.Fprintf(out, "%s  load order: %s\n", time.Now().Format(time.TimeOnly), orNone(sess.FlowSummary()))
				for _, d := range sess.Diagnostics() {
					fmt.Fprintf(out, "  stale: %s\n", d)
				}
			})
			if err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}
}

func newMCPCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the configuration tools over MCP on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.app.ServeMCP(cmd.Context())
		},
	}
}
