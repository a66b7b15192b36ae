package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sfetl/internal/app"
	"sfetl/internal/etl"
)

func newTargetCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Configure and inspect the target database",
	}

	var db etl.TargetDB
	set := &cobra.Command{
		Use:   "set",
		Short: "Replace the target connection settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := e.edit(cmd.Context(), func(sess *etl.Session) error {
				return sess.SetTargetDB(db)
			})
			return err
		},
	}
	f := set.Flags()
	f.StringVar(&db.Driver, "driver", "mysql", "mysql, postgres or sqlite")
	f.StringVar(&db.Host, "host", "", "host name (file path for sqlite)")
	f.IntVar(&db.Port, "port", 3306, "port")
	f.StringVar(&db.User, "user", "", "user name")
	f.StringVar(&db.Password, "password", "", "password")
	f.StringVar(&db.Database, "database", "", "database name")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Connect to the target database and ping it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := e.app.Open(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.TestTarget(cmd.Context(), sess.TargetDB()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "connection ok")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "tables",
		Short: "List the target database's tables and columns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := e.app.Open(cmd.Context())
			if err != nil {
				return err
			}
			schema, err := app.IntrospectTarget(cmd.Context(), sess.TargetDB())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tCOLUMNS")
			for _, t := range schema.Tables {
				fmt.Fprintf(w, "%s\t%s\n", t.Name, strings.Join(t.ColumnNames(), ", "))
			}
			return w.Flush()
		},
	})

	return cmd
}
