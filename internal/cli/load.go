package cli

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sfetl/internal/etl"
)

func newLoadCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Order load steps and choose their strategies",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "order",
		Short: "Show the load steps in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := e.app.Open(cmd.Context())
			if err != nil {
				return err
			}
			printSteps(cmd, sess)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "move <index> up|down",
		Short: "Move a load step one position",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			sess, err := e.edit(cmd.Context(), func(sess *etl.Session) error {
				switch strings.ToLower(args[1]) {
				case "up":
					return sess.MoveUp(i)
				case "down":
					return sess.MoveDown(i)
				default:
					return &etl.ValidationError{Field: "direction", Msg: fmt.Sprintf("must be up or down, got %q", args[1])}
				}
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), orNone(sess.FlowSummary()))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "strategy <object> insert|bulk_load|upsert|overwrite",
		Short: "Set the load strategy of a mapped object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var st etl.LoadStep
			_, err := e.edit(cmd.Context(), func(sess *etl.Session) error {
				var err error
				st, err = sess.SetStrategy(args[0], etl.LoadStrategy(args[1]))
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", st.Object, st.Strategy)
			for _, p := range st.Problems {
				fmt.Fprintf(cmd.OutOrStdout(), "  invalid: %s\n", p)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "key <object> <column>",
		Short: "Choose the upsert match key of an object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := e.edit(cmd.Context(), func(sess *etl.Session) error {
				return sess.SetMatchKey(args[0], args[1])
			})
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "batch <size>",
		Short: fmt.Sprintf("Set the batch size (%d-%d)", etl.MinBatchSize, etl.MaxBatchSize),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("size: %w", err)
			}
			_, err = e.edit(cmd.Context(), func(sess *etl.Session) error {
				return sess.SetBatchSize(n)
			})
			return err
		},
	})

	return cmd
}

func printSteps(cmd *cobra.Command, sess *etl.Session) {
	out := cmd.OutOrStdout()
	steps := sess.Steps()
	if len(steps) == 0 {
		fmt.Fprintln(out, "nothing to load: map fields and assign a target table first")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tOBJECT\tTABLE\tSTRATEGY\tMATCH KEY\tCOLUMNS\tSTATUS")
	for i, st := range steps {
		key := "-"
		if st.MatchKey != nil {
			key = *st.MatchKey
		}
		status := "ok"
		if !st.Valid {
			status = "invalid: " + strings.Join(st.Problems, "; ")
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%d\t%s\n", i, st.Object, st.TargetTable, st.Strategy, key, st.Columns, status)
	}
	w.Flush()
	fmt.Fprintf(out, "\nflow: %s\nbatch size: %d\n", sess.FlowSummary(), sess.BatchSize())
}
