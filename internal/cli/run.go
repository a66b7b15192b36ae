package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sfetl/internal/etl"
)

func newRunCmd(e *env) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dry-run the load plan and print the statements it would execute",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			sess, err := e.app.Open(ctx)
			if err != nil {
				return err
			}
			report, err := e.app.Service.Run(ctx, sess, e.app.Engine().Loader)
			if report != nil && format != "" {
				if perr := printAs(cmd.OutOrStdout(), format, report); perr != nil {
					return perr
				}
				return err
			}
			if report != nil {
				printReport(cmd, report)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "", "json or yaml instead of text")
	return cmd
}

func printReport(cmd *cobra.Command, report *etl.LoadReport) {
	out := cmd.OutOrStdout()
	for i, st := range report.Steps {
		fmt.Fprintf(out, "-- %d. %s → %s (%s, %d rows read)\n", i+1, st.Object, st.TargetTable, st.Strategy, st.RowsRead)
		for _, stmt := range st.Statements {
			fmt.Fprintln(out, stmt+";")
		}
		if st.Error != "" {
			fmt.Fprintf(out, "-- error: %s\n", st.Error)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "-- plan %s: %s in %s\n", report.PlanID, report.Status, report.Duration)
}

func newPreviewCmd(e *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "preview <object> [field]...",
		Short: "Show sample source rows (mapped fields when none are given)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			object, fields := args[0], args[1:]
			if len(fields) == 0 {
				sess, err := e.app.Open(ctx)
				if err != nil {
					return err
				}
				fields = sess.Mappings().FieldsOf(object)
			}
			rows, err := e.app.Engine().Preview(ctx, object, fields, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join(fields, "\t"))
			for _, r := range rows {
				cells := make([]string, len(fields))
				for i, f := range fields {
					if v := r.Data[f]; v != nil {
						cells[i] = fmt.Sprint(v)
					}
				}
				fmt.Fprintln(w, strings.Join(cells, "\t"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", etl.DefaultPreviewRows, fmt.Sprintf("rows to show (max %d)", etl.MaxPreviewRows))
	return cmd
}
