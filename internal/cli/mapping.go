package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sfetl/internal/etl"
)

func newMappingCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Select source objects and fields to extract",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the mapping registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := e.app.Open(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tOBJECT\tFIELDS")
			for i, m := range sess.Mappings() {
				fmt.Fprintf(w, "%d\t%s\t%s\n", i, m.Object, strings.Join(m.Fields, ", "))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <object> <field>...",
		Short: "Append a mapping",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := e.edit(cmd.Context(), func(sess *etl.Session) error {
				e.warmFields(cmd.Context(), sess, args[0])
				return sess.AddMapping(args[0], args[1:])
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mapped %s: %s\n", args[0], strings.Join(args[1:], ", "))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "replace <index> <object> <field>...",
		Short: "Replace the mapping at a position",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			_, err = e.edit(cmd.Context(), func(sess *etl.Session) error {
				e.warmFields(cmd.Context(), sess, args[1])
				return sess.ReplaceMapping(i, args[1], args[2:])
			})
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove <index>",
		Short: "Remove the mapping at a position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			sess, err := e.edit(cmd.Context(), func(sess *etl.Session) error {
				return sess.RemoveMapping(i)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "load order: %s\n", orNone(sess.FlowSummary()))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "objects",
		Short: "List the source objects known to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := e.app.Open(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "OBJECT\tLABEL")
			for _, o := range sess.Catalog().Objects() {
				fmt.Fprintf(w, "%s\t%s\n", o.Name, o.Label)
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "fields <object>",
		Short: "List the fields of a source object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := e.app.Open(cmd.Context())
			if err != nil {
				return err
			}
			fields, err := sess.Fields(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FIELD\tLABEL")
			for _, f := range fields {
				fmt.Fprintf(w, "%s\t%s\n", f.Name, f.Label)
			}
			return w.Flush()
		},
	})

	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// warmFields loads the field list of object so that AddMapping and
// ReplaceMapping can reject unknown field names. When the list cannot be
// fetched the names go unchecked, which is logged.
func (e *env) warmFields(ctx context.Context, sess *etl.Session, object string) {
	if _, err := sess.Fields(ctx, object); err != nil {
		e.log.Warn().Err(err).Str("object", object).Msg("field list unavailable, field names not checked")
	}
}
