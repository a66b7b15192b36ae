package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sfetl/internal/etl"
)

func newTransformCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Bind mapped fields to target columns and set their transforms",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show <object>",
		Short: "Show an object's target table, bindings and transforms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := e.app.Open(cmd.Context())
			if err != nil {
				return err
			}
			object := args[0]
			t := sess.Transformation(object)
			out := cmd.OutOrStdout()
			table := "(none)"
			if t != nil && t.TargetTable != "" {
				table = t.TargetTable
			}
			fmt.Fprintf(out, "%s → %s\n", object, table)

			st := sess.State()
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "FIELD\tSTATUS\tCOLUMN\tTRANSFORM")
			for _, f := range st.Mappings.FieldsOf(object) {
				column := "-"
				if t != nil {
					if c := t.FieldMap[f]; c != nil {
						column = *c
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f, sess.Status(object, f), column, st.Transformations.Transform(object, f))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "table <object> <table>",
		Short: "Choose the target table of a mapped object",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := e.edit(cmd.Context(), func(sess *etl.Session) error {
				return sess.SetTargetTable(args[0], args[1])
			})
			return err
		},
	})

	var skip bool
	bind := &cobra.Command{
		Use:   "bind <object> <field> [column]",
		Short: "Bind a mapped field to a target column (or --skip it)",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var column *string
			switch {
			case skip && len(args) == 3:
				return fmt.Errorf("--skip takes no column")
			case !skip && len(args) == 2:
				return fmt.Errorf("column required (or --skip)")
			case len(args) == 3:
				column = &args[2]
			}
			sess, err := e.edit(cmd.Context(), func(sess *etl.Session) error {
				return sess.BindField(args[0], args[1], column)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "load order: %s\n", orNone(sess.FlowSummary()))
			return nil
		},
	}
	bind.Flags().BoolVar(&skip, "skip", false, "leave the field unbound")
	cmd.AddCommand(bind)

	cmd.AddCommand(newTransformSetCmd(e))

	cmd.AddCommand(&cobra.Command{
		Use:   "diagnostics",
		Short: "List stale rules left behind by mapping or table changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := e.app.Open(cmd.Context())
			if err != nil {
				return err
			}
			diags := sess.Diagnostics()
			if len(diags) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no stale rules")
				return nil
			}
			for _, d := range diags {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	})

	return cmd
}

func newTransformSetCmd(e *env) *cobra.Command {
	var cfg etl.TransformConfig
	var kind, nullStrategy, sourceFormat, targetFormat string
	cmd := &cobra.Command{
		Use:   "set <object> <field>",
		Short: "Set the transform of a mapped field",
		Example: `  sfetl transform set Opportunity Amount --type to_number --decimals 2 --null-strategy zero
  sfetl transform set Contact Birthdate --type to_date --source-format ISO8601 --target-format YYYY-MM-DD
  sfetl transform set Lead IsConverted --type to_boolean --true Y,yes --false N,no
  sfetl transform set Case Priority --type enum_mapping --enum-map '{"High":"1","Low":"3"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Type = etl.TransformKind(kind)
			cfg.NullStrategy = etl.NullStrategy(nullStrategy)
			cfg.SourceFormat = etl.DateFormat(sourceFormat)
			cfg.TargetFormat = etl.DateFormat(targetFormat)
			_, err := e.edit(cmd.Context(), func(sess *etl.Session) error {
				return sess.SetTransform(args[0], args[1], cfg)
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s.%s: %s\n", args[0], args[1], cfg)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&kind, "type", string(etl.TransformNone), "none, to_number, to_date, to_datetime, to_boolean or enum_mapping")
	f.IntVar(&cfg.DecimalPlaces, "decimals", 0, "to_number: decimal places (0-10)")
	f.StringVar(&nullStrategy, "null-strategy", "", "to_number: zero, keep_null or default")
	f.StringVar(&sourceFormat, "source-format", "", "to_date/to_datetime: source layout")
	f.StringVar(&targetFormat, "target-format", "", "to_date/to_datetime: target layout")
	f.BoolVar(&cfg.TimezoneConvert, "tz-convert", false, "to_date/to_datetime: convert between zones")
	f.StringVar(&cfg.SourceTZ, "source-tz", "", "IANA source zone")
	f.StringVar(&cfg.TargetTZ, "target-tz", "", "IANA target zone")
	f.StringSliceVar(&cfg.TrueValues, "true", nil, "to_boolean: values read as true")
	f.StringSliceVar(&cfg.FalseValues, "false", nil, "to_boolean: values read as false")
	f.StringVar(&cfg.EnumMap, "enum-map", "", "enum_mapping: JSON object of source → target values")
	return cmd
}
