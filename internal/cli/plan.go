package cli

import (
	"github.com/spf13/cobra"
)

func newPlanCmd(e *env) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the executable load plan",
		Long:  "Print the load plan a loader would execute. Fails while any load step is invalid.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := e.app.Open(cmd.Context())
			if err != nil {
				return err
			}
			plan, err := sess.Plan()
			if err != nil {
				return err
			}
			return printAs(cmd.OutOrStdout(), format, plan)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "json", "json or yaml")
	return cmd
}
