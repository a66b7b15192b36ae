package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sfetl/internal/etl"
	"sfetl/internal/schedule"
)

func newScheduleCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Show or change when the load job runs",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Describe the current schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := e.app.Open(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), schedule.Describe(sess.Schedule()))
			return nil
		},
	})

	var (
		frequency, runTime, weekday, cronExpr string
		active                                bool
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Replace the schedule",
		Example: `  sfetl schedule set --frequency Daily --time 02:30:00 --active
  sfetl schedule set --frequency Weekly --weekday Friday --time 18:00:00
  sfetl schedule set --frequency "Cron Expression" --cron "0 */4 * * *" --active`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc := etl.ScheduleConfig{
				Frequency: etl.Frequency(frequency),
				RunTime:   etl.DefaultRunTime,
				Weekday:   weekday,
				CronExpr:  cronExpr,
				IsActive:  active,
			}
			if runTime != "" {
				t, err := etl.ParseClock(runTime)
				if err != nil {
					return err
				}
				sc.RunTime = t
			}
			sess, err := e.edit(cmd.Context(), func(sess *etl.Session) error {
				return e.app.Service.SetSchedule(sess, sc)
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), schedule.Describe(sess.Schedule()))
			return nil
		},
	}
	f := set.Flags()
	f.StringVar(&frequency, "frequency", string(etl.FrequencyDaily), "Daily, Hourly, Weekly or \"Cron Expression\"")
	f.StringVar(&runTime, "time", "", "run time HH:MM:SS (default 09:00:00)")
	f.StringVar(&weekday, "weekday", "", "Weekly: day of the week (default Monday)")
	f.StringVar(&cronExpr, "cron", "", "five-field cron expression")
	f.BoolVar(&active, "active", false, "enable the schedule")
	cmd.AddCommand(set)

	var count int
	next := &cobra.Command{
		Use:   "next",
		Short: "List the next run times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := e.app.Open(cmd.Context())
			if err != nil {
				return err
			}
			times, err := schedule.Next(sess.Schedule(), time.Now(), count)
			if err != nil {
				return err
			}
			for _, t := range times {
				fmt.Fprintln(cmd.OutOrStdout(), t.Format(time.RFC1123))
			}
			return nil
		},
	}
	next.Flags().IntVarP(&count, "count", "n", 5, "number of run times")
	cmd.AddCommand(next)

	return cmd
}
