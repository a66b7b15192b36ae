// Package schedule turns the persisted schedule block into cron
// specifications and upcoming run times. Firing runs is left to an
// external daemon.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"sfetl/internal/etl"
)

// secondsParser parses the six-field specs generated from fixed frequencies.
var secondsParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Spec returns the cron specification equivalent to sc. Fixed frequencies
// produce a six-field spec with seconds; FrequencyCron returns the user's
// expression unchanged.
func Spec(sc etl.ScheduleConfig) (string, error) {
	rt := sc.RunTime
	switch sc.Frequency {
	case etl.FrequencyDaily:
		return fmt.Sprintf("%d %d %d * * *", rt.Second, rt.Minute, rt.Hour), nil
	case etl.FrequencyHourly:
		return fmt.Sprintf("%d %d * * * *", rt.Second, rt.Minute), nil
	case etl.FrequencyWeekly:
		day := time.Monday
		if sc.Weekday != "" {
			d, ok := etl.ParseWeekday(sc.Weekday)
			if !ok {
				return "", &etl.ValidationError{Field: "weekday", Msg: fmt.Sprintf("unknown weekday %q", sc.Weekday)}
			}
			day = d
		}
		return fmt.Sprintf("%d %d %d * * %d", rt.Second, rt.Minute, rt.Hour, int(day)), nil
	case etl.FrequencyCron:
		expr := strings.TrimSpace(sc.CronExpr)
		if expr == "" {
			return "", &etl.ValidationError{Field: "cron_expr", Msg: "required for " + string(etl.FrequencyCron)}
		}
		return expr, nil
	default:
		return "", &etl.ValidationError{Field: "frequency", Msg: fmt.Sprintf("unknown frequency %q", sc.Frequency)}
	}
}

// Parse compiles sc into a cron schedule.
func Parse(sc etl.ScheduleConfig) (cron.Schedule, error) {
	spec, err := Spec(sc)
	if err != nil {
		return nil, err
	}
	if sc.Frequency == etl.FrequencyCron {
		s, err := cron.ParseStandard(spec)
		if err != nil {
			return nil, &etl.ValidationError{Field: "cron_expr", Msg: err.Error()}
		}
		return s, nil
	}
	return secondsParser.Parse(spec)
}

// Validate reports whether sc describes a runnable schedule.
func Validate(sc etl.ScheduleConfig) error {
	_, err := Parse(sc)
	return err
}

// Next returns the next n activation times strictly after from, in from's
// location.
func Next(sc etl.ScheduleConfig, from time.Time, n int) ([]time.Time, error) {
	s, err := Parse(sc)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, n)
	t := from
	for i := 0; i < n; i++ {
		t = s.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out, nil
}

// Describe renders sc for humans, e.g. "Weekly on Monday at 09:00:00".
func Describe(sc etl.ScheduleConfig) string {
	state := "inactive"
	if sc.IsActive {
		state = "active"
	}
	var what string
	switch sc.Frequency {
	case etl.FrequencyDaily:
		what = "Daily at " + sc.RunTime.String()
	case etl.FrequencyHourly:
		what = fmt.Sprintf("Hourly at minute %02d:%02d", sc.RunTime.Minute, sc.RunTime.Second)
	case etl.FrequencyWeekly:
		day := time.Monday
		if d, ok := etl.ParseWeekday(sc.Weekday); ok {
			day = d
		}
		what = fmt.Sprintf("Weekly on %s at %s", day, sc.RunTime)
	case etl.FrequencyCron:
		what = "Cron " + sc.CronExpr
	default:
		what = string(sc.Frequency)
	}
	return what + " (" + state + ")"
}
