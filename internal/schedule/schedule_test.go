package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sfetl/internal/etl"
)

func TestSpec(t *testing.T) {
	rt := etl.ClockTime{Hour: 9, Minute: 30}
	tests := []struct {
		name string
		sc   etl.ScheduleConfig
		want string
	}{
		{"daily", etl.ScheduleConfig{Frequency: etl.FrequencyDaily, RunTime: rt}, "0 30 9 * * *"},
		{"hourly", etl.ScheduleConfig{Frequency: etl.FrequencyHourly, RunTime: rt}, "0 30 * * * *"},
		{"weekly default monday", etl.ScheduleConfig{Frequency: etl.FrequencyWeekly, RunTime: rt}, "0 30 9 * * 1"},
		{"weekly friday", etl.ScheduleConfig{Frequency: etl.FrequencyWeekly, RunTime: rt, Weekday: "Friday"}, "0 30 9 * * 5"},
		{"cron", etl.ScheduleConfig{Frequency: etl.FrequencyCron, CronExpr: " */15 * * * * "}, "*/15 * * * *"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Spec(tt.sc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNext_Daily(t *testing.T) {
	sc := etl.ScheduleConfig{Frequency: etl.FrequencyDaily, RunTime: etl.ClockTime{Hour: 9}}
	from := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	got, err := Next(sc, from, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC), got[0])
	assert.Equal(t, time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC), got[1])
}

func TestNext_Weekly(t *testing.T) {
	sc := etl.ScheduleConfig{Frequency: etl.FrequencyWeekly, RunTime: etl.ClockTime{Hour: 6}, Weekday: "wed"}
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) // a Friday

	got, err := Next(sc, from, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, time.Wednesday, got[0].Weekday())
	assert.Equal(t, time.Date(2024, 3, 6, 6, 0, 0, 0, time.UTC), got[0])
}

func TestValidate_Invalid(t *testing.T) {
	cases := []etl.ScheduleConfig{
		{Frequency: etl.FrequencyCron, CronExpr: "not a cron"},
		{Frequency: etl.FrequencyCron},
		{Frequency: "Monthly"},
		{Frequency: etl.FrequencyWeekly, Weekday: "Someday"},
	}
	for _, sc := range cases {
		err := Validate(sc)
		require.Error(t, err, "%+v", sc)
		assert.True(t, etl.IsValidation(err), "%+v: %v", sc, err)
	}
}

func TestDescribe(t *testing.T) {
	sc := etl.ScheduleConfig{Frequency: etl.FrequencyWeekly, RunTime: etl.ClockTime{Hour: 9}, IsActive: true}
	assert.Equal(t, "Weekly on Monday at 09:00:00 (active)", Describe(sc))
}
