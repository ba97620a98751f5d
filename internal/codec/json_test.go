package codec

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvscheduler/quartzredis/internal/types"
)

func TestJSON_JobRoundTrip(t *testing.T) {
	c := NewJSON()
	job := types.JobDetail{
		Key:              types.JobKey{Name: "send-digest", Group: "reports"},
		JobClass:         "digest.Send",
		Description:      "sends the nightly digest",
		Durable:          true,
		RequestsRecovery: true,
	}

	raw, err := c.EncodeJob(job)
	require.NoError(t, err)

	got, err := c.DecodeJob(raw)
	require.NoError(t, err)
	assert.Equal(t, job, got)
}

func TestJSON_JobRoundTrip_PreservesConcurrencyFlags(t *testing.T) {
	c := NewJSON()
	job := types.JobDetail{
		Key:                          types.JobKey{Name: "exclusive", Group: "ops"},
		DisallowConcurrentExecution:  true,
		PersistJobDataAfterExecution: true,
	}

	raw, err := c.EncodeJob(job)
	require.NoError(t, err)

	got, err := c.DecodeJob(raw)
	require.NoError(t, err)
	assert.True(t, got.DisallowsConcurrentExecution())
	assert.True(t, got.PersistsDataAfterExecution())
}

func TestJSON_DecodeJob_Malformed(t *testing.T) {
	c := NewJSON()
	_, err := c.DecodeJob([]byte("not json"))
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "job", decodeErr.Kind)
}

func TestJSON_CronTriggerRoundTrip(t *testing.T) {
	c := NewJSON()
	tr := types.Trigger{
		Key:                types.TriggerKey{Name: "nightly", Group: "reports"},
		JobKey:             types.JobKey{Name: "send-digest", Group: "reports"},
		Priority:           types.DefaultPriority,
		MisfireInstruction: types.MisfireInstructionFireNow,
		StartTime:          time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Kind:               types.KindCron,
		Cron:               &types.CronSchedule{Expression: "0 0 * * *", Location: time.UTC},
	}

	raw, err := c.EncodeTrigger(tr)
	require.NoError(t, err)

	got, err := c.DecodeTrigger(raw)
	require.NoError(t, err)
	assert.Equal(t, tr.Key, got.Key)
	assert.Equal(t, tr.Kind, got.Kind)
	require.NotNil(t, got.Cron)
	assert.Equal(t, tr.Cron.Expression, got.Cron.Expression)
}

func TestJSON_DailyTimeIntervalTriggerRoundTrip(t *testing.T) {
	c := NewJSON()
	tr := types.Trigger{
		Key:       types.TriggerKey{Name: "business-hours", Group: "ops"},
		JobKey:    types.JobKey{Name: "poll", Group: "ops"},
		StartTime: time.Now(),
		Kind:      types.KindDailyTimeInterval,
		DailyTimeInterval: &types.DailyTimeIntervalSchedule{
			Interval:       15 * time.Minute,
			StartTimeOfDay: 8 * time.Hour,
			EndTimeOfDay:   18 * time.Hour,
			DaysOfWeek:     []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		},
	}

	raw, err := c.EncodeTrigger(tr)
	require.NoError(t, err)

	got, err := c.DecodeTrigger(raw)
	require.NoError(t, err)
	require.NotNil(t, got.DailyTimeInterval)
	assert.Equal(t, tr.DailyTimeInterval.DaysOfWeek, got.DailyTimeInterval.DaysOfWeek)
	assert.Equal(t, tr.DailyTimeInterval.Interval, got.DailyTimeInterval.Interval)
}

func TestJSON_CalendarRoundTrip(t *testing.T) {
	c := NewJSON()
	cal := types.Calendar{
		Name:             "business-days",
		ExcludedWeekdays: []time.Weekday{time.Saturday, time.Sunday},
		ExcludedDates:    []time.Time{time.Date(2026, 12, 25, 0, 0, 0, 0, time.UTC)},
		Location:         time.UTC,
	}

	raw, err := c.EncodeCalendar(cal)
	require.NoError(t, err)

	got, err := c.DecodeCalendar(raw)
	require.NoError(t, err)
	assert.Equal(t, cal.Name, got.Name)
	assert.Equal(t, cal.ExcludedWeekdays, got.ExcludedWeekdays)
}
