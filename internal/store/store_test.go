package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvscheduler/quartzredis/internal/codec"
	"github.com/kvscheduler/quartzredis/internal/rkv/fake"
	"github.com/kvscheduler/quartzredis/internal/schema"
	"github.com/kvscheduler/quartzredis/internal/types"
	"github.com/kvscheduler/quartzredis/logger"
)

func newStorage(t *testing.T) *Storage {
	t.Helper()
	sch := schema.New("quartzredis", ":")
	return New(fake.New(), sch, codec.NewJSON(), nil, Config{
		InstanceID:         "test-instance",
		MisfireThreshold:   time.Hour,
		TriggerLockTimeout: time.Minute,
	}, logger.New("store-test"))
}

func simpleTrigger(jobKey types.JobKey, name string, start time.Time) types.Trigger {
	return types.Trigger{
		Key:       types.TriggerKey{Name: name, Group: types.DefaultGroup},
		JobKey:    jobKey,
		Priority:  types.DefaultPriority,
		StartTime: start,
		Kind:      types.KindSimple,
		Simple:    &types.SimpleSchedule{Interval: time.Minute, RepeatCount: types.RepeatForever},
	}
}

func TestStoreJob_RetrieveAndDuplicate(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	job := types.JobDetail{Key: types.JobKey{Name: "report", Group: types.DefaultGroup}, JobClass: "report.Generate"}

	require.NoError(t, s.StoreJob(ctx, job, false))

	got, err := s.RetrieveJob(ctx, job.Key)
	require.NoError(t, err)
	assert.Equal(t, job.JobClass, got.JobClass)

	err = s.StoreJob(ctx, job, false)
	assert.ErrorIs(t, err, ErrObjectAlreadyExists)

	job.Description = "updated"
	require.NoError(t, s.StoreJob(ctx, job, true))
	got, err = s.RetrieveJob(ctx, job.Key)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Description)
}

func TestStoreTrigger_SeedsWaitingState(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	job := types.JobDetail{Key: types.JobKey{Name: "report", Group: types.DefaultGroup}}
	require.NoError(t, s.StoreJob(ctx, job, false))

	tr := simpleTrigger(job.Key, "report-trigger", time.Now().Add(-time.Minute))
	require.NoError(t, s.StoreTrigger(ctx, tr, false))

	state, err := s.GetTriggerState(ctx, tr.Key)
	require.NoError(t, err)
	assert.Equal(t, types.StateWaiting, state)
}

func TestStoreTrigger_UnknownJobRejected(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	tr := simpleTrigger(types.JobKey{Name: "missing", Group: types.DefaultGroup}, "orphan", time.Now())
	err := s.StoreTrigger(ctx, tr, false)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestRemoveJob_CascadesTriggers(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	job := types.JobDetail{Key: types.JobKey{Name: "cleanup", Group: types.DefaultGroup}}
	require.NoError(t, s.StoreJob(ctx, job, false))
	tr := simpleTrigger(job.Key, "cleanup-trigger", time.Now())
	require.NoError(t, s.StoreTrigger(ctx, tr, false))

	removed, err := s.RemoveJob(ctx, job.Key)
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = s.RetrieveTrigger(ctx, tr.Key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestAcquireNextTriggers_OrdersByFireTimeThenPriority(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	job := types.JobDetail{Key: types.JobKey{Name: "batch", Group: types.DefaultGroup}}
	require.NoError(t, s.StoreJob(ctx, job, false))

	now := time.Now()
	later := simpleTrigger(job.Key, "later", now.Add(-time.Minute))
	later.NextFireTime = timePtr(now.Add(-30 * time.Second))
	earlier := simpleTrigger(job.Key, "earlier", now.Add(-time.Minute))
	earlier.NextFireTime = timePtr(now.Add(-time.Minute))
	urgent := simpleTrigger(job.Key, "urgent", now.Add(-time.Minute))
	urgent.NextFireTime = timePtr(now.Add(-30 * time.Second))
	urgent.Priority = types.DefaultPriority + 5

	require.NoError(t, s.StoreTrigger(ctx, later, false))
	require.NoError(t, s.StoreTrigger(ctx, earlier, false))
	require.NoError(t, s.StoreTrigger(ctx, urgent, false))

	acquired, err := s.AcquireNextTriggers(ctx, now, 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, acquired, 3)
	assert.Equal(t, "earlier", acquired[0].Key.Name)
	assert.Equal(t, "urgent", acquired[1].Key.Name)
	assert.Equal(t, "later", acquired[2].Key.Name)

	for _, tr := range acquired {
		state, err := s.GetTriggerState(ctx, tr.Key)
		require.NoError(t, err)
		assert.Equal(t, types.StateAcquired, state)
	}
}

func TestPauseJob_MovesTriggerToPaused(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	job := types.JobDetail{Key: types.JobKey{Name: "billing", Group: types.DefaultGroup}}
	require.NoError(t, s.StoreJob(ctx, job, false))
	tr := simpleTrigger(job.Key, "billing-trigger", time.Now())
	require.NoError(t, s.StoreTrigger(ctx, tr, false))

	require.NoError(t, s.PauseJob(ctx, job.Key))
	state, err := s.GetTriggerState(ctx, tr.Key)
	require.NoError(t, err)
	assert.Equal(t, types.StatePaused, state)

	require.NoError(t, s.ResumeJob(ctx, job.Key))
	state, err = s.GetTriggerState(ctx, tr.Key)
	require.NoError(t, err)
	assert.Equal(t, types.StateWaiting, state)
}

func TestTriggeredJobComplete_DeleteTrigger(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	job := types.JobDetail{Key: types.JobKey{Name: "onetime", Group: types.DefaultGroup}}
	require.NoError(t, s.StoreJob(ctx, job, false))
	tr := simpleTrigger(job.Key, "onetime-trigger", time.Now().Add(-time.Minute))
	require.NoError(t, s.StoreTrigger(ctx, tr, false))

	acquired, err := s.AcquireNextTriggers(ctx, time.Now(), 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, acquired, 1)

	fired, err := s.TriggersFired(ctx, acquired)
	require.NoError(t, err)
	require.Len(t, fired, 1)

	require.NoError(t, s.TriggeredJobComplete(ctx, fired[0].Trigger, fired[0].JobDetail, types.DeleteTrigger))

	_, err = s.RetrieveTrigger(ctx, tr.Key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestRemoveCalendar_RejectsWhenReferenced(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	job := types.JobDetail{Key: types.JobKey{Name: "cal-job", Group: types.DefaultGroup}}
	require.NoError(t, s.StoreJob(ctx, job, false))

	cal := types.Calendar{Name: "business-days", Location: time.UTC}
	require.NoError(t, s.StoreCalendar(ctx, cal, false, false))

	tr := simpleTrigger(job.Key, "cal-trigger", time.Now())
	tr.CalendarName = cal.Name
	require.NoError(t, s.StoreTrigger(ctx, tr, false))

	_, err := s.RemoveCalendar(ctx, cal.Name)
	assert.ErrorIs(t, err, ErrConstraintViolation)
}

func TestDisallowConcurrentExecution_BlocksJobAndSiblings(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	job := types.JobDetail{
		Key:                         types.JobKey{Name: "exclusive", Group: types.DefaultGroup},
		DisallowConcurrentExecution: true,
	}
	require.NoError(t, s.StoreJob(ctx, job, false))

	firing := simpleTrigger(job.Key, "firing-trigger", time.Now().Add(-time.Minute))
	firing.NextFireTime = timePtr(time.Now().Add(-time.Minute))
	sibling := simpleTrigger(job.Key, "sibling-trigger", time.Now().Add(-time.Minute))
	sibling.NextFireTime = timePtr(time.Now().Add(-30 * time.Second))
	require.NoError(t, s.StoreTrigger(ctx, firing, false))
	require.NoError(t, s.StoreTrigger(ctx, sibling, false))

	acquired, err := s.AcquireNextTriggers(ctx, time.Now(), 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, acquired, 1)
	require.Equal(t, "firing-trigger", acquired[0].Key.Name)

	fired, err := s.TriggersFired(ctx, acquired)
	require.NoError(t, err)
	require.Len(t, fired, 1)

	blocked, err := s.kv.SIsMember(ctx, s.schema.BlockedJobs(), s.schema.EncodeJobKey(job.Key))
	require.NoError(t, err)
	assert.True(t, blocked, "blocked_jobs must contain the job while it disallows concurrent execution and is executing")

	siblingState, err := s.GetTriggerState(ctx, sibling.Key)
	require.NoError(t, err)
	assert.Equal(t, types.StateBlocked, siblingState)

	require.NoError(t, s.TriggeredJobComplete(ctx, fired[0].Trigger, fired[0].JobDetail, types.NoInstruction))

	blocked, err = s.kv.SIsMember(ctx, s.schema.BlockedJobs(), s.schema.EncodeJobKey(job.Key))
	require.NoError(t, err)
	assert.False(t, blocked, "blocked_jobs must drop the job once it completes")

	siblingState, err = s.GetTriggerState(ctx, sibling.Key)
	require.NoError(t, err)
	assert.Equal(t, types.StateWaiting, siblingState)
}

func TestAllowConcurrentExecution_NeverBlocksJob(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	job := types.JobDetail{Key: types.JobKey{Name: "concurrent-ok", Group: types.DefaultGroup}}
	require.NoError(t, s.StoreJob(ctx, job, false))
	tr := simpleTrigger(job.Key, "concurrent-ok-trigger", time.Now().Add(-time.Minute))
	require.NoError(t, s.StoreTrigger(ctx, tr, false))

	acquired, err := s.AcquireNextTriggers(ctx, time.Now(), 1, time.Minute)
	require.NoError(t, err)
	require.Len(t, acquired, 1)

	_, err = s.TriggersFired(ctx, acquired)
	require.NoError(t, err)

	blocked, err := s.kv.SIsMember(ctx, s.schema.BlockedJobs(), s.schema.EncodeJobKey(job.Key))
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestPersistJobDataAfterExecution_WritesBackData(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t)
	job := types.JobDetail{
		Key:                          types.JobKey{Name: "stateful", Group: types.DefaultGroup},
		PersistJobDataAfterExecution: true,
		Data:                         map[string]any{"count": "0"},
	}
	require.NoError(t, s.StoreJob(ctx, job, false))
	tr := simpleTrigger(job.Key, "stateful-trigger", time.Now().Add(-time.Minute))
	require.NoError(t, s.StoreTrigger(ctx, tr, false))

	acquired, err := s.AcquireNextTriggers(ctx, time.Now(), 1, time.Minute)
	require.NoError(t, err)
	fired, err := s.TriggersFired(ctx, acquired)
	require.NoError(t, err)
	require.Len(t, fired, 1)

	updated := fired[0].JobDetail
	updated.Data = map[string]any{"count": "1"}
	require.NoError(t, s.TriggeredJobComplete(ctx, fired[0].Trigger, updated, types.NoInstruction))

	got, err := s.RetrieveJob(ctx, job.Key)
	require.NoError(t, err)
	assert.Equal(t, "1", got.Data["count"])
}

func timePtr(t time.Time) *time.Time { return &t }
