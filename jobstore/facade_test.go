package jobstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvscheduler/quartzredis/internal/codec"
	"github.com/kvscheduler/quartzredis/internal/rkv/fake"
	"github.com/kvscheduler/quartzredis/internal/types"
	"github.com/kvscheduler/quartzredis/logger"
)

func newTestStore(t *testing.T) *JobStore {
	t.Helper()
	opts := Options{
		KeyPrefix:          "quartzredis-test",
		KeyDelimiter:       ":",
		InstanceID:         "facade-test",
		RedisLockTimeout:   time.Second,
		TriggerLockTimeout: time.Minute,
		MisfireThreshold:   time.Second,
	}
	return New(fake.New(), codec.NewJSON(), opts, logger.New("facade-test"))
}

func TestJobStore_StoreAndRetrieveJob(t *testing.T) {
	ctx := context.Background()
	js := newTestStore(t)
	job := types.JobDetail{Key: types.JobKey{Name: "send-digest", Group: types.DefaultGroup}, JobClass: "digest.Send"}

	require.NoError(t, js.StoreJob(ctx, job, false))

	got, err := js.RetrieveJob(ctx, job.Key)
	require.NoError(t, err)
	assert.Equal(t, job.JobClass, got.JobClass)
}

func TestJobStore_StoreJob_DuplicateSurfacesAlreadyExists(t *testing.T) {
	ctx := context.Background()
	js := newTestStore(t)
	job := types.JobDetail{Key: types.JobKey{Name: "dup", Group: types.DefaultGroup}}
	require.NoError(t, js.StoreJob(ctx, job, false))

	err := js.StoreJob(ctx, job, false)
	assert.ErrorIs(t, err, ErrObjectAlreadyExists)
}

func TestJobStore_RetrieveJob_MissingWrapsAsPersistenceError(t *testing.T) {
	ctx := context.Background()
	js := newTestStore(t)

	_, err := js.RetrieveJob(ctx, types.JobKey{Name: "ghost", Group: types.DefaultGroup})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	var persistErr *PersistenceError
	assert.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "RetrieveJob", persistErr.Op)
}

func TestJobStore_AcquireFireComplete(t *testing.T) {
	ctx := context.Background()
	js := newTestStore(t)
	job := types.JobDetail{Key: types.JobKey{Name: "cycle", Group: types.DefaultGroup}}
	require.NoError(t, js.StoreJob(ctx, job, false))

	tr := types.Trigger{
		Key:       types.TriggerKey{Name: "cycle-trigger", Group: types.DefaultGroup},
		JobKey:    job.Key,
		Priority:  types.DefaultPriority,
		StartTime: time.Now().Add(-time.Minute),
		Kind:      types.KindSimple,
		Simple:    &types.SimpleSchedule{Interval: time.Minute, RepeatCount: types.RepeatForever},
	}
	require.NoError(t, js.StoreTrigger(ctx, tr, false))

	acquired, err := js.AcquireNextTriggers(ctx, time.Now(), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, acquired, 1)

	fired, err := js.TriggersFired(ctx, acquired)
	require.NoError(t, err)
	require.Len(t, fired, 1)

	require.NoError(t, js.TriggeredJobComplete(ctx, fired[0].Trigger, fired[0].JobDetail, types.NoInstruction))

	state, err := js.GetTriggerState(ctx, tr.Key)
	require.NoError(t, err)
	assert.Equal(t, types.StateWaiting, state)
}

func TestJobStore_PauseResumeJobGroup(t *testing.T) {
	ctx := context.Background()
	js := newTestStore(t)
	job := types.JobDetail{Key: types.JobKey{Name: "nightly", Group: "reports"}}
	require.NoError(t, js.StoreJob(ctx, job, false))
	tr := types.Trigger{
		Key:       types.TriggerKey{Name: "nightly-trigger", Group: "reports"},
		JobKey:    job.Key,
		StartTime: time.Now(),
		Kind:      types.KindSimple,
		Simple:    &types.SimpleSchedule{Interval: time.Hour, RepeatCount: types.RepeatForever},
	}
	require.NoError(t, js.StoreTrigger(ctx, tr, false))

	groups, err := js.PauseJobs(ctx, types.GroupEquals("reports"))
	require.NoError(t, err)
	assert.Equal(t, []string{"reports"}, groups)

	state, err := js.GetTriggerState(ctx, tr.Key)
	require.NoError(t, err)
	assert.Equal(t, types.StatePaused, state)

	paused, err := js.IsJobGroupPaused(ctx, "reports")
	require.NoError(t, err)
	assert.True(t, paused)

	groups, err = js.ResumeJobs(ctx, types.GroupEquals("reports"))
	require.NoError(t, err)
	assert.Equal(t, []string{"reports"}, groups)

	state, err = js.GetTriggerState(ctx, tr.Key)
	require.NoError(t, err)
	assert.Equal(t, types.StateWaiting, state)

	paused, err = js.IsJobGroupPaused(ctx, "reports")
	require.NoError(t, err)
	assert.False(t, paused)
}
