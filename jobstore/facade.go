// Package jobstore is the thin SPI-facing layer spec §2 calls the "JobStore
// facade": it translates the scheduler's upward interface into
// internal/store.Storage calls made under the distributed mutex, and maps
// every non-ObjectAlreadyExists failure into a PersistenceError (spec §7).
// It mirrors the teacher's Scheduler type (scheduler/scheduler.go) in
// spirit — a small struct wrapping a persistence handle plus a logger,
// exposing a narrow set of public operations — generalized from one
// in-process scheduler onto a cluster of them serialized by a KV mutex.
package jobstore

import (
	"context"
	"errors"
	"time"

	"github.com/kvscheduler/quartzredis/internal/codec"
	"github.com/kvscheduler/quartzredis/internal/lock"
	"github.com/kvscheduler/quartzredis/internal/rkv"
	"github.com/kvscheduler/quartzredis/internal/schema"
	"github.com/kvscheduler/quartzredis/internal/store"
	"github.com/kvscheduler/quartzredis/internal/types"
	"github.com/kvscheduler/quartzredis/logger"
)

// Signaler is re-exported from internal/store so callers never need that
// import path to implement one.
type Signaler = store.Signaler

// Options configures a JobStore (spec §6's Configuration table).
type Options struct {
	KeyPrefix          string
	KeyDelimiter       string
	InstanceID         string
	RedisLockTimeout   time.Duration
	TriggerLockTimeout time.Duration
	MisfireThreshold   time.Duration
}

// JobStore is the facade the scheduler drives. It holds the mutex and the
// storage core; both are stateless beyond their KV handle, so a JobStore
// itself carries no mutable state except what Initialize wires in.
type JobStore struct {
	kv    rkv.Client
	ser   codec.Serializer
	mutex *lock.Mutex
	sch   schema.Schema

	storage *store.Storage
	log     logger.Logger
	opts    Options
}

// New builds a JobStore atop an already-connected KV client and a chosen
// Serializer. It wires in a NopSignaler; call Initialize to replace it
// with the scheduler's signaler.
func New(kv rkv.Client, ser codec.Serializer, opts Options, log logger.Logger) *JobStore {
	sch := schema.New(opts.KeyPrefix, opts.KeyDelimiter)
	mutex := lock.New(kv, sch.Lock(), opts.InstanceID, opts.RedisLockTimeout, logger.New("lock"))
	js := &JobStore{kv: kv, ser: ser, mutex: mutex, sch: sch, log: log, opts: opts}
	js.Initialize(store.NopSignaler{})
	return js
}

// Initialize wires the scheduler's signaler into the storage core (spec
// §6's `Initialize(signaler, instanceId)`; instanceId is fixed at
// construction via Options).
func (j *JobStore) Initialize(sig Signaler) {
	cfg := store.Config{
		InstanceID:         j.opts.InstanceID,
		MisfireThreshold:   j.opts.MisfireThreshold,
		TriggerLockTimeout: j.opts.TriggerLockTimeout,
	}
	j.storage = store.New(j.kv, j.sch, j.ser, sig, cfg, logger.New("store"))
}

// SchedulerStarted is a lifecycle hook with no store-side effect beyond
// logging: spec §9 explicitly excludes the teacher source's commented-out
// job-group recovery scan from the contract.
func (j *JobStore) SchedulerStarted(ctx context.Context) error {
	j.log.Infof("scheduler started, instance %s", j.opts.InstanceID)
	return nil
}

// SchedulerPaused logs the transition; no store-side effect.
func (j *JobStore) SchedulerPaused(ctx context.Context) error {
	j.log.Infof("scheduler paused, instance %s", j.opts.InstanceID)
	return nil
}

// SchedulerResumed logs the transition; no store-side effect.
func (j *JobStore) SchedulerResumed(ctx context.Context) error {
	j.log.Infof("scheduler resumed, instance %s", j.opts.InstanceID)
	return nil
}

// Shutdown releases the KV connection.
func (j *JobStore) Shutdown(ctx context.Context) error {
	return j.kv.Close()
}

// withLock acquires the mutex, runs fn, and always releases it (spec
// §7's "the distributed mutex is always released on every exit path").
// ObjectAlreadyExists propagates unchanged; any other error is logged and
// wrapped as a PersistenceError (spec §9's uniform-surfacing decision).
func withLock[T any](j *JobStore, ctx context.Context, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	token, err := j.mutex.Lock(ctx)
	if err != nil {
		return zero, &PersistenceError{Op: op, Err: err}
	}
	defer j.mutex.Unlock(ctx, token)

	result, err := fn(ctx)
	if err == nil {
		return result, nil
	}
	if errors.Is(err, store.ErrObjectAlreadyExists) {
		return zero, err
	}
	j.log.Errorf("jobstore: %s: %v", op, err)
	return zero, &PersistenceError{Op: op, Err: err}
}

func withLockVoid(j *JobStore, ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := withLock[struct{}](j, ctx, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// StoreJob persists job, replacing an existing one iff replace is true.
func (j *JobStore) StoreJob(ctx context.Context, job types.JobDetail, replace bool) error {
	return withLockVoid(j, ctx, "StoreJob", func(ctx context.Context) error {
		return j.storage.StoreJob(ctx, job, replace)
	})
}

// StoreTrigger persists tr, replacing an existing one iff replace is true.
func (j *JobStore) StoreTrigger(ctx context.Context, tr types.Trigger, replace bool) error {
	return withLockVoid(j, ctx, "StoreTrigger", func(ctx context.Context) error {
		return j.storage.StoreTrigger(ctx, tr, replace)
	})
}

// StoreJobAndTrigger persists job and tr together under one lock hold.
func (j *JobStore) StoreJobAndTrigger(ctx context.Context, job types.JobDetail, tr types.Trigger, replace bool) error {
	return withLockVoid(j, ctx, "StoreJobAndTrigger", func(ctx context.Context) error {
		return j.storage.StoreJobAndTrigger(ctx, job, tr, replace)
	})
}

// StoreJobsAndTriggers persists an entire batch under one lock hold.
func (j *JobStore) StoreJobsAndTriggers(ctx context.Context, batch []store.JobTriggerPair, replace bool) error {
	return withLockVoid(j, ctx, "StoreJobsAndTriggers", func(ctx context.Context) error {
		return j.storage.StoreJobsAndTriggers(ctx, batch, replace)
	})
}

// RemoveJob deletes key's job (cascading its triggers), returning whether
// it was present.
func (j *JobStore) RemoveJob(ctx context.Context, key types.JobKey) (bool, error) {
	return withLock(j, ctx, "RemoveJob", func(ctx context.Context) (bool, error) {
		return j.storage.RemoveJob(ctx, key)
	})
}

// RemoveJobs deletes every named job, returning whether all were present.
func (j *JobStore) RemoveJobs(ctx context.Context, keys []types.JobKey) (bool, error) {
	return withLock(j, ctx, "RemoveJobs", func(ctx context.Context) (bool, error) {
		return j.storage.RemoveJobs(ctx, keys)
	})
}

// RemoveTrigger deletes key's trigger, returning whether it was present.
func (j *JobStore) RemoveTrigger(ctx context.Context, key types.TriggerKey) (bool, error) {
	return withLock(j, ctx, "RemoveTrigger", func(ctx context.Context) (bool, error) {
		return j.storage.RemoveTrigger(ctx, key)
	})
}

// RemoveTriggers deletes every named trigger, returning whether all were
// present.
func (j *JobStore) RemoveTriggers(ctx context.Context, keys []types.TriggerKey) (bool, error) {
	return withLock(j, ctx, "RemoveTriggers", func(ctx context.Context) (bool, error) {
		return j.storage.RemoveTriggers(ctx, keys)
	})
}

// ReplaceTrigger overwrites an existing trigger's definition in place.
func (j *JobStore) ReplaceTrigger(ctx context.Context, key types.TriggerKey, newTrigger types.Trigger) error {
	return withLockVoid(j, ctx, "ReplaceTrigger", func(ctx context.Context) error {
		return j.storage.ReplaceTrigger(ctx, key, newTrigger)
	})
}

// RetrieveJob returns the stored job.
func (j *JobStore) RetrieveJob(ctx context.Context, key types.JobKey) (types.JobDetail, error) {
	return withLock(j, ctx, "RetrieveJob", func(ctx context.Context) (types.JobDetail, error) {
		return j.storage.RetrieveJob(ctx, key)
	})
}

// RetrieveTrigger returns the stored trigger.
func (j *JobStore) RetrieveTrigger(ctx context.Context, key types.TriggerKey) (types.Trigger, error) {
	return withLock(j, ctx, "RetrieveTrigger", func(ctx context.Context) (types.Trigger, error) {
		return j.storage.RetrieveTrigger(ctx, key)
	})
}

// RetrieveCalendar returns the stored calendar.
func (j *JobStore) RetrieveCalendar(ctx context.Context, name string) (types.Calendar, error) {
	return withLock(j, ctx, "RetrieveCalendar", func(ctx context.Context) (types.Calendar, error) {
		return j.storage.RetrieveCalendar(ctx, name)
	})
}

// CheckJobExists reports whether key names a stored job.
func (j *JobStore) CheckJobExists(ctx context.Context, key types.JobKey) (bool, error) {
	return withLock(j, ctx, "CheckJobExists", func(ctx context.Context) (bool, error) {
		return j.storage.CheckJobExists(ctx, key)
	})
}

// CheckTriggerExists reports whether key names a stored trigger.
func (j *JobStore) CheckTriggerExists(ctx context.Context, key types.TriggerKey) (bool, error) {
	return withLock(j, ctx, "CheckTriggerExists", func(ctx context.Context) (bool, error) {
		return j.storage.CheckTriggerExists(ctx, key)
	})
}

// CheckCalendarExists reports whether name is a stored calendar.
func (j *JobStore) CheckCalendarExists(ctx context.Context, name string) (bool, error) {
	return withLock(j, ctx, "CheckCalendarExists", func(ctx context.Context) (bool, error) {
		return j.storage.CheckCalendarExists(ctx, name)
	})
}

// StoreCalendar persists cal, replacing an existing one iff replace is
// true, re-anchoring referencing triggers iff updateTriggers is true.
func (j *JobStore) StoreCalendar(ctx context.Context, cal types.Calendar, replace, updateTriggers bool) error {
	return withLockVoid(j, ctx, "StoreCalendar", func(ctx context.Context) error {
		return j.storage.StoreCalendar(ctx, cal, replace, updateTriggers)
	})
}

// RemoveCalendar deletes name iff no trigger references it.
func (j *JobStore) RemoveCalendar(ctx context.Context, name string) (bool, error) {
	return withLock(j, ctx, "RemoveCalendar", func(ctx context.Context) (bool, error) {
		return j.storage.RemoveCalendar(ctx, name)
	})
}

// ClearAllSchedulingData wipes every job, trigger, calendar and group the
// store owns.
func (j *JobStore) ClearAllSchedulingData(ctx context.Context) error {
	return withLockVoid(j, ctx, "ClearAllSchedulingData", func(ctx context.Context) error {
		return j.storage.ClearAllSchedulingData(ctx)
	})
}

// GetNumberOfJobs returns the count of distinct stored jobs.
func (j *JobStore) GetNumberOfJobs(ctx context.Context) (int64, error) {
	return withLock(j, ctx, "GetNumberOfJobs", func(ctx context.Context) (int64, error) {
		return j.storage.NumberOfJobs(ctx)
	})
}

// GetNumberOfTriggers returns the count of distinct stored triggers.
func (j *JobStore) GetNumberOfTriggers(ctx context.Context) (int64, error) {
	return withLock(j, ctx, "GetNumberOfTriggers", func(ctx context.Context) (int64, error) {
		return j.storage.NumberOfTriggers(ctx)
	})
}

// GetNumberOfCalendars returns the count of distinct stored calendars.
func (j *JobStore) GetNumberOfCalendars(ctx context.Context) (int64, error) {
	return withLock(j, ctx, "GetNumberOfCalendars", func(ctx context.Context) (int64, error) {
		return j.storage.NumberOfCalendars(ctx)
	})
}

// GetJobKeys enumerates job keys in groups the matcher accepts.
func (j *JobStore) GetJobKeys(ctx context.Context, gm types.GroupMatcher) ([]types.JobKey, error) {
	return withLock(j, ctx, "GetJobKeys", func(ctx context.Context) ([]types.JobKey, error) {
		return j.storage.GetJobKeys(ctx, gm)
	})
}

// GetTriggerKeys enumerates trigger keys in groups the matcher accepts.
func (j *JobStore) GetTriggerKeys(ctx context.Context, gm types.GroupMatcher) ([]types.TriggerKey, error) {
	return withLock(j, ctx, "GetTriggerKeys", func(ctx context.Context) ([]types.TriggerKey, error) {
		return j.storage.GetTriggerKeys(ctx, gm)
	})
}

// GetJobGroupNames returns every job group with at least one member.
func (j *JobStore) GetJobGroupNames(ctx context.Context) ([]string, error) {
	return withLock(j, ctx, "GetJobGroupNames", func(ctx context.Context) ([]string, error) {
		return j.storage.GetJobGroupNames(ctx)
	})
}

// GetTriggerGroupNames returns every trigger group with at least one member.
func (j *JobStore) GetTriggerGroupNames(ctx context.Context) ([]string, error) {
	return withLock(j, ctx, "GetTriggerGroupNames", func(ctx context.Context) ([]string, error) {
		return j.storage.GetTriggerGroupNames(ctx)
	})
}

// GetCalendarNames returns every stored calendar's name.
func (j *JobStore) GetCalendarNames(ctx context.Context) ([]string, error) {
	return withLock(j, ctx, "GetCalendarNames", func(ctx context.Context) ([]string, error) {
		return j.storage.GetCalendarNames(ctx)
	})
}

// GetTriggersForJob returns every trigger currently bound to key.
func (j *JobStore) GetTriggersForJob(ctx context.Context, key types.JobKey) ([]types.Trigger, error) {
	return withLock(j, ctx, "GetTriggersForJob", func(ctx context.Context) ([]types.Trigger, error) {
		return j.storage.GetTriggersForJob(ctx, key)
	})
}

// GetTriggerState reports key's current state.
func (j *JobStore) GetTriggerState(ctx context.Context, key types.TriggerKey) (types.TriggerState, error) {
	return withLock(j, ctx, "GetTriggerState", func(ctx context.Context) (types.TriggerState, error) {
		return j.storage.GetTriggerState(ctx, key)
	})
}

// ResetTriggerFromErrorState moves key from Error back to Waiting.
func (j *JobStore) ResetTriggerFromErrorState(ctx context.Context, key types.TriggerKey) error {
	return withLockVoid(j, ctx, "ResetTriggerFromErrorState", func(ctx context.Context) error {
		return j.storage.ResetTriggerFromErrorState(ctx, key)
	})
}

// PauseTrigger pauses a single trigger.
func (j *JobStore) PauseTrigger(ctx context.Context, key types.TriggerKey) error {
	return withLockVoid(j, ctx, "PauseTrigger", func(ctx context.Context) error {
		return j.storage.PauseTrigger(ctx, key)
	})
}

// PauseTriggers pauses every trigger in every trigger group the matcher
// accepts, returning the matched group names.
func (j *JobStore) PauseTriggers(ctx context.Context, gm types.GroupMatcher) ([]string, error) {
	return withLock(j, ctx, "PauseTriggers", func(ctx context.Context) ([]string, error) {
		return j.storage.PauseTriggers(ctx, gm)
	})
}

// PauseJob pauses every trigger bound to key.
func (j *JobStore) PauseJob(ctx context.Context, key types.JobKey) error {
	return withLockVoid(j, ctx, "PauseJob", func(ctx context.Context) error {
		return j.storage.PauseJob(ctx, key)
	})
}

// PauseJobs pauses every job in every job group the matcher accepts,
// returning the matched group names.
func (j *JobStore) PauseJobs(ctx context.Context, gm types.GroupMatcher) ([]string, error) {
	return withLock(j, ctx, "PauseJobs", func(ctx context.Context) ([]string, error) {
		return j.storage.PauseJobs(ctx, gm)
	})
}

// ResumeTrigger resumes a single trigger.
func (j *JobStore) ResumeTrigger(ctx context.Context, key types.TriggerKey) error {
	return withLockVoid(j, ctx, "ResumeTrigger", func(ctx context.Context) error {
		return j.storage.ResumeTrigger(ctx, key)
	})
}

// ResumeTriggers resumes every trigger in every trigger group the matcher
// accepts, returning the matched group names.
func (j *JobStore) ResumeTriggers(ctx context.Context, gm types.GroupMatcher) ([]string, error) {
	return withLock(j, ctx, "ResumeTriggers", func(ctx context.Context) ([]string, error) {
		return j.storage.ResumeTriggers(ctx, gm)
	})
}

// ResumeJob resumes every trigger bound to key.
func (j *JobStore) ResumeJob(ctx context.Context, key types.JobKey) error {
	return withLockVoid(j, ctx, "ResumeJob", func(ctx context.Context) error {
		return j.storage.ResumeJob(ctx, key)
	})
}

// ResumeJobs resumes every job in every job group the matcher accepts,
// returning the matched group names.
func (j *JobStore) ResumeJobs(ctx context.Context, gm types.GroupMatcher) ([]string, error) {
	return withLock(j, ctx, "ResumeJobs", func(ctx context.Context) ([]string, error) {
		return j.storage.ResumeJobs(ctx, gm)
	})
}

// GetPausedTriggerGroups returns every currently paused trigger group.
func (j *JobStore) GetPausedTriggerGroups(ctx context.Context) ([]string, error) {
	return withLock(j, ctx, "GetPausedTriggerGroups", func(ctx context.Context) ([]string, error) {
		return j.storage.GetPausedTriggerGroups(ctx)
	})
}

// IsJobGroupPaused reports whether group is currently paused.
func (j *JobStore) IsJobGroupPaused(ctx context.Context, group string) (bool, error) {
	return withLock(j, ctx, "IsJobGroupPaused", func(ctx context.Context) (bool, error) {
		return j.storage.IsJobGroupPaused(ctx, group)
	})
}

// IsTriggerGroupPaused reports whether group is currently paused.
func (j *JobStore) IsTriggerGroupPaused(ctx context.Context, group string) (bool, error) {
	return withLock(j, ctx, "IsTriggerGroupPaused", func(ctx context.Context) (bool, error) {
		return j.storage.IsTriggerGroupPaused(ctx, group)
	})
}

// PauseAll pauses every trigger group currently known to the store.
func (j *JobStore) PauseAll(ctx context.Context) error {
	return withLockVoid(j, ctx, "PauseAll", func(ctx context.Context) error {
		return j.storage.PauseAll(ctx)
	})
}

// ResumeAll resumes every trigger in every trigger group known to the
// store and removes those groups from the paused set.
func (j *JobStore) ResumeAll(ctx context.Context) error {
	return withLockVoid(j, ctx, "ResumeAll", func(ctx context.Context) error {
		return j.storage.ResumeAll(ctx)
	})
}

// AcquireNextTriggers reserves up to maxCount due triggers (spec §4.4.2).
func (j *JobStore) AcquireNextTriggers(ctx context.Context, noLaterThan time.Time, maxCount int, timeWindow time.Duration) ([]types.Trigger, error) {
	return withLock(j, ctx, "AcquireNextTriggers", func(ctx context.Context) ([]types.Trigger, error) {
		return j.storage.AcquireNextTriggers(ctx, noLaterThan, maxCount, timeWindow)
	})
}

// ReleaseAcquiredTrigger returns an Acquired trigger to Waiting.
func (j *JobStore) ReleaseAcquiredTrigger(ctx context.Context, key types.TriggerKey) error {
	return withLockVoid(j, ctx, "ReleaseAcquiredTrigger", func(ctx context.Context) error {
		return j.storage.ReleaseAcquiredTrigger(ctx, key)
	})
}

// TriggersFired marks acquired triggers as Executing (spec §4.4.3).
func (j *JobStore) TriggersFired(ctx context.Context, triggers []types.Trigger) ([]types.FiredResult, error) {
	return withLock(j, ctx, "TriggersFired", func(ctx context.Context) ([]types.FiredResult, error) {
		return j.storage.TriggersFired(ctx, triggers)
	})
}

// TriggeredJobComplete applies a completion instruction (spec §4.4.4).
func (j *JobStore) TriggeredJobComplete(ctx context.Context, trigger types.Trigger, jobDetail types.JobDetail, instruction types.CompletionInstruction) error {
	return withLockVoid(j, ctx, "TriggeredJobComplete", func(ctx context.Context) error {
		return j.storage.TriggeredJobComplete(ctx, trigger, jobDetail, instruction)
	})
}
