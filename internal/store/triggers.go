package store

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/kvscheduler/quartzredis/internal/types"
)

// CheckTriggerExists reports whether key names a stored trigger.
func (s *Storage) CheckTriggerExists(ctx context.Context, key types.TriggerKey) (bool, error) {
	ok, err := s.kv.SIsMember(ctx, s.schema.Triggers(), s.schema.EncodeTriggerKey(key))
	return ok, errors.Wrap(err, "check trigger exists")
}

// RetrieveTrigger returns the stored trigger, or ErrObjectNotFound.
func (s *Storage) RetrieveTrigger(ctx context.Context, key types.TriggerKey) (types.Trigger, error) {
	tr, ok, err := s.readTrigger(ctx, key)
	if err != nil {
		return types.Trigger{}, err
	}
	if !ok {
		return types.Trigger{}, notFound("trigger " + key.String())
	}
	return tr, nil
}

// GetTriggerState reports the trigger's current state-index membership,
// StateNone if the trigger does not exist (spec §6).
func (s *Storage) GetTriggerState(ctx context.Context, key types.TriggerKey) (types.TriggerState, error) {
	return s.currentState(ctx, key)
}

// StoreTrigger persists a new trigger, or replaces an existing one when
// replace is true (spec §4.4's Storage CRUD surface).
func (s *Storage) StoreTrigger(ctx context.Context, tr types.Trigger, replace bool) error {
	exists, err := s.CheckTriggerExists(ctx, tr.Key)
	if err != nil {
		return err
	}
	if exists {
		if !replace {
			return alreadyExists("trigger " + tr.Key.String())
		}
		return s.ReplaceTrigger(ctx, tr.Key, tr)
	}

	jobExists, err := s.CheckJobExists(ctx, tr.JobKey)
	if err != nil {
		return err
	}
	if !jobExists {
		return notFound("job " + tr.JobKey.String() + " referenced by trigger " + tr.Key.String())
	}

	var cal *types.Calendar
	if tr.CalendarName != "" {
		cal, err = s.readCalendar(ctx, tr.CalendarName)
		if err != nil {
			return err
		}
		if cal == nil {
			return notFound("calendar " + tr.CalendarName + " referenced by trigger " + tr.Key.String())
		}
	}

	if tr.Priority == 0 {
		tr.Priority = types.DefaultPriority
	}
	if tr.NextFireTime == nil {
		seed := tr.StartTime.Add(-time.Nanosecond)
		tr.NextFireTime = types.NextFireTimeAfter(&tr, seed, cal)
	}

	if err := s.writeTrigger(ctx, tr); err != nil {
		return err
	}
	return s.indexNewTrigger(ctx, tr)
}

// indexNewTrigger adds every set/group membership a freshly stored
// trigger needs, and places it into the correct initial state: Paused if
// its trigger group (or owning job group) is currently paused, Completed
// if it has no next fire time, Waiting otherwise (spec §4.4.6's "new
// triggers added to a paused group are inserted directly into Paused
// state").
func (s *Storage) indexNewTrigger(ctx context.Context, tr types.Trigger) error {
	member := s.schema.EncodeTriggerKey(tr.Key)

	if err := s.kv.SAdd(ctx, s.schema.Triggers(), member); err != nil {
		return errors.Wrap(err, "index trigger: triggers set")
	}
	if err := s.kv.SAdd(ctx, s.schema.TriggerGroup(tr.Key.Group), tr.Key.Name); err != nil {
		return errors.Wrap(err, "index trigger: group set")
	}
	if err := s.kv.SAdd(ctx, s.schema.TriggerGroups(), tr.Key.Group); err != nil {
		return errors.Wrap(err, "index trigger: groups set")
	}
	if err := s.kv.SAdd(ctx, s.schema.JobTriggers(tr.JobKey), member); err != nil {
		return errors.Wrap(err, "index trigger: job triggers set")
	}
	if tr.CalendarName != "" {
		if err := s.kv.SAdd(ctx, s.schema.CalendarTriggers(tr.CalendarName), member); err != nil {
			return errors.Wrap(err, "index trigger: calendar triggers set")
		}
	}

	paused, err := s.groupPaused(ctx, tr.Key.Group, tr.JobKey.Group)
	if err != nil {
		return err
	}

	state := types.StateWaiting
	switch {
	case paused:
		state = types.StatePaused
	case tr.NextFireTime == nil:
		state = types.StateCompleted
	}
	return s.moveTriggerState(ctx, member, "", state, scoreOf(tr.NextFireTime))
}

// groupPaused reports whether either the trigger's own group or its job's
// group is currently paused (spec §4.4.6).
func (s *Storage) groupPaused(ctx context.Context, triggerGroup, jobGroup string) (bool, error) {
	ok, err := s.kv.SIsMember(ctx, s.schema.PausedTriggerGroups(), triggerGroup)
	if err != nil {
		return false, errors.Wrap(err, "check paused trigger group")
	}
	if ok {
		return true, nil
	}
	ok, err = s.kv.SIsMember(ctx, s.schema.PausedJobGroups(), jobGroup)
	return ok, errors.Wrap(err, "check paused job group")
}

// ReplaceTrigger overwrites an existing trigger's definition in place,
// re-anchoring its next-fire-time and preserving its current state
// membership's class (Paused stays Paused, everything else becomes
// Waiting under the new schedule).
func (s *Storage) ReplaceTrigger(ctx context.Context, key types.TriggerKey, newTrigger types.Trigger) error {
	old, ok, err := s.readTrigger(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("trigger " + key.String())
	}

	var cal *types.Calendar
	if newTrigger.CalendarName != "" {
		cal, err = s.readCalendar(ctx, newTrigger.CalendarName)
		if err != nil {
			return err
		}
		if cal == nil {
			return notFound("calendar " + newTrigger.CalendarName + " referenced by trigger " + key.String())
		}
	}
	if newTrigger.Priority == 0 {
		newTrigger.Priority = types.DefaultPriority
	}
	if newTrigger.NextFireTime == nil {
		seed := newTrigger.StartTime.Add(-time.Nanosecond)
		newTrigger.NextFireTime = types.NextFireTimeAfter(&newTrigger, seed, cal)
	}

	curState, err := s.currentState(ctx, key)
	if err != nil {
		return err
	}

	if err := s.unindexTriggerGroupsAndCalendar(ctx, old); err != nil {
		return err
	}
	if err := s.writeTrigger(ctx, newTrigger); err != nil {
		return err
	}

	member := s.schema.EncodeTriggerKey(newTrigger.Key)
	if err := s.kv.SAdd(ctx, s.schema.TriggerGroup(newTrigger.Key.Group), newTrigger.Key.Name); err != nil {
		return errors.Wrap(err, "replace trigger: group set")
	}
	if err := s.kv.SAdd(ctx, s.schema.TriggerGroups(), newTrigger.Key.Group); err != nil {
		return errors.Wrap(err, "replace trigger: groups set")
	}
	if err := s.kv.SAdd(ctx, s.schema.JobTriggers(newTrigger.JobKey), member); err != nil {
		return errors.Wrap(err, "replace trigger: job triggers set")
	}
	if newTrigger.CalendarName != "" {
		if err := s.kv.SAdd(ctx, s.schema.CalendarTriggers(newTrigger.CalendarName), member); err != nil {
			return errors.Wrap(err, "replace trigger: calendar triggers set")
		}
	}

	next := curState
	switch curState {
	case types.StatePaused, types.StatePausedAndBlocked:
		// stays paused
	default:
		next = types.StateWaiting
		if newTrigger.NextFireTime == nil {
			next = types.StateCompleted
		}
	}
	return s.moveTriggerState(ctx, member, curState, next, scoreOf(newTrigger.NextFireTime))
}

// unindexTriggerGroupsAndCalendar removes the group/job/calendar
// memberships a trigger held, without touching its state-index placement
// (the caller handles that separately during replace).
func (s *Storage) unindexTriggerGroupsAndCalendar(ctx context.Context, tr types.Trigger) error {
	member := s.schema.EncodeTriggerKey(tr.Key)
	if err := s.kv.SRem(ctx, s.schema.JobTriggers(tr.JobKey), member); err != nil {
		return errors.Wrap(err, "unindex trigger: job triggers set")
	}
	if tr.CalendarName != "" {
		if err := s.kv.SRem(ctx, s.schema.CalendarTriggers(tr.CalendarName), member); err != nil {
			return errors.Wrap(err, "unindex trigger: calendar triggers set")
		}
	}
	return nil
}

// RemoveTrigger deletes a trigger and, per invariant 5, its job too if the
// job is non-durable and left with no other triggers. Returns whether a
// trigger was actually present to remove.
func (s *Storage) RemoveTrigger(ctx context.Context, key types.TriggerKey) (bool, error) {
	tr, ok, err := s.readTrigger(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := s.removeTriggerRecord(ctx, tr); err != nil {
		return false, err
	}

	job, ok, err := s.readJob(ctx, tr.JobKey)
	if err != nil {
		return false, err
	}
	if ok && !job.Durable {
		n, err := s.kv.SCard(ctx, s.schema.JobTriggers(tr.JobKey))
		if err != nil {
			return false, errors.Wrap(err, "count remaining job triggers")
		}
		if n == 0 {
			if err := s.removeJobRecord(ctx, tr.JobKey); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

// RemoveTriggers removes every named trigger, returning whether all were
// present.
func (s *Storage) RemoveTriggers(ctx context.Context, keys []types.TriggerKey) (bool, error) {
	all := true
	for _, k := range keys {
		ok, err := s.RemoveTrigger(ctx, k)
		if err != nil {
			return false, err
		}
		all = all && ok
	}
	return all, nil
}

// ResetTriggerFromErrorState moves a trigger from Error back to Waiting
// if its record still exists; no-op otherwise. The teacher's source left
// this unimplemented ("not implemented" per spec §9); this fills the gap
// the spec requires.
func (s *Storage) ResetTriggerFromErrorState(ctx context.Context, key types.TriggerKey) error {
	tr, ok, err := s.readTrigger(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	state, err := s.currentState(ctx, key)
	if err != nil {
		return err
	}
	if state != types.StateError {
		return nil
	}
	member := s.schema.EncodeTriggerKey(key)
	return s.moveTriggerState(ctx, member, types.StateError, types.StateWaiting, scoreOf(tr.NextFireTime))
}
