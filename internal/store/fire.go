package store

import (
	"context"
	"time"

	"github.com/kvscheduler/quartzredis/internal/types"
)

// TriggersFired implements spec §4.4.3. Triggers that are no longer
// Acquired, or no longer exist, contribute no result rather than erroring
// — the caller may have raced a concurrent removal.
func (s *Storage) TriggersFired(ctx context.Context, triggers []types.Trigger) ([]types.FiredResult, error) {
	results := make([]types.FiredResult, 0, len(triggers))
	for _, in := range triggers {
		result, ok, err := s.fireOne(ctx, in.Key)
		if err != nil {
			return nil, err
		}
		if ok {
			results = append(results, result)
		}
	}
	return results, nil
}

func (s *Storage) fireOne(ctx context.Context, key types.TriggerKey) (types.FiredResult, bool, error) {
	cur, ok, err := s.readTrigger(ctx, key)
	if err != nil || !ok {
		return types.FiredResult{}, false, err
	}
	state, err := s.currentState(ctx, key)
	if err != nil {
		return types.FiredResult{}, false, err
	}
	if state != types.StateAcquired {
		return types.FiredResult{}, false, nil
	}

	job, ok, err := s.readJob(ctx, cur.JobKey)
	if err != nil || !ok {
		return types.FiredResult{}, false, err
	}
	cal, err := s.resolveCalendar(ctx, cur.CalendarName)
	if err != nil {
		return types.FiredResult{}, false, err
	}

	fireTime := cur.NextFireTime
	if fireTime == nil {
		now := time.Now()
		fireTime = &now
	}
	if cur.Kind == types.KindSimple && cur.Simple != nil {
		cur.Simple.TimesFired++
	}
	anchor := cur
	next := types.NextFireTimeAfter(&anchor, *fireTime, cal)
	cur.PreviousFireTime = fireTime
	cur.NextFireTime = next

	if job.DisallowsConcurrentExecution() {
		if err := s.blockJobAndSiblings(ctx, job.Key, cur.Key); err != nil {
			return types.FiredResult{}, false, err
		}
	}

	member := s.schema.EncodeTriggerKey(cur.Key)
	if err := s.moveTriggerState(ctx, member, types.StateAcquired, types.StateExecuting, scoreOf(next)); err != nil {
		return types.FiredResult{}, false, err
	}
	if err := s.writeTrigger(ctx, cur); err != nil {
		return types.FiredResult{}, false, err
	}

	return types.FiredResult{
		Trigger:      cur,
		JobDetail:    job,
		Calendar:     cal,
		NextFireTime: next,
	}, true, nil
}

// blockJobAndSiblings adds job to blocked_jobs and moves every other
// Waiting trigger of the job to Blocked (spec §4.4.3).
func (s *Storage) blockJobAndSiblings(ctx context.Context, job types.JobKey, firing types.TriggerKey) error {
	if err := s.kv.SAdd(ctx, s.schema.BlockedJobs(), s.schema.EncodeJobKey(job)); err != nil {
		return err
	}
	siblings, err := s.GetTriggersForJob(ctx, job)
	if err != nil {
		return err
	}
	for _, sib := range siblings {
		if sib.Key == firing {
			continue
		}
		state, err := s.currentState(ctx, sib.Key)
		if err != nil {
			return err
		}
		if state != types.StateWaiting {
			continue
		}
		if err := s.moveTriggerState(ctx, s.schema.EncodeTriggerKey(sib.Key), types.StateWaiting, types.StateBlocked, scoreOf(sib.NextFireTime)); err != nil {
			return err
		}
	}
	return nil
}

// TriggeredJobComplete implements spec §4.4.4.
func (s *Storage) TriggeredJobComplete(ctx context.Context, trigger types.Trigger, jobDetail types.JobDetail, instruction types.CompletionInstruction) error {
	cur, ok, err := s.readTrigger(ctx, trigger.Key)
	if err != nil {
		return err
	}
	if ok {
		if err := s.applyCompletionInstruction(ctx, cur, instruction); err != nil {
			return err
		}
		if err := s.clearFired(ctx, trigger.Key); err != nil {
			return err
		}
	}

	if jobDetail.DisallowsConcurrentExecution() {
		if err := s.unblockJob(ctx, jobDetail.Key); err != nil {
			return err
		}
	}
	if jobDetail.PersistsDataAfterExecution() {
		if err := s.writeJob(ctx, jobDetail); err != nil {
			return err
		}
	}

	if ok {
		s.sig.TriggerCompleted(ctx, cur, instruction)
	}
	return nil
}

func (s *Storage) applyCompletionInstruction(ctx context.Context, cur types.Trigger, instruction types.CompletionInstruction) error {
	state, err := s.currentState(ctx, cur.Key)
	if err != nil {
		return err
	}
	member := s.schema.EncodeTriggerKey(cur.Key)

	switch instruction {
	case types.NoInstruction:
		target := types.StateWaiting
		if cur.NextFireTime == nil {
			target = types.StateCompleted
		}
		return s.moveTriggerState(ctx, member, state, target, scoreOf(cur.NextFireTime))
	case types.DeleteTrigger:
		_, err := s.RemoveTrigger(ctx, cur.Key)
		return err
	case types.SetTriggerComplete:
		return s.moveTriggerState(ctx, member, state, types.StateCompleted, scoreOf(cur.NextFireTime))
	case types.SetTriggerError:
		return s.moveTriggerState(ctx, member, state, types.StateError, scoreOf(cur.NextFireTime))
	case types.SetAllJobTriggersComplete, types.SetAllJobTriggersError:
		target := types.StateCompleted
		if instruction == types.SetAllJobTriggersError {
			target = types.StateError
		}
		siblings, err := s.GetTriggersForJob(ctx, cur.JobKey)
		if err != nil {
			return err
		}
		for _, sib := range siblings {
			sibState, err := s.currentState(ctx, sib.Key)
			if err != nil {
				return err
			}
			if err := s.moveTriggerState(ctx, s.schema.EncodeTriggerKey(sib.Key), sibState, target, scoreOf(sib.NextFireTime)); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

// unblockJob removes job from blocked_jobs and re-anchors any siblings
// left in Blocked/PausedAndBlocked back to Waiting/Paused, applying
// misfire against the time spent blocked (spec §4.4.4).
func (s *Storage) unblockJob(ctx context.Context, job types.JobKey) error {
	if err := s.kv.SRem(ctx, s.schema.BlockedJobs(), s.schema.EncodeJobKey(job)); err != nil {
		return err
	}
	siblings, err := s.GetTriggersForJob(ctx, job)
	if err != nil {
		return err
	}
	for _, sib := range siblings {
		state, err := s.currentState(ctx, sib.Key)
		if err != nil {
			return err
		}
		var target types.TriggerState
		switch state {
		case types.StateBlocked:
			target = types.StateWaiting
		case types.StatePausedAndBlocked:
			target = types.StatePaused
		default:
			continue
		}
		resolved, err := s.resolveMisfireIfDue(ctx, sib)
		if err != nil {
			return err
		}
		if resolved.NextFireTime == nil && target == types.StateWaiting {
			target = types.StateCompleted
		}
		if err := s.moveTriggerState(ctx, s.schema.EncodeTriggerKey(sib.Key), state, target, scoreOf(resolved.NextFireTime)); err != nil {
			return err
		}
	}
	return nil
}
