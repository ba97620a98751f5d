package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kvscheduler/quartzredis/internal/matcher"
	"github.com/kvscheduler/quartzredis/internal/types"
)

// matchedGroups filters the members of groupsKey through gm, compiling
// the predicate once and reusing it across every candidate (internal/
// matcher's reason for existing).
func (s *Storage) matchedGroups(ctx context.Context, groupsKey string, gm types.GroupMatcher) ([]string, error) {
	all, err := s.kv.SMembers(ctx, groupsKey)
	if err != nil {
		return nil, errors.Wrap(err, "list groups")
	}
	m, err := matcher.Compile(gm)
	if err != nil {
		return nil, err
	}
	return m.Filter(all), nil
}

// PauseTrigger applies spec §4.4.6's Waiting→Paused / Blocked→
// PausedAndBlocked transition. Any other current state is left alone.
func (s *Storage) PauseTrigger(ctx context.Context, key types.TriggerKey) error {
	state, err := s.currentState(ctx, key)
	if err != nil {
		return err
	}
	member := s.schema.EncodeTriggerKey(key)
	switch state {
	case types.StateWaiting:
		return s.moveTriggerState(ctx, member, types.StateWaiting, types.StatePaused, s.currentScore(ctx, member, state))
	case types.StateBlocked:
		return s.moveTriggerState(ctx, member, types.StateBlocked, types.StatePausedAndBlocked, s.currentScore(ctx, member, state))
	default:
		return nil
	}
}

// currentScore re-reads the member's current score so a pure state move
// (Waiting->Paused etc.) never loses the stored next-fire-time ordering.
func (s *Storage) currentScore(ctx context.Context, member string, state types.TriggerState) float64 {
	score, _, err := s.kv.ZScore(ctx, s.schema.TriggerState(state), member)
	if err != nil {
		return 0
	}
	return score
}

// PauseJob pauses every trigger currently bound to job.
func (s *Storage) PauseJob(ctx context.Context, key types.JobKey) error {
	triggers, err := s.GetTriggersForJob(ctx, key)
	if err != nil {
		return err
	}
	for _, tr := range triggers {
		if err := s.PauseTrigger(ctx, tr.Key); err != nil {
			return err
		}
	}
	return nil
}

// PauseTriggers pauses every trigger in every trigger group the matcher
// accepts, and records those groups as paused (spec §4.4.6).
func (s *Storage) PauseTriggers(ctx context.Context, gm types.GroupMatcher) ([]string, error) {
	groups, err := s.matchedGroups(ctx, s.schema.TriggerGroups(), gm)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		names, err := s.kv.SMembers(ctx, s.schema.TriggerGroup(g))
		if err != nil {
			return nil, errors.Wrap(err, "list trigger group members")
		}
		for _, name := range names {
			if err := s.PauseTrigger(ctx, types.TriggerKey{Name: name, Group: g}); err != nil {
				return nil, err
			}
		}
		if err := s.kv.SAdd(ctx, s.schema.PausedTriggerGroups(), g); err != nil {
			return nil, errors.Wrap(err, "record paused trigger group")
		}
	}
	return groups, nil
}

// PauseJobs pauses every job (i.e. every trigger of every job) in every
// job group the matcher accepts, and records those groups as paused.
func (s *Storage) PauseJobs(ctx context.Context, gm types.GroupMatcher) ([]string, error) {
	groups, err := s.matchedGroups(ctx, s.schema.JobGroups(), gm)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		names, err := s.kv.SMembers(ctx, s.schema.JobGroup(g))
		if err != nil {
			return nil, errors.Wrap(err, "list job group members")
		}
		for _, name := range names {
			if err := s.PauseJob(ctx, types.JobKey{Name: name, Group: g}); err != nil {
				return nil, err
			}
		}
		if err := s.kv.SAdd(ctx, s.schema.PausedJobGroups(), g); err != nil {
			return nil, errors.Wrap(err, "record paused job group")
		}
	}
	return groups, nil
}

// ResumeTrigger reverses PauseTrigger, re-evaluating misfire policy
// against the elapsed time before the trigger re-enters Waiting (spec
// §4.4.6).
func (s *Storage) ResumeTrigger(ctx context.Context, key types.TriggerKey) error {
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
	member := s.schema.EncodeTriggerKey(key)
	switch state {
	case types.StatePaused:
		tr, err = s.resolveMisfireIfDue(ctx, tr)
		if err != nil {
			return err
		}
		target := types.StateWaiting
		if tr.NextFireTime == nil {
			target = types.StateCompleted
		}
		return s.moveTriggerState(ctx, member, types.StatePaused, target, scoreOf(tr.NextFireTime))
	case types.StatePausedAndBlocked:
		return s.moveTriggerState(ctx, member, types.StatePausedAndBlocked, types.StateBlocked, scoreOf(tr.NextFireTime))
	default:
		return nil
	}
}

// ResumeJob resumes every trigger bound to job.
func (s *Storage) ResumeJob(ctx context.Context, key types.JobKey) error {
	triggers, err := s.GetTriggersForJob(ctx, key)
	if err != nil {
		return err
	}
	for _, tr := range triggers {
		if err := s.ResumeTrigger(ctx, tr.Key); err != nil {
			return err
		}
	}
	return nil
}

// ResumeTriggers is PauseTriggers's inverse.
func (s *Storage) ResumeTriggers(ctx context.Context, gm types.GroupMatcher) ([]string, error) {
	groups, err := s.matchedGroups(ctx, s.schema.TriggerGroups(), gm)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		names, err := s.kv.SMembers(ctx, s.schema.TriggerGroup(g))
		if err != nil {
			return nil, errors.Wrap(err, "list trigger group members")
		}
		for _, name := range names {
			if err := s.ResumeTrigger(ctx, types.TriggerKey{Name: name, Group: g}); err != nil {
				return nil, err
			}
		}
		if err := s.kv.SRem(ctx, s.schema.PausedTriggerGroups(), g); err != nil {
			return nil, errors.Wrap(err, "unrecord paused trigger group")
		}
	}
	return groups, nil
}

// ResumeJobs is PauseJobs's inverse.
func (s *Storage) ResumeJobs(ctx context.Context, gm types.GroupMatcher) ([]string, error) {
	groups, err := s.matchedGroups(ctx, s.schema.JobGroups(), gm)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		names, err := s.kv.SMembers(ctx, s.schema.JobGroup(g))
		if err != nil {
			return nil, errors.Wrap(err, "list job group members")
		}
		for _, name := range names {
			if err := s.ResumeJob(ctx, types.JobKey{Name: name, Group: g}); err != nil {
				return nil, err
			}
		}
		if err := s.kv.SRem(ctx, s.schema.PausedJobGroups(), g); err != nil {
			return nil, errors.Wrap(err, "unrecord paused job group")
		}
	}
	return groups, nil
}

// GetPausedTriggerGroups returns every trigger group name currently
// paused.
func (s *Storage) GetPausedTriggerGroups(ctx context.Context) ([]string, error) {
	groups, err := s.kv.SMembers(ctx, s.schema.PausedTriggerGroups())
	return groups, errors.Wrap(err, "list paused trigger groups")
}

// IsJobGroupPaused reports whether group is in the paused job groups set.
func (s *Storage) IsJobGroupPaused(ctx context.Context, group string) (bool, error) {
	ok, err := s.kv.SIsMember(ctx, s.schema.PausedJobGroups(), group)
	return ok, errors.Wrap(err, "check job group paused")
}

// IsTriggerGroupPaused reports whether group is in the paused trigger
// groups set.
func (s *Storage) IsTriggerGroupPaused(ctx context.Context, group string) (bool, error) {
	ok, err := s.kv.SIsMember(ctx, s.schema.PausedTriggerGroups(), group)
	return ok, errors.Wrap(err, "check trigger group paused")
}

// PauseAll pauses every trigger group currently known to the store.
func (s *Storage) PauseAll(ctx context.Context) error {
	_, err := s.PauseTriggers(ctx, types.GroupAny())
	return err
}

// ResumeAll resumes every trigger in every trigger group known to the
// store and removes those groups from the paused set.
func (s *Storage) ResumeAll(ctx context.Context) error {
	_, err := s.ResumeTriggers(ctx, types.GroupAny())
	return err
}
