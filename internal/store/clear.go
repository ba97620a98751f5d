package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kvscheduler/quartzredis/internal/types"
)

// ClearAllSchedulingData wipes every job, trigger, calendar, group and
// state index the store owns (spec §6). It deliberately does not touch
// the distributed lock key: the caller invoking this already holds it.
func (s *Storage) ClearAllSchedulingData(ctx context.Context) error {
	jobMembers, err := s.kv.SMembers(ctx, s.schema.Jobs())
	if err != nil {
		return errors.Wrap(err, "clear: list jobs")
	}
	for _, m := range jobMembers {
		jk, err := s.schema.DecodeJobKey(m)
		if err != nil {
			continue
		}
		if err := s.kv.Del(ctx, s.schema.Job(jk), s.schema.JobDataMap(jk), s.schema.JobTriggers(jk)); err != nil {
			return errors.Wrap(err, "clear: delete job")
		}
	}

	triggerMembers, err := s.kv.SMembers(ctx, s.schema.Triggers())
	if err != nil {
		return errors.Wrap(err, "clear: list triggers")
	}
	for _, m := range triggerMembers {
		tk, err := s.schema.DecodeTriggerKey(m)
		if err != nil {
			continue
		}
		if err := s.kv.Del(ctx, s.schema.Trigger(tk)); err != nil {
			return errors.Wrap(err, "clear: delete trigger")
		}
	}

	calendars, err := s.kv.SMembers(ctx, s.schema.Calendars())
	if err != nil {
		return errors.Wrap(err, "clear: list calendars")
	}
	for _, name := range calendars {
		if err := s.kv.Del(ctx, s.schema.Calendar(name), s.schema.CalendarTriggers(name)); err != nil {
			return errors.Wrap(err, "clear: delete calendar")
		}
	}

	jobGroups, err := s.kv.SMembers(ctx, s.schema.JobGroups())
	if err != nil {
		return errors.Wrap(err, "clear: list job groups")
	}
	for _, g := range jobGroups {
		if err := s.kv.Del(ctx, s.schema.JobGroup(g)); err != nil {
			return errors.Wrap(err, "clear: delete job group")
		}
	}

	triggerGroups, err := s.kv.SMembers(ctx, s.schema.TriggerGroups())
	if err != nil {
		return errors.Wrap(err, "clear: list trigger groups")
	}
	for _, g := range triggerGroups {
		if err := s.kv.Del(ctx, s.schema.TriggerGroup(g)); err != nil {
			return errors.Wrap(err, "clear: delete trigger group")
		}
	}

	for _, state := range types.OrderedStates() {
		if err := s.kv.Del(ctx, s.schema.TriggerState(state)); err != nil {
			return errors.Wrap(err, "clear: delete state index")
		}
	}

	return errors.Wrap(s.kv.Del(ctx,
		s.schema.Jobs(), s.schema.Triggers(),
		s.schema.JobGroups(), s.schema.TriggerGroups(),
		s.schema.Calendars(),
		s.schema.PausedJobGroups(), s.schema.PausedTriggerGroups(),
		s.schema.BlockedJobs(), s.schema.FiredTriggers(),
	), "clear: delete root indices")
}
