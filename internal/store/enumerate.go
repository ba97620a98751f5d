package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kvscheduler/quartzredis/internal/types"
)

// NumberOfJobs returns the count of distinct stored jobs.
func (s *Storage) NumberOfJobs(ctx context.Context) (int64, error) {
	n, err := s.kv.SCard(ctx, s.schema.Jobs())
	return n, errors.Wrap(err, "count jobs")
}

// NumberOfTriggers returns the count of distinct stored triggers.
func (s *Storage) NumberOfTriggers(ctx context.Context) (int64, error) {
	n, err := s.kv.SCard(ctx, s.schema.Triggers())
	return n, errors.Wrap(err, "count triggers")
}

// NumberOfCalendars returns the count of distinct stored calendars.
func (s *Storage) NumberOfCalendars(ctx context.Context) (int64, error) {
	n, err := s.kv.SCard(ctx, s.schema.Calendars())
	return n, errors.Wrap(err, "count calendars")
}

// GetJobGroupNames returns every job group with at least one member.
func (s *Storage) GetJobGroupNames(ctx context.Context) ([]string, error) {
	groups, err := s.kv.SMembers(ctx, s.schema.JobGroups())
	return groups, errors.Wrap(err, "list job group names")
}

// GetTriggerGroupNames returns every trigger group with at least one member.
func (s *Storage) GetTriggerGroupNames(ctx context.Context) ([]string, error) {
	groups, err := s.kv.SMembers(ctx, s.schema.TriggerGroups())
	return groups, errors.Wrap(err, "list trigger group names")
}

// GetCalendarNames returns every stored calendar's name.
func (s *Storage) GetCalendarNames(ctx context.Context) ([]string, error) {
	names, err := s.kv.SMembers(ctx, s.schema.Calendars())
	return names, errors.Wrap(err, "list calendar names")
}

// GetJobKeys enumerates job keys in every group the matcher accepts;
// never nil, even when empty (spec §4.4.8).
func (s *Storage) GetJobKeys(ctx context.Context, gm types.GroupMatcher) ([]types.JobKey, error) {
	groups, err := s.matchedGroups(ctx, s.schema.JobGroups(), gm)
	if err != nil {
		return nil, err
	}
	out := make([]types.JobKey, 0)
	for _, g := range groups {
		names, err := s.kv.SMembers(ctx, s.schema.JobGroup(g))
		if err != nil {
			return nil, errors.Wrap(err, "list job group members")
		}
		for _, n := range names {
			out = append(out, types.JobKey{Name: n, Group: g})
		}
	}
	return out, nil
}

// GetTriggerKeys enumerates trigger keys in every group the matcher
// accepts; never nil, even when empty.
func (s *Storage) GetTriggerKeys(ctx context.Context, gm types.GroupMatcher) ([]types.TriggerKey, error) {
	groups, err := s.matchedGroups(ctx, s.schema.TriggerGroups(), gm)
	if err != nil {
		return nil, err
	}
	out := make([]types.TriggerKey, 0)
	for _, g := range groups {
		names, err := s.kv.SMembers(ctx, s.schema.TriggerGroup(g))
		if err != nil {
			return nil, errors.Wrap(err, "list trigger group members")
		}
		for _, n := range names {
			out = append(out, types.TriggerKey{Name: n, Group: g})
		}
	}
	return out, nil
}
