package store

import (
	"context"
	"time"

	"github.com/kvscheduler/quartzredis/internal/types"
)

// resolveCalendar loads the calendar a trigger names, or nil if it names
// none. Absence of a previously-validated calendar name is treated as "no
// calendar" rather than an error — invariant 3 enforces existence only at
// store time.
func (s *Storage) resolveCalendar(ctx context.Context, name string) (*types.Calendar, error) {
	if name == "" {
		return nil, nil
	}
	cal, ok, err := s.readCalendar(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return cal, nil
}

// misfired reports whether tr's due fire has elapsed by more than the
// configured misfire threshold (spec §4.4.5).
func (s *Storage) misfired(tr types.Trigger, now time.Time) bool {
	if tr.NextFireTime == nil {
		return false
	}
	return now.Sub(*tr.NextFireTime) > s.cfg.MisfireThreshold
}

// resolveMisfireIfDue applies spec §4.4.5's misfire policy when tr is
// overdue, persists the recomputed trigger, notifies the signaler, and
// returns the (possibly updated) trigger. It never moves a trigger
// backward in time. Callers that need the state index updated (Waiting
// vs Completed) inspect the returned NextFireTime themselves.
func (s *Storage) resolveMisfireIfDue(ctx context.Context, tr types.Trigger) (types.Trigger, error) {
	now := time.Now()
	if !s.misfired(tr, now) {
		return tr, nil
	}

	cal, err := s.resolveCalendar(ctx, tr.CalendarName)
	if err != nil {
		return tr, err
	}

	switch tr.MisfireInstruction {
	case types.MisfireInstructionFireNow:
		tr.NextFireTime = &now
	case types.MisfireInstructionDoNothing:
		tr.NextFireTime = s.skipMissedFires(tr, now, cal)
	default: // MisfireInstructionSmartPolicy and any type-specific code
		tr.NextFireTime = s.skipMissedFires(tr, now, cal)
	}

	if err := s.writeTrigger(ctx, tr); err != nil {
		return tr, err
	}
	s.sig.TriggerMisfired(ctx, tr)
	return tr, nil
}

// skipMissedFires advances next-fire-time forward past every instant
// already elapsed, so a trigger that missed many firings resumes at the
// next future one instead of bursting through the backlog.
func (s *Storage) skipMissedFires(tr types.Trigger, now time.Time, cal *types.Calendar) *time.Time {
	next := tr.NextFireTime
	for i := 0; next != nil && !next.After(now) && i < 100000; i++ {
		next = types.NextFireTimeAfter(&tr, *next, cal)
	}
	return next
}
