package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kvscheduler/quartzredis/internal/types"
)

// CheckCalendarExists reports whether name is a stored calendar.
func (s *Storage) CheckCalendarExists(ctx context.Context, name string) (bool, error) {
	ok, err := s.kv.SIsMember(ctx, s.schema.Calendars(), name)
	return ok, errors.Wrap(err, "check calendar exists")
}

// RetrieveCalendar returns the stored calendar, or ErrObjectNotFound.
func (s *Storage) RetrieveCalendar(ctx context.Context, name string) (types.Calendar, error) {
	cal, ok, err := s.readCalendar(ctx, name)
	if err != nil {
		return types.Calendar{}, err
	}
	if !ok {
		return types.Calendar{}, notFound("calendar " + name)
	}
	return *cal, nil
}

// StoreCalendar persists a new calendar, or replaces one when replace is
// true. When updateTriggers is true every trigger currently referencing
// the calendar has its next-fire-time re-anchored against the new
// payload (invariant 3, spec scenario S4).
func (s *Storage) StoreCalendar(ctx context.Context, cal types.Calendar, replace, updateTriggers bool) error {
	exists, err := s.CheckCalendarExists(ctx, cal.Name)
	if err != nil {
		return err
	}
	if exists && !replace {
		return alreadyExists("calendar " + cal.Name)
	}

	if err := s.writeCalendar(ctx, cal); err != nil {
		return err
	}
	if !exists {
		if err := s.kv.SAdd(ctx, s.schema.Calendars(), cal.Name); err != nil {
			return errors.Wrap(err, "index calendar")
		}
	}
	if !exists || !updateTriggers {
		return nil
	}
	return s.reanchorCalendarTriggers(ctx, cal)
}

// reanchorCalendarTriggers recomputes next-fire-time for every trigger
// referencing cal. A Waiting or Paused trigger keeps its state with the new
// score, or moves to Completed when no next fire time remains; triggers in
// any other state keep their index entry unchanged.
func (s *Storage) reanchorCalendarTriggers(ctx context.Context, cal types.Calendar) error {
	members, err := s.kv.SMembers(ctx, s.schema.CalendarTriggers(cal.Name))
	if err != nil {
		return errors.Wrap(err, "list calendar triggers")
	}
	for _, m := range members {
		tk, err := s.schema.DecodeTriggerKey(m)
		if err != nil {
			return err
		}
		tr, ok, err := s.readTrigger(ctx, tk)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		anchor := tr.PreviousFireTime
		if anchor == nil {
			anchor = &tr.StartTime
		}
		next := types.NextFireTimeAfter(&tr, *anchor, &cal)
		tr.NextFireTime = next
		if err := s.writeTrigger(ctx, tr); err != nil {
			return err
		}

		state, err := s.currentState(ctx, tk)
		if err != nil {
			return err
		}
		if state == types.StateWaiting || state == types.StatePaused {
			target := state
			if next == nil {
				target = types.StateCompleted
			}
			if err := s.moveTriggerState(ctx, m, state, target, scoreOf(next)); err != nil {
				return err
			}
		}
	}
	return nil
}

// RemoveCalendar deletes a calendar iff no trigger references it
// (invariant 3: "on RemoveCalendar a referencing trigger is an error").
func (s *Storage) RemoveCalendar(ctx context.Context, name string) (bool, error) {
	exists, err := s.CheckCalendarExists(ctx, name)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}
	n, err := s.kv.SCard(ctx, s.schema.CalendarTriggers(name))
	if err != nil {
		return false, errors.Wrap(err, "count calendar triggers")
	}
	if n > 0 {
		return false, constraintViolation("calendar " + name + " still referenced by a trigger")
	}
	if err := s.kv.Del(ctx, s.schema.Calendar(name), s.schema.CalendarTriggers(name)); err != nil {
		return false, errors.Wrap(err, "remove calendar")
	}
	return true, errors.Wrap(s.kv.SRem(ctx, s.schema.Calendars(), name), "unindex calendar")
}
