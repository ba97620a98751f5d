package types

import (
	"time"

	"github.com/robfig/cron/v3"
)

// NextFireTimeAfter computes the next fire time strictly after `after`,
// dispatching on the trigger's Kind, then re-anchoring against cal (if any)
// and clamping to the trigger's [StartTime, EndTime) bounds. A nil result
// means the trigger is terminal (spec §3 invariant 8, §4.4.3/§4.4.5).
//
// This is the one place type-specific scheduling math lives, mirroring the
// teacher's scheduler.go `execute()` which calls `cron.ParseStandard(...).
// Next(...)` inline; here it's generalized across all four trigger kinds
// named in spec §3 instead of cron alone.
func NextFireTimeAfter(tr *Trigger, after time.Time, cal *Calendar) *time.Time {
	if tr == nil {
		return nil
	}
	var candidate time.Time
	switch tr.Kind {
	case KindSimple:
		c, ok := nextSimple(tr, after)
		if !ok {
			return nil
		}
		candidate = c
	case KindCron:
		c, ok := nextCron(tr, after)
		if !ok {
			return nil
		}
		candidate = c
	case KindCalendarInterval:
		candidate = nextCalendarInterval(tr, after)
	case KindDailyTimeInterval:
		c, ok := nextDailyTimeInterval(tr, after)
		if !ok {
			return nil
		}
		candidate = c
	default:
		return nil
	}

	if cal != nil && !cal.IsTimeIncluded(candidate) {
		candidate = cal.NextIncludedTime(candidate)
	}

	if !tr.EndTime.IsZero() && !candidate.Before(tr.EndTime) {
		return nil
	}
	return &candidate
}

func nextSimple(tr *Trigger, after time.Time) (time.Time, bool) {
	s := tr.Simple
	if s == nil || s.Interval <= 0 {
		return time.Time{}, false
	}
	if s.RepeatCount != RepeatForever && s.TimesFired > s.RepeatCount {
		return time.Time{}, false
	}
	if after.Before(tr.StartTime) {
		return tr.StartTime, true
	}
	return after.Add(s.Interval), true
}

func nextCron(tr *Trigger, after time.Time) (time.Time, bool) {
	c := tr.Cron
	if c == nil || c.Expression == "" {
		return time.Time{}, false
	}
	sched, err := cron.ParseStandard(c.Expression)
	if err != nil {
		return time.Time{}, false
	}
	seed := after
	if seed.Before(tr.StartTime) {
		seed = tr.StartTime.Add(-time.Second)
	}
	if c.Location != nil {
		seed = seed.In(c.Location)
	}
	return sched.Next(seed), true
}

func nextCalendarInterval(tr *Trigger, after time.Time) time.Time {
	c := tr.CalendarInterval
	if c == nil || c.Interval <= 0 {
		return tr.StartTime
	}
	base := after
	if base.Before(tr.StartTime) {
		return tr.StartTime
	}
	switch c.Unit {
	case UnitSecond:
		return base.Add(time.Duration(c.Interval) * time.Second)
	case UnitMinute:
		return base.Add(time.Duration(c.Interval) * time.Minute)
	case UnitHour:
		return base.Add(time.Duration(c.Interval) * time.Hour)
	case UnitDay:
		return base.AddDate(0, 0, c.Interval)
	case UnitWeek:
		return base.AddDate(0, 0, 7*c.Interval)
	case UnitMonth:
		return base.AddDate(0, c.Interval, 0)
	case UnitYear:
		return base.AddDate(c.Interval, 0, 0)
	default:
		// Every IntervalUnit constant is handled above; an unrecognized
		// unit means a corrupt or hand-crafted record, not a real schedule.
		return tr.StartTime
	}
}

func nextDailyTimeInterval(tr *Trigger, after time.Time) (time.Time, bool) {
	d := tr.DailyTimeInterval
	if d == nil || d.Interval <= 0 {
		return time.Time{}, false
	}
	seed := after
	if seed.Before(tr.StartTime) {
		seed = tr.StartTime
	}
	endOfDay := d.EndTimeOfDay
	if endOfDay <= 0 {
		endOfDay = 24 * time.Hour
	}
	for i := 0; i < 8; i++ { // at most a week of day-boundary hops
		dayStart := time.Date(seed.Year(), seed.Month(), seed.Day(), 0, 0, 0, 0, seed.Location())
		windowStart := dayStart.Add(d.StartTimeOfDay)
		windowEnd := dayStart.Add(endOfDay)

		if dayAllowed(d.DaysOfWeek, seed.Weekday()) {
			var candidate time.Time
			switch {
			case seed.Before(windowStart):
				candidate = windowStart
			default:
				candidate = seed.Add(d.Interval)
			}
			if candidate.Before(windowEnd) {
				return candidate, true
			}
		}
		// advance to the start of the next day and retry
		seed = dayStart.AddDate(0, 0, 1)
	}
	return time.Time{}, false
}

func dayAllowed(days []time.Weekday, wd time.Weekday) bool {
	if len(days) == 0 {
		return true
	}
	for _, d := range days {
		if d == wd {
			return true
		}
	}
	return false
}
