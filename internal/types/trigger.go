package types

import "time"

// TriggerKind discriminates the type-specific schedule fields a Trigger
// carries (spec §3: "type-specific fields (cron expression / simple
// interval+repeat / calendar-interval / daily-time-interval)").
type TriggerKind string

const (
	KindSimple            TriggerKind = "simple"
	KindCron              TriggerKind = "cron"
	KindCalendarInterval  TriggerKind = "calendarInterval"
	KindDailyTimeInterval TriggerKind = "dailyTimeInterval"
)

// RepeatForever marks a SimpleSchedule as repeating indefinitely.
const RepeatForever = -1

// SimpleSchedule fires every Interval, up to RepeatCount additional times
// (RepeatForever for unbounded).
type SimpleSchedule struct {
	Interval     time.Duration
	RepeatCount  int
	TimesFired   int
}

// CronSchedule fires according to a standard five-field cron expression,
// evaluated with robfig/cron the same way the teacher's scheduler.go
// reschedules a recurring job (`cron.ParseStandard(...).Next(...)`).
type CronSchedule struct {
	Expression string
	Location   *time.Location
}

// IntervalUnit names the granularity a CalendarIntervalSchedule steps by.
type IntervalUnit string

const (
	UnitSecond IntervalUnit = "second"
	UnitMinute IntervalUnit = "minute"
	UnitHour   IntervalUnit = "hour"
	UnitDay    IntervalUnit = "day"
	UnitWeek   IntervalUnit = "week"
	UnitMonth  IntervalUnit = "month"
	UnitYear   IntervalUnit = "year"
)

// CalendarIntervalSchedule fires every N calendar units (e.g. every 2
// months), unlike SimpleSchedule's fixed-duration interval which drifts
// across month/DST boundaries.
type CalendarIntervalSchedule struct {
	Interval int
	Unit     IntervalUnit
}

// DailyTimeIntervalSchedule fires every Interval within [StartTimeOfDay,
// EndTimeOfDay) on the given days of week.
type DailyTimeIntervalSchedule struct {
	Interval      time.Duration
	StartTimeOfDay time.Duration // offset since midnight
	EndTimeOfDay   time.Duration // offset since midnight; 24h means no bound
	DaysOfWeek     []time.Weekday
}

// Trigger is a schedule bound to a job (spec §3). A single struct carries
// common fields plus exactly one populated type-specific schedule,
// selected by Kind, mirroring the flat KV hash layout of spec §4.1
// ("trigger" -> hash of common + type-specific fields).
type Trigger struct {
	Key                TriggerKey
	JobKey             JobKey
	Description        string
	CalendarName       string
	Priority           int
	MisfireInstruction MisfireInstruction
	StartTime          time.Time
	EndTime            time.Time // zero value means unbounded
	NextFireTime       *time.Time
	PreviousFireTime   *time.Time

	Kind             TriggerKind
	Simple           *SimpleSchedule
	Cron             *CronSchedule
	CalendarInterval *CalendarIntervalSchedule
	DailyTimeInterval *DailyTimeIntervalSchedule
}

// DefaultPriority is applied to triggers that don't set one explicitly.
const DefaultPriority = 5

// Clone returns a deep-enough copy safe for independent mutation.
func (t Trigger) Clone() Trigger {
	out := t
	if t.NextFireTime != nil {
		nf := *t.NextFireTime
		out.NextFireTime = &nf
	}
	if t.PreviousFireTime != nil {
		pf := *t.PreviousFireTime
		out.PreviousFireTime = &pf
	}
	if t.Simple != nil {
		s := *t.Simple
		out.Simple = &s
	}
	if t.Cron != nil {
		c := *t.Cron
		out.Cron = &c
	}
	if t.CalendarInterval != nil {
		c := *t.CalendarInterval
		out.CalendarInterval = &c
	}
	if t.DailyTimeInterval != nil {
		d := *t.DailyTimeInterval
		dw := make([]time.Weekday, len(d.DaysOfWeek))
		copy(dw, d.DaysOfWeek)
		d.DaysOfWeek = dw
		out.DailyTimeInterval = &d
	}
	return out
}

// WithinBounds reports whether t lies within [StartTime, EndTime) (EndTime
// zero means unbounded).
func (tr Trigger) WithinBounds(t time.Time) bool {
	if t.Before(tr.StartTime) {
		return false
	}
	if !tr.EndTime.IsZero() && !t.Before(tr.EndTime) {
		return false
	}
	return true
}
