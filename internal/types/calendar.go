package types

import "time"

// Calendar is a set of included/excluded time ranges that filters a
// trigger's fire-times (GLOSSARY). The store treats the payload as an
// opaque serialized blob (spec §4.2); this struct is what the default
// JSON serializer decodes it into so trigger scheduling math has something
// concrete to test against.
type Calendar struct {
	Name             string
	ExcludedWeekdays []time.Weekday
	ExcludedDates    []time.Time // compared by calendar day, in Location
	Location         *time.Location
}

func (c *Calendar) loc() *time.Location {
	if c == nil || c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// IsTimeIncluded reports whether t is not excluded by this calendar. A nil
// Calendar includes every instant.
func (c *Calendar) IsTimeIncluded(t time.Time) bool {
	if c == nil {
		return true
	}
	loc := c.loc()
	t = t.In(loc)
	for _, wd := range c.ExcludedWeekdays {
		if t.Weekday() == wd {
			return false
		}
	}
	y, m, d := t.Date()
	for _, ex := range c.ExcludedDates {
		ey, em, ed := ex.In(loc).Date()
		if y == ey && m == em && d == ed {
			return false
		}
	}
	return true
}

// NextIncludedTime returns the first of t, t+1 day, t+2 days, ... that
// IsTimeIncluded accepts, keeping t's clock time rather than moving to the
// start of the included day. Calendars only exclude whole days (weekday or
// specific date), so a day-granularity scan is exhaustive.
func (c *Calendar) NextIncludedTime(t time.Time) time.Time {
	if c == nil {
		return t
	}
	for i := 0; i < 366*5; i++ {
		if c.IsTimeIncluded(t) {
			return t
		}
		t = t.AddDate(0, 0, 1)
	}
	return t
}
