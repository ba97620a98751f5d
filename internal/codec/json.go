package codec

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/kvscheduler/quartzredis/internal/types"
)

// JSON is the default Serializer, matching the teacher's use of
// encoding/json throughout database/boltdb.go. Wire DTOs are kept
// separate from internal/types so the domain model stays free of
// encoding concerns and future serializers (gob, protobuf) can define
// their own wire shape without touching internal/types.
type JSON struct{}

// NewJSON constructs the default serializer.
func NewJSON() JSON { return JSON{} }

// jobWire deliberately excludes JobDetail.Data: spec §4.1 gives the data
// map its own "job_data_map" hash, separate from the "job" hash of scalar
// fields, so internal/store persists Data through that key directly
// instead of folding it into this blob.
type jobWire struct {
	Name                         string `json:"name"`
	Group                        string `json:"group"`
	JobClass                     string `json:"job_class"`
	Description                  string `json:"description"`
	Durable                      bool   `json:"durable"`
	RequestsRecovery             bool   `json:"requests_recovery"`
	DisallowConcurrentExecution  bool   `json:"disallow_concurrent_execution"`
	PersistJobDataAfterExecution bool   `json:"persist_job_data_after_execution"`
}

func (JSON) EncodeJob(j types.JobDetail) ([]byte, error) {
	w := jobWire{
		Name:                         j.Key.Name,
		Group:                        j.Key.Group,
		JobClass:                     j.JobClass,
		Description:                  j.Description,
		Durable:                      j.Durable,
		RequestsRecovery:             j.RequestsRecovery,
		DisallowConcurrentExecution:  j.DisallowConcurrentExecution,
		PersistJobDataAfterExecution: j.PersistJobDataAfterExecution,
	}
	b, err := json.Marshal(w)
	return b, errors.Wrap(err, "encode job")
}

func (JSON) DecodeJob(b []byte) (types.JobDetail, error) {
	var w jobWire
	if err := json.Unmarshal(b, &w); err != nil {
		return types.JobDetail{}, &DecodeError{Kind: "job", Err: err}
	}
	return types.JobDetail{
		Key:                          types.JobKey{Name: w.Name, Group: w.Group},
		JobClass:                     w.JobClass,
		Description:                  w.Description,
		Durable:                      w.Durable,
		RequestsRecovery:             w.RequestsRecovery,
		DisallowConcurrentExecution:  w.DisallowConcurrentExecution,
		PersistJobDataAfterExecution: w.PersistJobDataAfterExecution,
	}, nil
}

type triggerWire struct {
	Name               string     `json:"name"`
	Group              string     `json:"group"`
	JobName            string     `json:"job_name"`
	JobGroup           string     `json:"job_group"`
	Description        string     `json:"description"`
	CalendarName       string     `json:"calendar_name,omitempty"`
	Priority           int        `json:"priority"`
	MisfireInstruction int        `json:"misfire_instruction"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            time.Time  `json:"end_time,omitempty"`
	NextFireTime       *time.Time `json:"next_fire_time,omitempty"`
	PreviousFireTime   *time.Time `json:"previous_fire_time,omitempty"`

	Kind string `json:"kind"`

	SimpleIntervalNs int64 `json:"simple_interval_ns,omitempty"`
	SimpleRepeat     int   `json:"simple_repeat,omitempty"`
	SimpleTimesFired int   `json:"simple_times_fired,omitempty"`

	CronExpression string `json:"cron_expression,omitempty"`
	CronLocation   string `json:"cron_location,omitempty"`

	CalIntervalValue int    `json:"cal_interval_value,omitempty"`
	CalIntervalUnit  string `json:"cal_interval_unit,omitempty"`

	DailyIntervalNs    int64  `json:"daily_interval_ns,omitempty"`
	DailyStartOfDayNs  int64  `json:"daily_start_of_day_ns,omitempty"`
	DailyEndOfDayNs    int64  `json:"daily_end_of_day_ns,omitempty"`
	DailyDaysOfWeek    []int  `json:"daily_days_of_week,omitempty"`
}

func (JSON) EncodeTrigger(t types.Trigger) ([]byte, error) {
	w := triggerWire{
		Name:                t.Key.Name,
		Group:               t.Key.Group,
		JobName:             t.JobKey.Name,
		JobGroup:            t.JobKey.Group,
		Description:         t.Description,
		CalendarName:        t.CalendarName,
		Priority:            t.Priority,
		MisfireInstruction:  int(t.MisfireInstruction),
		StartTime:           t.StartTime,
		EndTime:             t.EndTime,
		NextFireTime:        t.NextFireTime,
		PreviousFireTime:    t.PreviousFireTime,
		Kind:                string(t.Kind),
	}
	switch t.Kind {
	case types.KindSimple:
		if s := t.Simple; s != nil {
			w.SimpleIntervalNs = int64(s.Interval)
			w.SimpleRepeat = s.RepeatCount
			w.SimpleTimesFired = s.TimesFired
		}
	case types.KindCron:
		if c := t.Cron; c != nil {
			w.CronExpression = c.Expression
			if c.Location != nil {
				w.CronLocation = c.Location.String()
			}
		}
	case types.KindCalendarInterval:
		if c := t.CalendarInterval; c != nil {
			w.CalIntervalValue = c.Interval
			w.CalIntervalUnit = string(c.Unit)
		}
	case types.KindDailyTimeInterval:
		if d := t.DailyTimeInterval; d != nil {
			w.DailyIntervalNs = int64(d.Interval)
			w.DailyStartOfDayNs = int64(d.StartTimeOfDay)
			w.DailyEndOfDayNs = int64(d.EndTimeOfDay)
			for _, wd := range d.DaysOfWeek {
				w.DailyDaysOfWeek = append(w.DailyDaysOfWeek, int(wd))
			}
		}
	}
	b, err := json.Marshal(w)
	return b, errors.Wrap(err, "encode trigger")
}

func (JSON) DecodeTrigger(b []byte) (types.Trigger, error) {
	var w triggerWire
	if err := json.Unmarshal(b, &w); err != nil {
		return types.Trigger{}, &DecodeError{Kind: "trigger", Err: err}
	}
	t := types.Trigger{
		Key:                types.TriggerKey{Name: w.Name, Group: w.Group},
		JobKey:             types.JobKey{Name: w.JobName, Group: w.JobGroup},
		Description:        w.Description,
		CalendarName:       w.CalendarName,
		Priority:           w.Priority,
		MisfireInstruction: types.MisfireInstruction(w.MisfireInstruction),
		StartTime:          w.StartTime,
		EndTime:            w.EndTime,
		NextFireTime:       w.NextFireTime,
		PreviousFireTime:   w.PreviousFireTime,
		Kind:               types.TriggerKind(w.Kind),
	}
	switch t.Kind {
	case types.KindSimple:
		t.Simple = &types.SimpleSchedule{
			Interval:    time.Duration(w.SimpleIntervalNs),
			RepeatCount: w.SimpleRepeat,
			TimesFired:  w.SimpleTimesFired,
		}
	case types.KindCron:
		loc := time.UTC
		if w.CronLocation != "" {
			if l, err := time.LoadLocation(w.CronLocation); err == nil {
				loc = l
			}
		}
		t.Cron = &types.CronSchedule{Expression: w.CronExpression, Location: loc}
	case types.KindCalendarInterval:
		t.CalendarInterval = &types.CalendarIntervalSchedule{
			Interval: w.CalIntervalValue,
			Unit:     types.IntervalUnit(w.CalIntervalUnit),
		}
	case types.KindDailyTimeInterval:
		days := make([]time.Weekday, 0, len(w.DailyDaysOfWeek))
		for _, d := range w.DailyDaysOfWeek {
			days = append(days, time.Weekday(d))
		}
		t.DailyTimeInterval = &types.DailyTimeIntervalSchedule{
			Interval:       time.Duration(w.DailyIntervalNs),
			StartTimeOfDay: time.Duration(w.DailyStartOfDayNs),
			EndTimeOfDay:   time.Duration(w.DailyEndOfDayNs),
			DaysOfWeek:     days,
		}
	}
	return t, nil
}

type calendarWire struct {
	Name             string    `json:"name"`
	ExcludedWeekdays []int     `json:"excluded_weekdays,omitempty"`
	ExcludedDates    []time.Time `json:"excluded_dates,omitempty"`
	Location         string    `json:"location,omitempty"`
}

func (JSON) EncodeCalendar(c types.Calendar) ([]byte, error) {
	w := calendarWire{Name: c.Name, ExcludedDates: c.ExcludedDates}
	for _, wd := range c.ExcludedWeekdays {
		w.ExcludedWeekdays = append(w.ExcludedWeekdays, int(wd))
	}
	if c.Location != nil {
		w.Location = c.Location.String()
	}
	b, err := json.Marshal(w)
	return b, errors.Wrap(err, "encode calendar")
}

func (JSON) DecodeCalendar(b []byte) (types.Calendar, error) {
	var w calendarWire
	if err := json.Unmarshal(b, &w); err != nil {
		return types.Calendar{}, &DecodeError{Kind: "calendar", Err: err}
	}
	c := types.Calendar{Name: w.Name, ExcludedDates: w.ExcludedDates}
	for _, wd := range w.ExcludedWeekdays {
		c.ExcludedWeekdays = append(c.ExcludedWeekdays, time.Weekday(wd))
	}
	loc := time.UTC
	if w.Location != "" {
		if l, err := time.LoadLocation(w.Location); err == nil {
			loc = l
		}
	}
	c.Location = loc
	return c, nil
}
