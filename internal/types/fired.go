package types

import "time"

// FiredTrigger is a transient record of a trigger currently Acquired or
// Executing, carrying the owning scheduler instance id, a lock timestamp,
// and the next-fire-time snapshot taken at acquisition (spec §3).
type FiredTrigger struct {
	TriggerKey       TriggerKey
	JobKey           JobKey
	InstanceID       string
	AcquiredAt       time.Time
	FireInstanceID   string
	FireTime         time.Time
	State            TriggerState
}

// FiredResult is returned per-trigger by TriggersFired (spec §4.4.3):
// the freshly computed job detail snapshot, the resolved calendar (if
// any), and the new next-fire-time.
type FiredResult struct {
	Trigger      Trigger
	JobDetail    JobDetail
	Calendar     *Calendar
	NextFireTime *time.Time
}
