// Package codec implements spec §4.2's pluggable Serializer contract:
// opaque byte-level encoding of job detail, trigger, and calendar objects.
package codec

import "github.com/kvscheduler/quartzredis/internal/types"

// Serializer encodes and decodes the three persisted object kinds. A
// decode failure must be distinguishable so the caller (internal/store)
// can transition the offending trigger to the Error state and surface a
// DecodeError (spec §7), rather than being confused with a not-found or
// transport failure.
type Serializer interface {
	EncodeJob(types.JobDetail) ([]byte, error)
	DecodeJob([]byte) (types.JobDetail, error)
	EncodeTrigger(types.Trigger) ([]byte, error)
	DecodeTrigger([]byte) (types.Trigger, error)
	EncodeCalendar(types.Calendar) ([]byte, error)
	DecodeCalendar([]byte) (types.Calendar, error)
}

// DecodeError wraps a decode failure so callers can type-assert it apart
// from transport or not-found errors (spec §7).
type DecodeError struct {
	Kind string // "job", "trigger", "calendar"
	Err  error
}

func (e *DecodeError) Error() string {
	return "decode " + e.Kind + ": " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }
