package jobstore

import (
	"fmt"

	"github.com/kvscheduler/quartzredis/internal/store"
)

// Re-exported sentinel errors (spec §7) so SPI callers never import
// internal/store directly.
var (
	ErrObjectAlreadyExists = store.ErrObjectAlreadyExists
	ErrObjectNotFound      = store.ErrObjectNotFound
	ErrConstraintViolation = store.ErrConstraintViolation
)

// PersistenceError wraps any Storage failure that is not
// ObjectAlreadyExists: decode corruption, constraint violations,
// transport failures. Spec §7's propagation policy re-raises these as a
// persistence error carrying the original cause rather than rethrowing
// the bare Storage error.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("jobstore: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
