package config

import (
	"fmt"
	"math/rand"
	"time"
)

// newInstanceID generates a default instance id when none is configured,
// the same way the teacher's scheduler.go derives one for its in-process
// Scheduler (nanosecond timestamp + a random int, not a UUID, since
// collisions only matter for the lock token's uniqueness within one
// process's lifetime).
func newInstanceID() string {
	return fmt.Sprintf("jobstore-%d-%d", time.Now().UnixNano(), rand.Int())
}
