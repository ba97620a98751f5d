// Package lock implements spec §4.3: a coarse, blocking,
// reentrancy-free distributed mutex on a single KV key, built on atomic
// set-if-absent with a TTL and a bounded-backoff spin-wait. It generalizes
// the teacher's database/boltdb.go AcquireLock/ReleaseLock pair — which
// encodes "instanceID:timestamp" into a bbolt value and re-acquires past
// an expiry window — onto a real networked KV so the lock is enforceable
// across scheduler processes, not just goroutines sharing one file.
package lock

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/kvscheduler/quartzredis/internal/rkv"
	"github.com/kvscheduler/quartzredis/logger"
)

const (
	// DefaultTimeout is the TTL of the mutex key (spec §6's
	// redisLockTimeout default).
	DefaultTimeout = 5 * time.Second
	backoffMin     = 10 * time.Millisecond
	backoffMax     = 50 * time.Millisecond
)

// Mutex is a single named distributed lock. It is not reentrant: every
// facade operation acquires exactly once (spec §4.3).
type Mutex struct {
	client     rkv.Client
	key        string
	ttl        time.Duration
	instanceID string
	log        logger.Logger
	counter    uint64
}

// New builds a Mutex guarding the given KV key.
func New(client rkv.Client, key, instanceID string, ttl time.Duration, log logger.Logger) *Mutex {
	if ttl <= 0 {
		ttl = DefaultTimeout
	}
	return &Mutex{client: client, key: key, ttl: ttl, instanceID: instanceID, log: log}
}

// token returns a unique value for one acquisition: instance id plus a
// monotonic per-process counter (spec §4.3).
func (m *Mutex) token() string {
	n := atomic.AddUint64(&m.counter, 1)
	return fmt.Sprintf("%s-%d", m.instanceID, n)
}

// Lock blocks until the lock is acquired or ctx is cancelled. There is no
// fair queueing — contention is assumed low (spec §4.3) — so callers
// retry indefinitely with a short bounded backoff between attempts.
func (m *Mutex) Lock(ctx context.Context) (string, error) {
	tok := m.token()
	for {
		ok, err := m.client.SetNX(ctx, m.key, tok, m.ttl)
		if err != nil {
			return "", fmt.Errorf("lock: acquire %s: %w", m.key, err)
		}
		if ok {
			return tok, nil
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff()):
		}
	}
}

// Unlock releases the lock only if it is still held by token (spec §4.3's
// atomic check-and-delete). A lock whose TTL already expired is forfeit;
// Unlock does not error in that case, it only logs (spec: LockLost is
// "logged, not raised").
func (m *Mutex) Unlock(ctx context.Context, token string) {
	ok, err := m.client.DelIfMatch(ctx, m.key, token)
	if err != nil {
		m.log.Errorf("lock: release %s: %v", m.key, err)
		return
	}
	if !ok {
		m.log.Warnf("lock: %s held past TTL or taken by another holder on release (token %s)", m.key, token)
	}
}

func backoff() time.Duration {
	span := backoffMax - backoffMin
	return backoffMin + time.Duration(rand.Int63n(int64(span)))
}
