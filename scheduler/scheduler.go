// Package scheduler is a reference dispatch loop driving a jobstore.JobStore
// instance: it repeatedly acquires due triggers, hands each to a registered
// JobHandler, and reports the outcome back through TriggersFired /
// TriggeredJobComplete. It is adapted from the teacher's Scheduler
// (dispatchLoop/execute/instanceID pattern) onto the distributed facade —
// the teacher's single-process BoltDB cache and per-job channel bookkeeping
// are gone; acquisition, locking and state transitions now live in the
// jobstore/internal/store layers this package only drives.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/kvscheduler/quartzredis/internal/types"
	"github.com/kvscheduler/quartzredis/jobstore"
	"github.com/kvscheduler/quartzredis/logger"
)

// JobHandler executes one firing of a job. A non-nil error is reported to
// the store as SetTriggerError.
type JobHandler func(ctx context.Context, job types.JobDetail, trigger types.Trigger) error

// Dispatcher polls a JobStore for due triggers and runs them through
// per-JobClass handlers, mirroring the teacher's dispatchLoop/execute
// split but against the cluster-shared store instead of an embedded DB.
type Dispatcher struct {
	store *jobstore.JobStore
	log   logger.Logger

	mu       sync.RWMutex
	handlers map[string]JobHandler

	pollInterval  time.Duration
	maxPerPoll    int
	acquireWindow time.Duration

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewDispatcher builds a Dispatcher over an already-Initialize'd JobStore.
func NewDispatcher(store *jobstore.JobStore, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		store:         store,
		log:           log,
		handlers:      make(map[string]JobHandler, 16),
		pollInterval:  200 * time.Millisecond,
		maxPerPoll:    50,
		acquireWindow: time.Second,
		quit:          make(chan struct{}),
	}
}

// RegisterHandler binds a handler to every job whose JobClass matches.
func (d *Dispatcher) RegisterHandler(jobClass string, handler JobHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[jobClass] = handler
}

// Start begins the background poll loop (spec §4.4.2's acquire/fire/
// complete cycle driven by the scheduler side of the SPI).
func (d *Dispatcher) Start(ctx context.Context) {
	if err := d.store.SchedulerStarted(ctx); err != nil {
		d.log.Errorf("scheduler started hook: %v", err)
	}
	d.wg.Add(1)
	go d.loop(ctx)
}

// Stop halts the poll loop and waits for the in-flight cycle to finish.
func (d *Dispatcher) Stop(ctx context.Context) {
	close(d.quit)
	d.wg.Wait()
	if err := d.store.SchedulerPaused(ctx); err != nil {
		d.log.Errorf("scheduler paused hook: %v", err)
	}
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-d.quit:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runCycle(ctx)
		}
	}
}

func (d *Dispatcher) runCycle(ctx context.Context) {
	acquired, err := d.store.AcquireNextTriggers(ctx, time.Now(), d.maxPerPoll, d.acquireWindow)
	if err != nil {
		d.log.Errorf("acquire next triggers: %v", err)
		return
	}
	if len(acquired) == 0 {
		return
	}

	fired, err := d.store.TriggersFired(ctx, acquired)
	if err != nil {
		d.log.Errorf("triggers fired: %v", err)
		return
	}
	for _, f := range fired {
		d.execute(ctx, f)
	}
}

func (d *Dispatcher) execute(ctx context.Context, f types.FiredResult) {
	d.mu.RLock()
	handler := d.handlers[f.JobDetail.JobClass]
	d.mu.RUnlock()

	if handler == nil {
		d.log.Warnf("no handler registered for job class %q (job %s)", f.JobDetail.JobClass, f.JobDetail.Key.String())
		d.complete(ctx, f, types.SetTriggerError)
		return
	}

	if err := handler(ctx, f.JobDetail, f.Trigger); err != nil {
		d.log.Errorf("job %s failed: %v", f.JobDetail.Key.String(), err)
		d.complete(ctx, f, types.SetTriggerError)
		return
	}
	d.complete(ctx, f, types.NoInstruction)
}

func (d *Dispatcher) complete(ctx context.Context, f types.FiredResult, instruction types.CompletionInstruction) {
	if err := d.store.TriggeredJobComplete(ctx, f.Trigger, f.JobDetail, instruction); err != nil {
		d.log.Errorf("triggered job complete for %s: %v", f.Trigger.Key.String(), err)
	}
}
