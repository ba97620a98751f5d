// Package store implements spec §4.4: the storage core. Storage turns
// Schema-derived keys and an injected Serializer into the full CRUD,
// state-machine, acquisition, firing, completion, pause/resume and
// misfire surface, atop nothing but internal/rkv.Client. It holds no
// state of its own beyond that wiring, the same way the teacher's
// BoltDBClient (database/boltdb.go) is a thin wrapper around *bbolt.DB
// with no other fields.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/kvscheduler/quartzredis/internal/codec"
	"github.com/kvscheduler/quartzredis/internal/rkv"
	"github.com/kvscheduler/quartzredis/internal/schema"
	"github.com/kvscheduler/quartzredis/internal/types"
	"github.com/kvscheduler/quartzredis/logger"
)

// Signaler is the scheduler-provided callback surface Storage invokes
// while the caller's mutex is held (spec §4's "Control flow" paragraph
// and §9's "Signaler callbacks under lock"). Implementations must not
// re-enter Storage.
type Signaler interface {
	// TriggerMisfired is invoked once per trigger the misfire handler
	// recomputed (spec §4.4.5).
	TriggerMisfired(ctx context.Context, trigger types.Trigger)
	// TriggerCompleted is invoked after TriggeredJobComplete applies its
	// instruction (spec §4.4.4).
	TriggerCompleted(ctx context.Context, trigger types.Trigger, instruction types.CompletionInstruction)
}

// NopSignaler discards every callback; useful for tests and for a facade
// caller that has not wired a real scheduler yet.
type NopSignaler struct{}

func (NopSignaler) TriggerMisfired(context.Context, types.Trigger)                                {}
func (NopSignaler) TriggerCompleted(context.Context, types.Trigger, types.CompletionInstruction) {}

// Config is the subset of facade configuration Storage itself consults.
type Config struct {
	InstanceID         string
	MisfireThreshold   time.Duration
	TriggerLockTimeout time.Duration
}

// Storage is the core of the job store (spec §4.4). Every exported method
// assumes the caller already holds the distributed mutex (spec §4.3);
// Storage performs no locking of its own.
type Storage struct {
	kv     rkv.Client
	schema schema.Schema
	codec  codec.Serializer
	sig    Signaler
	cfg    Config
	log    logger.Logger
}

// New builds a Storage atop the given KV client, schema and serializer.
func New(kv rkv.Client, sch schema.Schema, ser codec.Serializer, sig Signaler, cfg Config, log logger.Logger) *Storage {
	if sig == nil {
		sig = NopSignaler{}
	}
	return &Storage{kv: kv, schema: sch, codec: ser, sig: sig, cfg: cfg, log: log}
}

func scoreOf(t *time.Time) float64 {
	if t == nil {
		return 0
	}
	return float64(t.UnixMilli())
}

// readJob loads a JobDetail's scalar fields and its data map.
func (s *Storage) readJob(ctx context.Context, key types.JobKey) (types.JobDetail, bool, error) {
	raw, ok, err := s.kv.HGet(ctx, s.schema.Job(key), "blob")
	if err != nil {
		return types.JobDetail{}, false, errors.Wrap(err, "read job")
	}
	if !ok {
		return types.JobDetail{}, false, nil
	}
	job, err := s.codec.DecodeJob([]byte(raw))
	if err != nil {
		return types.JobDetail{}, false, err
	}
	data, err := s.kv.HGetAll(ctx, s.schema.JobDataMap(key))
	if err != nil {
		return types.JobDetail{}, false, errors.Wrap(err, "read job data map")
	}
	if len(data) > 0 {
		job.Data = make(map[string]any, len(data))
		for k, v := range data {
			job.Data[k] = v
		}
	}
	return job, true, nil
}

// writeJob persists a JobDetail's scalar fields and its data map,
// replacing whatever data map entries previously existed.
func (s *Storage) writeJob(ctx context.Context, job types.JobDetail) error {
	blob, err := s.codec.EncodeJob(job)
	if err != nil {
		return err
	}
	if err := s.kv.HSet(ctx, s.schema.Job(job.Key), map[string]string{"blob": string(blob)}); err != nil {
		return errors.Wrap(err, "write job")
	}

	dataKey := s.schema.JobDataMap(job.Key)
	existing, err := s.kv.HGetAll(ctx, dataKey)
	if err != nil {
		return errors.Wrap(err, "read prior job data map")
	}
	if len(existing) > 0 {
		fields := make([]string, 0, len(existing))
		for f := range existing {
			fields = append(fields, f)
		}
		if err := s.kv.HDel(ctx, dataKey, fields...); err != nil {
			return errors.Wrap(err, "clear prior job data map")
		}
	}
	if len(job.Data) > 0 {
		fields := make(map[string]string, len(job.Data))
		for k, v := range job.Data {
			fields[k] = fmt.Sprintf("%v", v)
		}
		if err := s.kv.HSet(ctx, dataKey, fields); err != nil {
			return errors.Wrap(err, "write job data map")
		}
	}
	return nil
}

func (s *Storage) removeJobRecord(ctx context.Context, key types.JobKey) error {
	if err := s.kv.Del(ctx, s.schema.Job(key), s.schema.JobDataMap(key), s.schema.JobTriggers(key)); err != nil {
		return errors.Wrap(err, "remove job record")
	}
	if err := s.kv.SRem(ctx, s.schema.Jobs(), s.schema.EncodeJobKey(key)); err != nil {
		return errors.Wrap(err, "remove job from jobs index")
	}
	if err := s.kv.SRem(ctx, s.schema.JobGroup(key.Group), key.Name); err != nil {
		return errors.Wrap(err, "remove job from group index")
	}
	return s.pruneJobGroupIfEmpty(ctx, key.Group)
}

func (s *Storage) pruneJobGroupIfEmpty(ctx context.Context, group string) error {
	n, err := s.kv.SCard(ctx, s.schema.JobGroup(group))
	if err != nil {
		return errors.Wrap(err, "check job group cardinality")
	}
	if n == 0 {
		return errors.Wrap(s.kv.SRem(ctx, s.schema.JobGroups(), group), "prune empty job group")
	}
	return nil
}

func (s *Storage) pruneTriggerGroupIfEmpty(ctx context.Context, group string) error {
	n, err := s.kv.SCard(ctx, s.schema.TriggerGroup(group))
	if err != nil {
		return errors.Wrap(err, "check trigger group cardinality")
	}
	if n == 0 {
		return errors.Wrap(s.kv.SRem(ctx, s.schema.TriggerGroups(), group), "prune empty trigger group")
	}
	return nil
}

// readTrigger loads a Trigger's hash record.
func (s *Storage) readTrigger(ctx context.Context, key types.TriggerKey) (types.Trigger, bool, error) {
	raw, ok, err := s.kv.HGet(ctx, s.schema.Trigger(key), "blob")
	if err != nil {
		return types.Trigger{}, false, errors.Wrap(err, "read trigger")
	}
	if !ok {
		return types.Trigger{}, false, nil
	}
	tr, err := s.codec.DecodeTrigger([]byte(raw))
	if err != nil {
		return types.Trigger{}, false, err
	}
	return tr, true, nil
}

func (s *Storage) writeTrigger(ctx context.Context, tr types.Trigger) error {
	blob, err := s.codec.EncodeTrigger(tr)
	if err != nil {
		return err
	}
	return errors.Wrap(s.kv.HSet(ctx, s.schema.Trigger(tr.Key), map[string]string{"blob": string(blob)}), "write trigger")
}

func (s *Storage) removeTriggerRecord(ctx context.Context, tr types.Trigger) error {
	member := s.schema.EncodeTriggerKey(tr.Key)
	for _, state := range types.OrderedStates() {
		if err := s.kv.ZRem(ctx, s.schema.TriggerState(state), member); err != nil {
			return errors.Wrap(err, "remove trigger from state index")
		}
	}
	if err := s.kv.Del(ctx, s.schema.Trigger(tr.Key)); err != nil {
		return errors.Wrap(err, "remove trigger record")
	}
	if err := s.kv.SRem(ctx, s.schema.Triggers(), member); err != nil {
		return errors.Wrap(err, "remove trigger from triggers index")
	}
	if err := s.kv.SRem(ctx, s.schema.TriggerGroup(tr.Key.Group), tr.Key.Name); err != nil {
		return errors.Wrap(err, "remove trigger from group index")
	}
	if err := s.kv.SRem(ctx, s.schema.JobTriggers(tr.JobKey), member); err != nil {
		return errors.Wrap(err, "remove trigger from job index")
	}
	if tr.CalendarName != "" {
		if err := s.kv.SRem(ctx, s.schema.CalendarTriggers(tr.CalendarName), member); err != nil {
			return errors.Wrap(err, "remove trigger from calendar index")
		}
	}
	return s.pruneTriggerGroupIfEmpty(ctx, tr.Key.Group)
}

// moveTriggerState removes member from `from`'s sorted set (if non-empty)
// and adds it to `to` with the given score — the single primitive every
// state transition in §4.4.1 reduces to (invariant 1: exactly one state
// index membership at a time).
func (s *Storage) moveTriggerState(ctx context.Context, member string, from, to types.TriggerState, score float64) error {
	if from != "" {
		if err := s.kv.ZRem(ctx, s.schema.TriggerState(from), member); err != nil {
			return errors.Wrap(err, "leave trigger state")
		}
	}
	if to != "" {
		if err := s.kv.ZAdd(ctx, s.schema.TriggerState(to), member, score); err != nil {
			return errors.Wrap(err, "enter trigger state")
		}
	}
	return nil
}

// currentState scans every state index for member, returning StateNone if
// absent from all of them. Used by GetTriggerState rather than a
// redundant "state" field in the trigger hash, so the sorted sets remain
// the single source of truth.
func (s *Storage) currentState(ctx context.Context, key types.TriggerKey) (types.TriggerState, error) {
	member := s.schema.EncodeTriggerKey(key)
	for _, state := range types.OrderedStates() {
		_, ok, err := s.kv.ZScore(ctx, s.schema.TriggerState(state), member)
		if err != nil {
			return types.StateNone, errors.Wrap(err, "query trigger state")
		}
		if ok {
			return state, nil
		}
	}
	return types.StateNone, nil
}

func (s *Storage) readCalendar(ctx context.Context, name string) (*types.Calendar, bool, error) {
	raw, ok, err := s.kv.Get(ctx, s.schema.Calendar(name))
	if err != nil {
		return nil, false, errors.Wrap(err, "read calendar")
	}
	if !ok {
		return nil, false, nil
	}
	cal, err := s.codec.DecodeCalendar([]byte(raw))
	if err != nil {
		return nil, false, err
	}
	return &cal, true, nil
}

func (s *Storage) writeCalendar(ctx context.Context, cal types.Calendar) error {
	blob, err := s.codec.EncodeCalendar(cal)
	if err != nil {
		return err
	}
	return errors.Wrap(s.kv.Set(ctx, s.schema.Calendar(cal.Name), string(blob)), "write calendar")
}
