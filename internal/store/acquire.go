package store

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kvscheduler/quartzredis/internal/types"
)

// firedWire is the JSON shape of a FiredTrigger bookkeeping entry. It is
// a private implementation detail of crash recovery, not one of the
// domain objects spec §4.2's pluggable Serializer covers.
type firedWire struct {
	TriggerName    string    `json:"trigger_name"`
	TriggerGroup   string    `json:"trigger_group"`
	JobName        string    `json:"job_name"`
	JobGroup       string    `json:"job_group"`
	InstanceID     string    `json:"instance_id"`
	FireInstanceID string    `json:"fire_instance_id"`
	AcquiredAt     time.Time `json:"acquired_at"`
	FireTime       time.Time `json:"fire_time"`
}

func toFiredWire(ft types.FiredTrigger) firedWire {
	return firedWire{
		TriggerName:    ft.TriggerKey.Name,
		TriggerGroup:   ft.TriggerKey.Group,
		JobName:        ft.JobKey.Name,
		JobGroup:       ft.JobKey.Group,
		InstanceID:     ft.InstanceID,
		FireInstanceID: ft.FireInstanceID,
		AcquiredAt:     ft.AcquiredAt,
		FireTime:       ft.FireTime,
	}
}

func (w firedWire) toFired() types.FiredTrigger {
	return types.FiredTrigger{
		TriggerKey:     types.TriggerKey{Name: w.TriggerName, Group: w.TriggerGroup},
		JobKey:         types.JobKey{Name: w.JobName, Group: w.JobGroup},
		InstanceID:     w.InstanceID,
		FireInstanceID: w.FireInstanceID,
		AcquiredAt:     w.AcquiredAt,
		FireTime:       w.FireTime,
	}
}

// recordFired writes a new FiredTrigger bookkeeping entry at acquisition
// time (spec §4.4.2 step 6).
func (s *Storage) recordFired(ctx context.Context, tr types.Trigger, now time.Time) error {
	fireTime := now
	if tr.NextFireTime != nil {
		fireTime = *tr.NextFireTime
	}
	ft := types.FiredTrigger{
		TriggerKey:     tr.Key,
		JobKey:         tr.JobKey,
		InstanceID:     s.cfg.InstanceID,
		AcquiredAt:     now,
		FireInstanceID: uuid.NewString(),
		FireTime:       fireTime,
		State:          types.StateAcquired,
	}
	field := s.schema.FiredTriggerMember(tr.Key, ft.InstanceID, ft.FireInstanceID)
	b, err := json.Marshal(toFiredWire(ft))
	if err != nil {
		return errors.Wrap(err, "encode fired trigger")
	}
	if err := s.kv.HSet(ctx, s.schema.FiredTriggers(), map[string]string{field: string(b)}); err != nil {
		return errors.Wrap(err, "record fired trigger")
	}
	return errors.Wrap(s.kv.SAdd(ctx, s.schema.FiredTriggersByInstance(ft.InstanceID), field), "index fired trigger by instance")
}

// findFiredEntry scans the fired-triggers hash for the live record
// belonging to key. The set of live entries is bounded by in-flight
// acquisitions, so a linear scan over it costs nothing an index would
// meaningfully improve.
func (s *Storage) findFiredEntry(ctx context.Context, key types.TriggerKey) (field string, ft types.FiredTrigger, ok bool, err error) {
	all, err := s.kv.HGetAll(ctx, s.schema.FiredTriggers())
	if err != nil {
		return "", types.FiredTrigger{}, false, errors.Wrap(err, "scan fired triggers")
	}
	for f, raw := range all {
		var w firedWire
		if jsonErr := json.Unmarshal([]byte(raw), &w); jsonErr != nil {
			continue
		}
		rec := w.toFired()
		if rec.TriggerKey == key {
			return f, rec, true, nil
		}
	}
	return "", types.FiredTrigger{}, false, nil
}

// clearFired removes the bookkeeping entry for key, if any (a trigger
// leaving Acquired/Executing no longer needs orphan tracking).
func (s *Storage) clearFired(ctx context.Context, key types.TriggerKey) error {
	field, ft, ok, err := s.findFiredEntry(ctx, key)
	if err != nil || !ok {
		return err
	}
	if err := s.kv.HDel(ctx, s.schema.FiredTriggers(), field); err != nil {
		return errors.Wrap(err, "clear fired trigger")
	}
	return errors.Wrap(s.kv.SRem(ctx, s.schema.FiredTriggersByInstance(ft.InstanceID), field), "unindex fired trigger by instance")
}

// recoverOrphans implements spec §4.4.7: any FiredTrigger whose
// acquire-timestamp is older than triggerLockTimeout is assumed abandoned
// by a dead scheduler and returned to Waiting/Paused; jobs requesting
// recovery get a synthetic immediate-fire trigger.
func (s *Storage) recoverOrphans(ctx context.Context) error {
	all, err := s.kv.HGetAll(ctx, s.schema.FiredTriggers())
	if err != nil {
		return errors.Wrap(err, "scan fired triggers for recovery")
	}
	now := time.Now()
	for field, raw := range all {
		var w firedWire
		if err := json.Unmarshal([]byte(raw), &w); err != nil {
			// corrupt bookkeeping entry: drop it, nothing more we can do.
			_ = s.kv.HDel(ctx, s.schema.FiredTriggers(), field)
			continue
		}
		rec := w.toFired()
		if now.Sub(rec.AcquiredAt) < s.cfg.TriggerLockTimeout {
			continue
		}
		if err := s.recoverOrphan(ctx, rec); err != nil {
			return err
		}
		if err := s.kv.HDel(ctx, s.schema.FiredTriggers(), field); err != nil {
			return errors.Wrap(err, "clear recovered fired trigger")
		}
		if err := s.kv.SRem(ctx, s.schema.FiredTriggersByInstance(rec.InstanceID), field); err != nil {
			return errors.Wrap(err, "unindex recovered fired trigger")
		}
	}
	return nil
}

func (s *Storage) recoverOrphan(ctx context.Context, rec types.FiredTrigger) error {
	tr, ok, err := s.readTrigger(ctx, rec.TriggerKey)
	if err != nil || !ok {
		return err
	}

	state, err := s.currentState(ctx, tr.Key)
	if err != nil {
		return err
	}
	paused, err := s.groupPaused(ctx, tr.Key.Group, tr.JobKey.Group)
	if err != nil {
		return err
	}
	target := types.StateWaiting
	if paused {
		target = types.StatePaused
	}
	if tr.NextFireTime == nil {
		target = types.StateCompleted
	}
	if err := s.moveTriggerState(ctx, s.schema.EncodeTriggerKey(tr.Key), state, target, scoreOf(tr.NextFireTime)); err != nil {
		return err
	}

	job, ok, err := s.readJob(ctx, tr.JobKey)
	if err != nil || !ok || !job.RequestsRecovery {
		return err
	}
	return s.enqueueRecoveryTrigger(ctx, tr)
}

// enqueueRecoveryTrigger clones tr under a fresh name with an immediate
// fire time, per spec §4.4.7's "enqueue a synthetic recovery trigger with
// a fresh immediate fire-time".
func (s *Storage) enqueueRecoveryTrigger(ctx context.Context, tr types.Trigger) error {
	now := time.Now()
	rec := tr.Clone()
	rec.Key = types.TriggerKey{Name: tr.Key.Name + "-recovery-" + uuid.NewString(), Group: tr.Key.Group}
	rec.PreviousFireTime = nil
	rec.NextFireTime = &now

	if err := s.writeTrigger(ctx, rec); err != nil {
		return err
	}
	return s.indexNewTrigger(ctx, rec)
}

// acquisitionCandidate pairs a decoded trigger with the member string its
// state-index entry uses, so the tie-break sort need not re-encode keys.
type acquisitionCandidate struct {
	member string
	tr     types.Trigger
}

// AcquireNextTriggers implements spec §4.4.2 in full: orphan recovery,
// upper-bound computation, misfire application, and the (score, priority
// desc, key asc) tie-break.
func (s *Storage) AcquireNextTriggers(ctx context.Context, noLaterThan time.Time, maxCount int, timeWindow time.Duration) ([]types.Trigger, error) {
	if err := s.recoverOrphans(ctx); err != nil {
		return nil, err
	}

	now := time.Now()
	upper := noLaterThan
	if alt := now.Add(timeWindow); alt.After(upper) {
		upper = alt
	}

	scored, err := s.kv.ZRangeByScore(ctx, s.schema.TriggerState(types.StateWaiting), float64(upper.UnixMilli()))
	if err != nil {
		return nil, errors.Wrap(err, "scan waiting triggers")
	}

	candidates := make([]acquisitionCandidate, 0, len(scored))
	for _, sm := range scored {
		key, err := s.schema.DecodeTriggerKey(sm.Member)
		if err != nil {
			continue
		}
		tr, ok, err := s.readTrigger(ctx, key)
		if err != nil {
			if err := s.moveTriggerState(ctx, sm.Member, types.StateWaiting, types.StateError, sm.Score); err != nil {
				return nil, err
			}
			continue
		}
		if !ok {
			continue
		}

		blocked, err := s.jobIsBlocked(ctx, tr.JobKey)
		if err != nil {
			return nil, err
		}
		if blocked {
			continue
		}

		tr, err = s.resolveMisfireIfDue(ctx, tr)
		if err != nil {
			return nil, err
		}
		if tr.NextFireTime == nil {
			if err := s.moveTriggerState(ctx, sm.Member, types.StateWaiting, types.StateCompleted, 0); err != nil {
				return nil, err
			}
			continue
		}
		if tr.NextFireTime.After(upper) {
			if err := s.moveTriggerState(ctx, sm.Member, types.StateWaiting, types.StateWaiting, scoreOf(tr.NextFireTime)); err != nil {
				return nil, err
			}
			continue
		}

		candidates = append(candidates, acquisitionCandidate{member: sm.Member, tr: tr})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].tr, candidates[j].tr
		at, bt := scoreOf(a.NextFireTime), scoreOf(b.NextFireTime)
		if at != bt {
			return at < bt
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.Key.String() < b.Key.String()
	})

	if maxCount > 0 && len(candidates) > maxCount {
		candidates = candidates[:maxCount]
	}

	out := make([]types.Trigger, 0, len(candidates))
	for _, c := range candidates {
		if err := s.moveTriggerState(ctx, c.member, types.StateWaiting, types.StateAcquired, scoreOf(c.tr.NextFireTime)); err != nil {
			return nil, err
		}
		if err := s.recordFired(ctx, c.tr, now); err != nil {
			return nil, err
		}
		out = append(out, c.tr)
	}
	return out, nil
}

// jobIsBlocked reports whether key names a job currently executing under
// @DisallowConcurrentExecution (spec §4.4.2 step 4).
func (s *Storage) jobIsBlocked(ctx context.Context, key types.JobKey) (bool, error) {
	ok, err := s.kv.SIsMember(ctx, s.schema.BlockedJobs(), s.schema.EncodeJobKey(key))
	return ok, errors.Wrap(err, "check blocked jobs")
}

// ReleaseAcquiredTrigger returns an Acquired trigger to Waiting without
// firing it (spec §4.4.1's Acquired→Waiting edge), e.g. when a scheduler
// decides not to use what it acquired.
func (s *Storage) ReleaseAcquiredTrigger(ctx context.Context, key types.TriggerKey) error {
	tr, ok, err := s.readTrigger(ctx, key)
	if err != nil || !ok {
		return err
	}
	state, err := s.currentState(ctx, key)
	if err != nil {
		return err
	}
	if state != types.StateAcquired {
		return nil
	}
	if err := s.moveTriggerState(ctx, s.schema.EncodeTriggerKey(key), types.StateAcquired, types.StateWaiting, scoreOf(tr.NextFireTime)); err != nil {
		return err
	}
	return s.clearFired(ctx, key)
}
