package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/kvscheduler/quartzredis/internal/types"
)

// CheckJobExists reports whether key names a stored job.
func (s *Storage) CheckJobExists(ctx context.Context, key types.JobKey) (bool, error) {
	ok, err := s.kv.SIsMember(ctx, s.schema.Jobs(), s.schema.EncodeJobKey(key))
	return ok, errors.Wrap(err, "check job exists")
}

// RetrieveJob returns the stored job, or ErrObjectNotFound.
func (s *Storage) RetrieveJob(ctx context.Context, key types.JobKey) (types.JobDetail, error) {
	job, ok, err := s.readJob(ctx, key)
	if err != nil {
		return types.JobDetail{}, err
	}
	if !ok {
		return types.JobDetail{}, notFound("job " + key.String())
	}
	return job, nil
}

// StoreJob persists a new job, or overwrites an existing one when replace
// is true (spec §3's JobDetail lifecycle).
func (s *Storage) StoreJob(ctx context.Context, job types.JobDetail, replace bool) error {
	exists, err := s.CheckJobExists(ctx, job.Key)
	if err != nil {
		return err
	}
	if exists && !replace {
		return alreadyExists("job " + job.Key.String())
	}

	if err := s.writeJob(ctx, job); err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := s.kv.SAdd(ctx, s.schema.Jobs(), s.schema.EncodeJobKey(job.Key)); err != nil {
		return errors.Wrap(err, "index job: jobs set")
	}
	if err := s.kv.SAdd(ctx, s.schema.JobGroup(job.Key.Group), job.Key.Name); err != nil {
		return errors.Wrap(err, "index job: group set")
	}
	return errors.Wrap(s.kv.SAdd(ctx, s.schema.JobGroups(), job.Key.Group), "index job: groups set")
}

// StoreJobAndTrigger persists a job and a trigger bound to it in one call
// (spec §6). replace governs both writes.
func (s *Storage) StoreJobAndTrigger(ctx context.Context, job types.JobDetail, tr types.Trigger, replace bool) error {
	if err := s.StoreJob(ctx, job, replace); err != nil {
		return err
	}
	return s.StoreTrigger(ctx, tr, replace)
}

// JobTriggerPair batches one job with its trigger for StoreJobsAndTriggers.
type JobTriggerPair struct {
	Job     types.JobDetail
	Trigger types.Trigger
}

// StoreJobsAndTriggers persists a batch of (job, trigger) pairs under
// uniform replace semantics (spec §6's `StoreJobsAndTriggers(batch,
// replace)`). It is not atomic beyond what storing each pair sequentially
// under the caller's held mutex already gives it — spec §1's Non-goals
// rule out multi-key transactions beyond the mutex.
func (s *Storage) StoreJobsAndTriggers(ctx context.Context, batch []JobTriggerPair, replace bool) error {
	for _, pair := range batch {
		if err := s.StoreJobAndTrigger(ctx, pair.Job, pair.Trigger, replace); err != nil {
			return err
		}
	}
	return nil
}

// RemoveJob deletes a job and cascades to every trigger bound to it
// (invariant 4). Returns whether a job was actually present to remove.
func (s *Storage) RemoveJob(ctx context.Context, key types.JobKey) (bool, error) {
	exists, err := s.CheckJobExists(ctx, key)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	members, err := s.kv.SMembers(ctx, s.schema.JobTriggers(key))
	if err != nil {
		return false, errors.Wrap(err, "list job triggers for cascade")
	}
	for _, m := range members {
		tk, err := s.schema.DecodeTriggerKey(m)
		if err != nil {
			return false, err
		}
		tr, ok, err := s.readTrigger(ctx, tk)
		if err != nil {
			return false, err
		}
		if ok {
			if err := s.removeTriggerRecord(ctx, tr); err != nil {
				return false, err
			}
		}
	}

	if err := s.removeJobRecord(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

// RemoveJobs removes every named job, returning whether all were present.
func (s *Storage) RemoveJobs(ctx context.Context, keys []types.JobKey) (bool, error) {
	all := true
	for _, k := range keys {
		ok, err := s.RemoveJob(ctx, k)
		if err != nil {
			return false, err
		}
		all = all && ok
	}
	return all, nil
}

// GetTriggersForJob returns every trigger currently bound to job.
func (s *Storage) GetTriggersForJob(ctx context.Context, key types.JobKey) ([]types.Trigger, error) {
	members, err := s.kv.SMembers(ctx, s.schema.JobTriggers(key))
	if err != nil {
		return nil, errors.Wrap(err, "list job triggers")
	}
	out := make([]types.Trigger, 0, len(members))
	for _, m := range members {
		tk, err := s.schema.DecodeTriggerKey(m)
		if err != nil {
			return nil, err
		}
		tr, ok, err := s.readTrigger(ctx, tk)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, tr)
		}
	}
	return out, nil
}
