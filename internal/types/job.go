package types

// JobDetail describes a schedulable unit of work. Data is an opaque map;
// the store never interprets its contents, only persists and returns it.
// DisallowConcurrentExecution and PersistJobDataAfterExecution are
// first-class JobDetail semantics (spec §4.4.1/§4.4.4), not user data, so
// they get dedicated scalar fields rather than living inside Data — Data
// round-trips through the KV hash as strings, which would silently defeat
// a boolean flag stashed in it.
type JobDetail struct {
	Key                          JobKey
	JobClass                     string
	Description                  string
	Durable                      bool
	RequestsRecovery             bool
	DisallowConcurrentExecution  bool
	PersistJobDataAfterExecution bool
	Data                         map[string]any
}

// DisallowsConcurrentExecution reports whether the job forbids overlapping
// executions across the cluster (spec §4.4.1, §4.4.3).
func (j JobDetail) DisallowsConcurrentExecution() bool {
	return j.DisallowConcurrentExecution
}

// PersistsDataAfterExecution reports whether a mutated data map should be
// written back on TriggeredJobComplete (spec §4.4.4).
func (j JobDetail) PersistsDataAfterExecution() bool {
	return j.PersistJobDataAfterExecution
}

// Clone returns a deep-enough copy for safe mutation by callers that hold
// no other reference to Data.
func (j JobDetail) Clone() JobDetail {
	out := j
	if j.Data != nil {
		out.Data = make(map[string]any, len(j.Data))
		for k, v := range j.Data {
			out.Data[k] = v
		}
	}
	return out
}
