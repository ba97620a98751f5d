// Package schema implements spec §4.1: a pure function mapping domain
// identities to KV key strings with a configurable prefix and delimiter,
// and back. It holds no state beyond that configuration and performs no
// I/O.
package schema

import (
	"fmt"
	"strings"

	"github.com/kvscheduler/quartzredis/internal/types"
)

// DefaultDelimiter is used when Schema is constructed with an empty one.
const DefaultDelimiter = ":"

// Schema derives KV key strings for every entity the store persists.
type Schema struct {
	prefix    string
	delimiter string
}

// New builds a Schema. delimiter must not occur inside job/trigger/group
// names (spec §4.1's documented constraint). Neither this package nor
// internal/store rejects such names; DecodeJobKey/DecodeTriggerKey split
// a member at the first delimiter.
func New(prefix, delimiter string) Schema {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	return Schema{prefix: prefix, delimiter: delimiter}
}

// Delimiter returns the configured key delimiter.
func (s Schema) Delimiter() string { return s.delimiter }

func (s Schema) join(parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if s.prefix != "" {
		all = append(all, s.prefix)
	}
	all = append(all, parts...)
	return strings.Join(all, s.delimiter)
}

// EncodeJobKey renders a JobKey as a sorted-set/unordered-set member.
func (s Schema) EncodeJobKey(k types.JobKey) string {
	return k.Group + s.delimiter + k.Name
}

// DecodeJobKey is the inverse of EncodeJobKey.
func (s Schema) DecodeJobKey(member string) (types.JobKey, error) {
	group, name, ok := strings.Cut(member, s.delimiter)
	if !ok {
		return types.JobKey{}, fmt.Errorf("schema: malformed job key member %q", member)
	}
	return types.JobKey{Group: group, Name: name}, nil
}

// EncodeTriggerKey renders a TriggerKey as a sorted-set/unordered-set member.
func (s Schema) EncodeTriggerKey(k types.TriggerKey) string {
	return k.Group + s.delimiter + k.Name
}

// DecodeTriggerKey is the inverse of EncodeTriggerKey.
func (s Schema) DecodeTriggerKey(member string) (types.TriggerKey, error) {
	group, name, ok := strings.Cut(member, s.delimiter)
	if !ok {
		return types.TriggerKey{}, fmt.Errorf("schema: malformed trigger key member %q", member)
	}
	return types.TriggerKey{Group: group, Name: name}, nil
}

// Job is the hash key storing a JobDetail's fields.
func (s Schema) Job(k types.JobKey) string { return s.join("job", k.Group, k.Name) }

// JobDataMap is the hash key storing a job's opaque data map entries.
func (s Schema) JobDataMap(k types.JobKey) string {
	return s.join("job_data_map", k.Group, k.Name)
}

// Trigger is the hash key storing a Trigger's common and type-specific fields.
func (s Schema) Trigger(k types.TriggerKey) string { return s.join("trigger", k.Group, k.Name) }

// Calendar is the string key storing a calendar's opaque encoded payload.
func (s Schema) Calendar(name string) string { return s.join("calendar", name) }

// JobGroup is the unordered set of job names within a group.
func (s Schema) JobGroup(group string) string { return s.join("job_group", group) }

// TriggerGroup is the unordered set of trigger names within a group.
func (s Schema) TriggerGroup(group string) string { return s.join("trigger_group", group) }

// Jobs is the unordered set of every job key.
func (s Schema) Jobs() string { return s.join("jobs") }

// Triggers is the unordered set of every trigger key.
func (s Schema) Triggers() string { return s.join("triggers") }

// JobGroups is the unordered set of job group names.
func (s Schema) JobGroups() string { return s.join("job_groups") }

// TriggerGroups is the unordered set of trigger group names.
func (s Schema) TriggerGroups() string { return s.join("trigger_groups") }

// Calendars is the unordered set of calendar names.
func (s Schema) Calendars() string { return s.join("calendars") }

// PausedJobGroups is the unordered set of paused job group names.
func (s Schema) PausedJobGroups() string { return s.join("paused_job_groups") }

// PausedTriggerGroups is the unordered set of paused trigger group names.
func (s Schema) PausedTriggerGroups() string { return s.join("paused_trigger_groups") }

// BlockedJobs is the unordered set of JobKeys currently executing under
// @DisallowConcurrentExecution.
func (s Schema) BlockedJobs() string { return s.join("blocked_jobs") }

// JobTriggers is the unordered set of TriggerKeys belonging to a job.
func (s Schema) JobTriggers(k types.JobKey) string {
	return s.join("job_triggers", k.Group, k.Name)
}

// CalendarTriggers is the unordered set of TriggerKeys referencing a calendar.
func (s Schema) CalendarTriggers(name string) string {
	return s.join("calendar_triggers", name)
}

// TriggerState is the sorted set (score = next-fire-time ms) for one
// trigger state.
func (s Schema) TriggerState(state types.TriggerState) string {
	return s.join("trigger_state", string(state))
}

// FiredTriggers is the hash of live FiredTrigger records, keyed by the
// "<TriggerKey>|<instanceId>|<fireInstanceId>" field FiredTriggerMember
// renders.
func (s Schema) FiredTriggers() string { return s.join("fired_triggers") }

// FiredTriggersByInstance is the auxiliary set used for an orphan scan
// scoped to one scheduler instance id.
func (s Schema) FiredTriggersByInstance(instanceID string) string {
	return s.join("fired_triggers_by_instance", instanceID)
}

// Lock is the distributed mutex key.
func (s Schema) Lock() string { return s.join("lock") }

// FiredTriggerMember renders the fired_triggers hash field for one record.
func (s Schema) FiredTriggerMember(k types.TriggerKey, instanceID, fireInstanceID string) string {
	return s.EncodeTriggerKey(k) + "|" + instanceID + "|" + fireInstanceID
}
