// Package types holds the domain model shared by the schema, store and
// facade layers: job/trigger/calendar identities, the trigger state
// machine, and the transient FiredTrigger record used for crash recovery.
package types

import "fmt"

// JobKey identifies a JobDetail by (name, group). Keys compare structurally.
type JobKey struct {
	Name  string
	Group string
}

// String renders the display form "group.name". Set and sorted-set
// members use the schema's configured delimiter instead
// (schema.EncodeJobKey), not this form.
func (k JobKey) String() string {
	return fmt.Sprintf("%s.%s", k.Group, k.Name)
}

// TriggerKey identifies a Trigger by (name, group).
type TriggerKey struct {
	Name  string
	Group string
}

func (k TriggerKey) String() string {
	return fmt.Sprintf("%s.%s", k.Group, k.Name)
}

// DefaultGroup is used when a caller does not specify a group name.
const DefaultGroup = "DEFAULT"
