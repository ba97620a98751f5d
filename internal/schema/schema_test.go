package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvscheduler/quartzredis/internal/types"
)

func TestJobKeyRoundTrip(t *testing.T) {
	s := New("quartzredis", ":")
	key := types.JobKey{Name: "send-report", Group: "reports"}

	member := s.EncodeJobKey(key)
	assert.Equal(t, "reports:send-report", member)

	got, err := s.DecodeJobKey(member)
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestTriggerKeyRoundTrip(t *testing.T) {
	s := New("quartzredis", ":")
	key := types.TriggerKey{Name: "nightly", Group: "reports"}

	member := s.EncodeTriggerKey(key)
	got, err := s.DecodeTriggerKey(member)
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestDecodeJobKey_Malformed(t *testing.T) {
	s := New("quartzredis", ":")
	_, err := s.DecodeJobKey("no-delimiter-here")
	assert.Error(t, err)
}

func TestJoin_PrefixesEveryKey(t *testing.T) {
	s := New("quartzredis", ":")
	assert.Equal(t, "quartzredis:jobs", s.Jobs())
	assert.Equal(t, "quartzredis:trigger_state:waiting", s.TriggerState(types.StateWaiting))
	assert.Equal(t, "quartzredis:lock", s.Lock())
}

func TestJoin_EmptyPrefix(t *testing.T) {
	s := New("", ":")
	assert.Equal(t, "jobs", s.Jobs())
}

func TestNew_DefaultsDelimiter(t *testing.T) {
	s := New("quartzredis", "")
	assert.Equal(t, DefaultDelimiter, s.Delimiter())
}

func TestFiredTriggerMember_Composes(t *testing.T) {
	s := New("quartzredis", ":")
	key := types.TriggerKey{Name: "nightly", Group: "reports"}
	member := s.FiredTriggerMember(key, "instance-a", "fire-1")
	assert.Equal(t, "reports:nightly|instance-a|fire-1", member)
}
