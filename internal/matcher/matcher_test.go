package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvscheduler/quartzredis/internal/types"
)

func TestCompile_MatchAny(t *testing.T) {
	m, err := Compile(types.GroupAny())
	require.NoError(t, err)
	assert.True(t, m.Matches("anything"))
	assert.True(t, m.Matches(""))
}

func TestCompile_Equals(t *testing.T) {
	m, err := Compile(types.GroupEquals("billing"))
	require.NoError(t, err)
	assert.True(t, m.Matches("billing"))
	assert.False(t, m.Matches("billing-2"))
}

func TestCompile_StartsWith(t *testing.T) {
	m, err := Compile(types.GroupStartsWith("ingest-"))
	require.NoError(t, err)
	assert.True(t, m.Matches("ingest-east"))
	assert.False(t, m.Matches("east-ingest"))
}

func TestCompile_EndsWith(t *testing.T) {
	m, err := Compile(types.GroupEndsWith("-prod"))
	require.NoError(t, err)
	assert.True(t, m.Matches("billing-prod"))
	assert.False(t, m.Matches("prod-billing"))
}

func TestCompile_Contains(t *testing.T) {
	m, err := Compile(types.GroupContains("report"))
	require.NoError(t, err)
	assert.True(t, m.Matches("nightly-report-job"))
	assert.False(t, m.Matches("nightly-job"))
}

func TestCompile_UnknownOperator(t *testing.T) {
	_, err := Compile(types.GroupMatcher{Operator: "bogus"})
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	m, err := Compile(types.GroupStartsWith("team-"))
	require.NoError(t, err)
	got := m.Filter([]string{"team-a", "team-b", "other", "team-c"})
	assert.Equal(t, []string{"team-a", "team-b", "team-c"}, got)
}

func TestMatches_NilReceiver(t *testing.T) {
	var m *Matcher
	assert.True(t, m.Matches("anything"))
}
