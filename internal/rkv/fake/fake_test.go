package fake

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetNX_OnlySetsOnce(t *testing.T) {
	ctx := context.Background()
	c := New()

	ok, err := c.SetNX(ctx, "lock", "tok-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", "tok-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	v, exists, err := c.Get(ctx, "lock")
	require.NoError(t, err)
	require.True(t, exists)
	assert.Equal(t, "tok-1", v)
}

func TestSetNX_ExpiresPastTTL(t *testing.T) {
	ctx := context.Background()
	c := New()
	at := time.Now()
	c.SetClock(func() time.Time { return at })

	ok, err := c.SetNX(ctx, "lock", "tok-1", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	c.SetClock(func() time.Time { return at.Add(2 * time.Second) })
	ok, err = c.SetNX(ctx, "lock", "tok-2", time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "key past its TTL should be re-acquirable")
}

func TestDelIfMatch_OnlyDeletesOnMatch(t *testing.T) {
	ctx := context.Background()
	c := New()
	_, err := c.SetNX(ctx, "lock", "tok-1", time.Minute)
	require.NoError(t, err)

	ok, err := c.DelIfMatch(ctx, "lock", "wrong-token")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.DelIfMatch(ctx, "lock", "tok-1")
	require.NoError(t, err)
	assert.True(t, ok)

	_, exists, err := c.Get(ctx, "lock")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestZRangeByScore_OrdersByScoreThenMember(t *testing.T) {
	ctx := context.Background()
	c := New()
	require.NoError(t, c.ZAdd(ctx, "trigger_state:waiting", "b.trigger", 20))
	require.NoError(t, c.ZAdd(ctx, "trigger_state:waiting", "a.trigger", 10))
	require.NoError(t, c.ZAdd(ctx, "trigger_state:waiting", "c.trigger", 10))
	require.NoError(t, c.ZAdd(ctx, "trigger_state:waiting", "d.trigger", 30))

	got, err := c.ZRangeByScore(ctx, "trigger_state:waiting", 20)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a.trigger", got[0].Member)
	assert.Equal(t, "c.trigger", got[1].Member)
	assert.Equal(t, "b.trigger", got[2].Member)
}

func TestHashAndSetPrimitives(t *testing.T) {
	ctx := context.Background()
	c := New()

	require.NoError(t, c.HSet(ctx, "job:default.report", map[string]string{"blob": "payload"}))
	v, ok, err := c.HGet(ctx, "job:default.report", "blob")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", v)

	require.NoError(t, c.SAdd(ctx, "jobs", "default.report"))
	isMember, err := c.SIsMember(ctx, "jobs", "default.report")
	require.NoError(t, err)
	assert.True(t, isMember)

	require.NoError(t, c.SRem(ctx, "jobs", "default.report"))
	card, err := c.SCard(ctx, "jobs")
	require.NoError(t, err)
	assert.Zero(t, card)
}

func TestDel_RemovesAcrossAllTypes(t *testing.T) {
	ctx := context.Background()
	c := New()
	require.NoError(t, c.HSet(ctx, "k", map[string]string{"f": "v"}))
	require.NoError(t, c.SAdd(ctx, "k", "m"))
	require.NoError(t, c.ZAdd(ctx, "k", "m", 1))
	require.NoError(t, c.Set(ctx, "k", "v"))

	require.NoError(t, c.Del(ctx, "k"))

	_, ok, _ := c.HGet(ctx, "k", "f")
	assert.False(t, ok)
	isMember, _ := c.SIsMember(ctx, "k", "m")
	assert.False(t, isMember)
	_, ok, _ = c.ZScore(ctx, "k", "m")
	assert.False(t, ok)
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}
