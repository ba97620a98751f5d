package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvscheduler/quartzredis/internal/rkv/fake"
	"github.com/kvscheduler/quartzredis/logger"
)

func TestLock_AcquireAndUnlock(t *testing.T) {
	ctx := context.Background()
	m := New(fake.New(), "lock", "instance-a", time.Second, logger.New("lock-test"))

	tok, err := m.Lock(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	m.Unlock(ctx, tok)
}

func TestLock_BlocksASecondHolderUntilReleased(t *testing.T) {
	ctx := context.Background()
	client := fake.New()
	m := New(client, "lock", "instance-a", time.Second, logger.New("lock-test"))

	tok, err := m.Lock(ctx)
	require.NoError(t, err)

	acquired := make(chan string, 1)
	go func() {
		second, err := m.Lock(context.Background())
		if err == nil {
			acquired <- second
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock call acquired before the first was released")
	case <-time.After(50 * time.Millisecond):
	}

	m.Unlock(ctx, tok)

	select {
	case second := <-acquired:
		assert.NotEmpty(t, second)
	case <-time.After(time.Second):
		t.Fatal("second Lock call never acquired after release")
	}
}

func TestLock_RespectsContextCancellation(t *testing.T) {
	client := fake.New()
	m := New(client, "lock", "instance-a", time.Second, logger.New("lock-test"))

	_, err := m.Lock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = m.Lock(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnlock_StaleTokenIsNoop(t *testing.T) {
	ctx := context.Background()
	client := fake.New()
	m := New(client, "lock", "instance-a", time.Second, logger.New("lock-test"))

	_, err := m.Lock(ctx)
	require.NoError(t, err)

	m.Unlock(ctx, "not-the-real-token")

	value, exists, err := client.Get(ctx, "lock")
	require.NoError(t, err)
	require.True(t, exists)
	assert.NotEmpty(t, value)
}
