package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardvault/internal/cache"
	"cardvault/internal/logging"
)

type fakeSweeper struct {
	mu    sync.Mutex
	days  []time.Time
	count int
	err   error
}

func (f *fakeSweeper) Run(_ context.Context, today time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.days = append(f.days, today)
	return f.count, f.err
}

func (f *fakeSweeper) runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.days)
}

type brokenLocker struct{}

func (brokenLocker) TryLock(context.Context, string, time.Duration) (*cache.Lock, bool, error) {
	return nil, false, errors.New("connection refused")
}

func newLocker(t *testing.T) (*cache.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return cache.NewFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()})), mr
}

func TestExpiryJob_RunOnce(t *testing.T) {
	locker, mr := newLocker(t)
	sweeper := &fakeSweeper{count: 3}
	job := NewExpiryJob(sweeper, locker, logging.Discard())
	fixed := time.Date(2025, 3, 1, 0, 0, 5, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	n, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []time.Time{fixed}, sweeper.days)
	assert.False(t, mr.Exists(sweepLockPrefix+"2025-03-01"), "lock is released after the run")
}

func TestExpiryJob_SkipsWhenLockHeld(t *testing.T) {
	locker, mr := newLocker(t)
	sweeper := &fakeSweeper{}
	job := NewExpiryJob(sweeper, locker, logging.Discard())
	job.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, mr.Set(sweepLockPrefix+"2025-03-01", "other-instance"))

	n, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, sweeper.runs())

	got, err := mr.Get(sweepLockPrefix + "2025-03-01")
	require.NoError(t, err)
	assert.Equal(t, "other-instance", got, "a foreign lock is never released")
}

func TestExpiryJob_SweepsWithoutLockStore(t *testing.T) {
	sweeper := &fakeSweeper{count: 1}

	n, err := NewExpiryJob(sweeper, brokenLocker{}, logging.Discard()).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = NewExpiryJob(sweeper, nil, logging.Discard()).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, sweeper.runs())
}

func TestExpiryJob_PropagatesSweepError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewExpiryJob(&fakeSweeper{err: boom}, nil, logging.Discard()).RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestScheduler_New(t *testing.T) {
	job := NewExpiryJob(&fakeSweeper{}, nil, logging.Discard())

	_, err := New("not a schedule", job, logging.Discard())
	assert.Error(t, err)

	s, err := New("0 0 0 * * *", job, logging.Discard())
	require.NoError(t, err)
	s.Start()
	s.Stop(context.Background())
}

func TestScheduler_Ticks(t *testing.T) {
	sweeper := &fakeSweeper{}
	s, err := New("* * * * * *", NewExpiryJob(sweeper, nil, logging.Discard()), logging.Discard())
	require.NoError(t, err)

	s.Start()
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return sweeper.runs() > 0 }, 3*time.Second, 50*time.Millisecond)
}
