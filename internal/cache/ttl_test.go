package cache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIntCache(ttl time.Duration) *TTL[int, string] {
	return New[int, string](100, ttl, strconv.Itoa)
}

func TestGetOrComputeCachesWhenAllowed(t *testing.T) {
	c := newIntCache(time.Minute)
	var calls atomic.Int32

	fn := func(context.Context) (string, bool, error) {
		calls.Add(1)
		return "v", true, nil
	}

	v, hit, err := c.GetOrCompute(context.Background(), 1, fn)
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.False(t, hit)

	v, hit, err = c.GetOrCompute(context.Background(), 1, fn)
	require.NoError(t, err)
	assert.Equal(t, "v", v)
	assert.True(t, hit)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrComputeSkipsUncacheable(t *testing.T) {
	c := newIntCache(time.Minute)
	var calls atomic.Int32

	fn := func(context.Context) (string, bool, error) {
		calls.Add(1)
		return "guess", false, nil
	}

	for range 3 {
		v, hit, err := c.GetOrCompute(context.Background(), 7, fn)
		require.NoError(t, err)
		assert.Equal(t, "guess", v)
		assert.False(t, hit)
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, c.Len())
}

func TestGetOrComputeErrorsAreNotCached(t *testing.T) {
	c := newIntCache(time.Minute)
	boom := errors.New("boom")

	_, _, err := c.GetOrCompute(context.Background(), 1, func(context.Context) (string, bool, error) { return "", true, boom })
	assert.ErrorIs(t, err, boom)

	v, hit, err := c.GetOrCompute(context.Background(), 1, func(context.Context) (string, bool, error) { return "ok", true, nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.False(t, hit)
}

func TestGetOrComputeCoalescesConcurrentMisses(t *testing.T) {
	c := newIntCache(time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _, err := c.GetOrCompute(context.Background(), 42, func(context.Context) (string, bool, error) {
				calls.Add(1)
				<-release
				return "shared", true, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, "shared", v)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, calls.Load(), int32(2))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestGetOrComputeCallerCancelDoesNotFailOthers(t *testing.T) {
	c := newIntCache(time.Minute)
	started := make(chan struct{})
	release := make(chan struct{})

	fn := func(ctx context.Context) (string, bool, error) {
		close(started)
		select {
		case <-release:
			return "shared", true, nil
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := c.GetOrCompute(first, 5, fn)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		v   string
		err error
	}
	second := make(chan outcome, 1)
	go func() {
		v, _, err := c.GetOrCompute(context.Background(), 5, fn)
		second <- outcome{v, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, "shared", got.v)

	v, ok := c.Get(5)
	require.True(t, ok)
	assert.Equal(t, "shared", v)
}

func TestEntriesExpire(t *testing.T) {
	c := newIntCache(30 * time.Millisecond)
	c.Set(1, "a")

	v, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a", v)

	assert.Eventually(t, func() bool {
		_, ok := c.Get(1)
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestClear(t *testing.T) {
	c := newIntCache(time.Minute)
	c.Set(1, "a")
	c.Set(2, "b")
	assert.Equal(t, 2, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())
	_, ok := c.Get(1)
	assert.False(t, ok)
}
