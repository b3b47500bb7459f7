package template

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls atomic.Int64
	delay time.Duration
	err   error
}

func (s *countingSource) Fetch(_ context.Context, ref string) ([]byte, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	return []byte("template:" + ref), nil
}

func TestCachingSource_HitsAndCopies(t *testing.T) {
	next := &countingSource{}
	cache := NewCachingSource(next, 4, 0)

	first, err := cache.Fetch(context.Background(), "a.pdf")
	require.NoError(t, err)
	first[0] = 'X'

	second, err := cache.Fetch(context.Background(), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "template:a.pdf", string(second), "callers must not see each other's writes")

	assert.Equal(t, int64(1), next.calls.Load())
	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 50.0, stats.HitRate)
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 4, stats.Capacity)
}

func TestCachingSource_EvictsLeastRecentlyUsed(t *testing.T) {
	next := &countingSource{}
	cache := NewCachingSource(next, 2, 0)
	ctx := context.Background()

	for _, ref := range []string{"a", "b", "a", "c"} {
		_, err := cache.Fetch(ctx, ref)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, int64(3), next.calls.Load())

	// b was least recently used when c arrived
	_, err := cache.Fetch(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(4), next.calls.Load())

	_, err = cache.Fetch(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(4), next.calls.Load())
}

func TestCachingSource_TTL(t *testing.T) {
	next := &countingSource{}
	cache := NewCachingSource(next, 2, time.Minute)
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	_, err := cache.Fetch(context.Background(), "a")
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = cache.Fetch(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), next.calls.Load())

	now = now.Add(2 * time.Minute)
	_, err = cache.Fetch(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.calls.Load())
}

func TestCachingSource_ErrorsAreNotCached(t *testing.T) {
	boom := errors.New("boom")
	next := &countingSource{err: boom}
	cache := NewCachingSource(next, 2, 0)

	for i := 0; i < 2; i++ {
		_, err := cache.Fetch(context.Background(), "a")
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, int64(2), next.calls.Load())
	assert.Zero(t, cache.Len())
}

func TestCachingSource_Invalidate(t *testing.T) {
	next := &countingSource{}
	cache := NewCachingSource(next, 2, 0)

	_, err := cache.Fetch(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, cache.Invalidate("a"))
	assert.False(t, cache.Invalidate("a"))

	_, err = cache.Fetch(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.calls.Load())
}

func TestCachingSource_ConcurrentMissesShareFetch(t *testing.T) {
	next := &countingSource{delay: 50 * time.Millisecond}
	cache := NewCachingSource(next, 8, 0)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			data, err := cache.Fetch(context.Background(), "shared.pdf")
			assert.NoError(t, err)
			assert.Equal(t, "template:shared.pdf", string(data))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), next.calls.Load())
	for i := 0; i < 3; i++ {
		_, err := cache.Fetch(context.Background(), fmt.Sprintf("other-%d.pdf", i))
		require.NoError(t, err)
	}
	assert.Equal(t, int64(4), next.calls.Load())
}

type gatedSource struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedSource) Fetch(ctx context.Context, ref string) ([]byte, error) {
	s.once.Do(func() { close(s.started) })
	select {
	case <-s.release:
		return []byte("template:" + ref), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestCachingSource_CancelledCallerDoesNotFailOthers(t *testing.T) {
	next := &gatedSource{started: make(chan struct{}), release: make(chan struct{})}
	cache := NewCachingSource(next, 4, 0)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := cache.Fetch(ctxA, "slow.pdf")
		errA <- err
	}()
	<-next.started

	type result struct {
		data []byte
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		data, err := cache.Fetch(context.Background(), "slow.pdf")
		resB <- result{data, err}
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(next.release)
	select {
	case r := <-resB:
		require.NoError(t, r.err)
		assert.Equal(t, "template:slow.pdf", string(r.data))
	case <-time.After(2 * time.Second):
		t.Fatal("live caller never received the template")
	}
	assert.Equal(t, 1, cache.Len())
}
