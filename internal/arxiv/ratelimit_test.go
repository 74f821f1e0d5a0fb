package arxiv

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterFirstCallDoesNotBlock(t *testing.T) {
	l := NewLimiter(time.Second)

	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterEnforcesMinimumSpacing(t *testing.T) {
	interval := 50 * time.Millisecond
	l := NewLimiter(interval)

	require.NoError(t, l.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), interval-5*time.Millisecond)
}

func TestLimiterSerializesConcurrentCallers(t *testing.T) {
	interval := 30 * time.Millisecond
	l := NewLimiter(interval)

	var mu sync.Mutex
	var times []time.Time
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, l.Wait(context.Background()))
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, times, 4)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	for i := 1; i < len(times); i++ {
		gap := times[i].Sub(times[i-1])
		assert.GreaterOrEqual(t, gap, interval-10*time.Millisecond)
	}
}

func TestLimiterHonorsContextCancellation(t *testing.T) {
	l := NewLimiter(time.Minute)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
