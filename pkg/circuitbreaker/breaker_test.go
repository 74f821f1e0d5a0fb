package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failingN(n int) func() error {
	calls := 0
	return func() error {
		calls++
		if calls <= n {
			return errBoom
		}
		return nil
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 3, OpenTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, func() error { return errBoom }), errBoom)
	}
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(ctx, func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := New("test", Config{FailureThreshold: 2})
	ctx := context.Background()

	// failures interleaved with successes never reach the threshold
	require.Error(t, cb.Execute(ctx, func() error { return errBoom }))
	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	require.Error(t, cb.Execute(ctx, func() error { return errBoom }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenAfterTimeout(t *testing.T) {
	cb := New("test", Config{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		OpenTimeout:      10 * time.Millisecond,
	})
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, func() error { return errBoom }))
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	// two successes close it again
	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	require.NoError(t, cb.Execute(ctx, func() error { return nil }))
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := New("test", Config{
		FailureThreshold: 1,
		OpenTimeout:      10 * time.Millisecond,
	})
	ctx := context.Background()

	require.Error(t, cb.Execute(ctx, func() error { return errBoom }))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, StateHalfOpen, cb.State())

	require.Error(t, cb.Execute(ctx, func() error { return errBoom }))
	assert.Equal(t, StateOpen, cb.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
}
