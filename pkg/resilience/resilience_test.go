package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

var errRefused = errors.New("dial tcp 127.0.0.1:6379: connection refused")

func fail(context.Context) error    { return errRefused }
func succeed(context.Context) error { return nil }

func fakeClock(cb *CircuitBreaker) *time.Time {
	now := time.Unix(1_700_000_000, 0)
	cb.now = func() time.Time { return now }
	return &now
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	type change struct{ from, to State }
	var changes []change
	cb := NewCircuitBreaker("redis-cache", BreakerConfig{
		Failures: 2,
		Cooldown: time.Minute,
		OnStateChange: func(_ string, from, to State) {
			changes = append(changes, change{from, to})
		},
	})
	now := fakeClock(cb)
	ctx := context.Background()

	assert.ErrorIs(t, cb.Do(ctx, fail), errRefused)
	require.NoError(t, cb.Do(ctx, succeed), "a success resets the run")
	assert.ErrorIs(t, cb.Do(ctx, fail), errRefused)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Do(ctx, fail), errRefused)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Do(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)

	*now = now.Add(time.Minute)
	require.NoError(t, cb.Do(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []change{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}, changes)

	snap := cb.Snapshot()
	assert.Equal(t, int64(1), snap.Trips)
	assert.Zero(t, snap.Failures)
}

func TestBreakerFailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker("redis-cache", BreakerConfig{Failures: 1, Cooldown: time.Second})
	now := fakeClock(cb)
	ctx := context.Background()

	_ = cb.Do(ctx, fail)
	*now = now.Add(time.Second)
	assert.ErrorIs(t, cb.Do(ctx, fail), errRefused)
	assert.Equal(t, StateOpen, cb.State())
	assert.Equal(t, int64(2), cb.Snapshot().Trips)
	assert.ErrorIs(t, cb.Do(ctx, succeed), ErrCircuitOpen)
}

func TestBreakerAdmitsOneProbe(t *testing.T) {
	cb := NewCircuitBreaker("redis-cache", BreakerConfig{Failures: 1, Cooldown: time.Second})
	now := fakeClock(cb)
	ctx := context.Background()

	_ = cb.Do(ctx, fail)
	*now = now.Add(time.Second)

	err := cb.Do(ctx, func(ctx context.Context) error {
		assert.Equal(t, StateHalfOpen, cb.State())
		return cb.Do(ctx, succeed)
	})
	assert.ErrorIs(t, err, ErrCircuitOpen, "a second call during the probe is rejected")
}

func TestBreakerIgnoresCancelledCallers(t *testing.T) {
	cb := NewCircuitBreaker("redis-cache", BreakerConfig{Failures: 1})
	err := cb.Do(context.Background(), func(context.Context) error {
		return fmt.Errorf("get analysis:frequency: %w", context.Canceled)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker("redis-cache", BreakerConfig{Failures: 1, Cooldown: time.Hour})
	_ = cb.Do(context.Background(), fail)
	require.Equal(t, StateOpen, cb.State())
	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "closed", cb.State().String())
}

func TestRetryRecovers(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "postgres-connect", Backoff{Attempts: 4, Initial: time.Millisecond}, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errRefused
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryGivesUp(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), "postgres-connect", Backoff{Attempts: 2, Initial: time.Millisecond}, func(context.Context) error {
		attempts++
		return errRefused
	})
	assert.ErrorIs(t, err, errRefused)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, 2, attempts)
}

func TestRetryStopsOnPermanentErrors(t *testing.T) {
	for _, cause := range []error{
		apperrors.Newf(apperrors.ErrDocumentNotFound, 404, "document d1 not found"),
		apperrors.InvalidInput("bad dsn"),
		Permanent(errors.New("schema mismatch")),
	} {
		attempts := 0
		err := Retry(context.Background(), "mark-indexed", Backoff{Attempts: 5, Initial: time.Millisecond}, func(context.Context) error {
			attempts++
			return cause
		})
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, 1, attempts, cause.Error())
	}
	assert.True(t, Transient(errRefused))
	assert.False(t, Transient(fmt.Errorf("saving: %w", apperrors.ErrDocumentExists)))
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	err := Retry(ctx, "postgres-connect", Backoff{Attempts: 5, Initial: time.Millisecond}, func(context.Context) error {
		attempts++
		return errRefused
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
