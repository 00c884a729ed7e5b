package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/textplot/pkg/errors"
)

// Backoff controls how Retry spaces its attempts. Zero fields take the
// defaults of DefaultBackoff.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	Factor   float64
	// Jitter spreads each wait by up to ±Jitter of its length.
	Jitter float64
	// Retryable decides whether a failed attempt is worth repeating. Nil
	// means Transient.
	Retryable func(err error) bool
}

// DefaultBackoff suits short writes against Postgres or Redis.
var DefaultBackoff = Backoff{
	Attempts: 3,
	Initial:  100 * time.Millisecond,
	Max:      5 * time.Second,
	Factor:   2,
	Jitter:   0.1,
}

func (b Backoff) withDefaults() Backoff {
	if b.Attempts <= 0 {
		b.Attempts = DefaultBackoff.Attempts
	}
	if b.Initial <= 0 {
		b.Initial = DefaultBackoff.Initial
	}
	if b.Max < b.Initial {
		b.Max = max(DefaultBackoff.Max, b.Initial)
	}
	if b.Factor < 1 {
		b.Factor = DefaultBackoff.Factor
	}
	if b.Jitter <= 0 || b.Jitter >= 1 {
		b.Jitter = DefaultBackoff.Jitter
	}
	if b.Retryable == nil {
		b.Retryable = Transient
	}
	return b
}

func (b Backoff) spread(d time.Duration) time.Duration {
	return time.Duration(float64(d) * (1 + b.Jitter*(2*rand.Float64()-1)))
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so that Retry returns it without another attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Request and corpus errors describe the input, not the backend; repeating
// the call cannot change them.
var permanentCauses = []error{
	apperrors.ErrInvalidInput,
	apperrors.ErrInvalidGroup,
	apperrors.ErrDocumentExists,
	apperrors.ErrDocumentNotFound,
	apperrors.ErrIdempotencyConflict,
	apperrors.ErrUnknownFeature,
}

// Transient reports whether a later attempt could succeed where err failed.
func Transient(err error) bool {
	var p *permanentError
	if errors.As(err, &p) {
		return false
	}
	for _, cause := range permanentCauses {
		if errors.Is(err, cause) {
			return false
		}
	}
	return true
}

// Retry calls fn until it succeeds, returns a non-retryable error, runs out
// of attempts or ctx ends. The returned error wraps the last failure.
func Retry(ctx context.Context, op string, b Backoff, fn func(ctx context.Context) error) error {
	b = b.withDefaults()
	log := slog.Default().With("component", "retry", "operation", op)

	wait := b.Initial
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				log.Info("operation recovered", "attempts", attempt)
			}
			return nil
		}
		if !b.Retryable(err) {
			return fmt.Errorf("%s: %w", op, err)
		}
		if attempt == b.Attempts {
			return fmt.Errorf("%s failed after %d attempts: %w", op, attempt, err)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s abandoned after %d attempts: %w", op, attempt, ctx.Err())
		}

		d := b.spread(wait)
		log.Warn("attempt failed", "attempt", attempt, "max_attempts", b.Attempts, "retry_in", d, "error", err)
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s abandoned after %d attempts: %w", op, attempt, ctx.Err())
		case <-timer.C:
		}
		wait = min(time.Duration(float64(wait)*b.Factor), b.Max)
	}
}
