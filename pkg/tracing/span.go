// Package tracing times the stages of an analysis request. A Trace rides in
// the request context; each Stage appends one timing to it, and the finished
// trace is written as a single log record and fed to the stage histogram.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type ctxKey struct{}

// StageTiming is one completed stage. Nested stages are named by their path,
// e.g. "fit/project".
type StageTiming struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Err      string        `json:"error,omitempty"`
}

// Trace collects the stage timings of one operation.
type Trace struct {
	ID string
	Op string

	start time.Time
	now   func() time.Time

	mu     sync.Mutex
	total  time.Duration
	stages []StageTiming
	attrs  []slog.Attr
}

type position struct {
	trace *Trace
	path  string
}

// Start begins a trace for op. id is usually the request id.
func Start(ctx context.Context, op, id string) (context.Context, *Trace) {
	t := &Trace{ID: id, Op: op, now: time.Now}
	t.start = t.now()
	return context.WithValue(ctx, ctxKey{}, position{trace: t}), t
}

// FromContext returns the trace carried by ctx, or nil.
func FromContext(ctx context.Context) *Trace {
	if p, ok := ctx.Value(ctxKey{}).(position); ok {
		return p.trace
	}
	return nil
}

// Stage runs fn and records how long it took under name. Without a trace in
// ctx it just runs fn.
func Stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	p, ok := ctx.Value(ctxKey{}).(position)
	if !ok {
		return fn(ctx)
	}
	if p.path != "" {
		name = p.path + "/" + name
	}
	t := p.trace
	begin := t.now()
	err := fn(context.WithValue(ctx, ctxKey{}, position{trace: t, path: name}))

	st := StageTiming{Name: name, Duration: t.now().Sub(begin)}
	if err != nil {
		st.Err = err.Error()
	}
	t.mu.Lock()
	t.stages = append(t.stages, st)
	t.mu.Unlock()
	return err
}

// Set attaches an attribute that is logged with the trace.
func (t *Trace) Set(key string, value any) {
	t.mu.Lock()
	t.attrs = append(t.attrs, slog.Any(key, value))
	t.mu.Unlock()
}

// Finish fixes the total duration. Later calls return the first result.
func (t *Trace) Finish() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.total == 0 {
		t.total = max(t.now().Sub(t.start), time.Nanosecond)
	}
	return t.total
}

// Stages returns the recorded stages in completion order, so an inner stage
// precedes the stage that contains it.
func (t *Trace) Stages() []StageTiming {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]StageTiming, len(t.stages))
	copy(out, t.stages)
	return out
}

// Failed returns the innermost stage that returned an error.
func (t *Trace) Failed() (StageTiming, bool) {
	for _, st := range t.Stages() {
		if st.Err != "" {
			return st, true
		}
	}
	return StageTiming{}, false
}

// Log writes the trace as one debug record with a group of per-stage
// durations in milliseconds.
func (t *Trace) Log(ctx context.Context, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	total := t.Finish()
	stages := t.Stages()

	timings := make([]any, 0, len(stages))
	for _, st := range stages {
		timings = append(timings, slog.Float64(st.Name, ms(st.Duration)))
	}
	args := []any{
		"trace_id", t.ID,
		"operation", t.Op,
		"duration_ms", ms(total),
		slog.Group("stages_ms", timings...),
	}
	if st, ok := t.Failed(); ok {
		args = append(args, "failed_stage", st.Name, "error", st.Err)
	}
	t.mu.Lock()
	for _, a := range t.attrs {
		args = append(args, a)
	}
	t.mu.Unlock()
	logger.DebugContext(ctx, "trace", args...)
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
