// Package health reports whether textplotd can serve. Each dependency is a
// named Check; required checks that fail take the service out of rotation,
// optional ones only mark it degraded.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusUp       Status = "up"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

func (s Status) rank() int {
	switch s {
	case StatusUp:
		return 0
	case StatusDegraded:
		return 1
	}
	return 2
}

// ComponentHealth is the outcome of one check.
type ComponentHealth struct {
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	Latency string         `json:"latency,omitempty"`
}

// Check inspects one dependency. It should return promptly once ctx ends.
type Check func(ctx context.Context) ComponentHealth

// Report aggregates every registered check. Status is the worst component
// status.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Uptime     string                     `json:"uptime"`
	Timestamp  string                     `json:"timestamp"`
}

type registration struct {
	check   Check
	timeout time.Duration
	// failed replaces a down result; optional dependencies report degraded.
	failed Status
}

// Option adjusts a registration.
type Option func(*registration)

// WithTimeout bounds a single check. The default is two seconds.
func WithTimeout(d time.Duration) Option {
	return func(r *registration) { r.timeout = d }
}

// Optional marks a dependency the service can run without.
func Optional() Option {
	return func(r *registration) { r.failed = StatusDegraded }
}

type Checker struct {
	mu      sync.RWMutex
	checks  map[string]registration
	started time.Time
	logger  *slog.Logger
}

func NewChecker() *Checker {
	return &Checker{
		checks:  make(map[string]registration),
		started: time.Now(),
		logger:  slog.Default().With("component", "health"),
	}
}

// Register adds or replaces the check called name.
func (c *Checker) Register(name string, check Check, opts ...Option) {
	reg := registration{check: check, timeout: 2 * time.Second, failed: StatusDown}
	for _, opt := range opts {
		opt(&reg)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = reg
}

// PingCheck adapts a ping function. A nil ping means the dependency is not
// configured.
func PingCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if ping == nil {
			return ComponentHealth{Status: StatusDown, Message: "not configured"}
		}
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// CorpusCheck reports the live corpus size and version. An empty corpus
// serves requests but every analysis will fail, so it is degraded.
func CorpusCheck(current func() (docs int, version uint64)) Check {
	return func(context.Context) ComponentHealth {
		n, v := current()
		details := map[string]any{"documents": n, "version": v}
		if n == 0 {
			return ComponentHealth{Status: StatusDegraded, Message: "corpus is empty", Details: details}
		}
		return ComponentHealth{Status: StatusUp, Details: details}
	}
}

func (c *Checker) run(ctx context.Context, reg registration) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, reg.timeout)
	defer cancel()

	done := make(chan ComponentHealth, 1)
	start := time.Now()
	go func() { done <- reg.check(ctx) }()

	var res ComponentHealth
	select {
	case res = <-done:
	case <-ctx.Done():
		res = ComponentHealth{Status: StatusDown, Message: fmt.Sprintf("no answer within %v", reg.timeout)}
	}
	res.Latency = time.Since(start).Round(time.Millisecond).String()
	if res.Status == StatusDown {
		res.Status = reg.failed
	}
	return res
}

// Run executes every check concurrently.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	checks := make(map[string]registration, len(c.checks))
	for name, reg := range c.checks {
		checks[name] = reg
	}
	c.mu.RUnlock()

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(checks)),
		Uptime:     time.Since(c.started).Round(time.Second).String(),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	for name, reg := range checks {
		g.Go(func() error {
			res := c.run(ctx, reg)
			mu.Lock()
			defer mu.Unlock()
			report.Components[name] = res
			if res.Status.rank() > report.Status.rank() {
				report.Status = res.Status
			}
			return nil
		})
	}
	_ = g.Wait()

	for name, comp := range report.Components {
		if comp.Status != StatusUp {
			c.logger.Warn("health check not passing", "check", name, "status", comp.Status, "message", comp.Message)
		}
	}
	return report
}

// LiveHandler answers as long as the process can serve HTTP.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "alive",
			"uptime": time.Since(c.started).Round(time.Second).String(),
		})
	}
}

// ReadyHandler runs the checks and answers 503 only when a required
// dependency is down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		report := c.Run(ctx)
		code := http.StatusOK
		if report.Status == StatusDown {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
