// Package health runs named readiness checks and serves their aggregate
// over HTTP.
package health

import (
	"cmp"
	"context"
	"encoding/json"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Status is the health of one check or of a whole report.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// severity orders statuses so the worst one wins when aggregating.
func (s Status) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	}
	return 2
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Name      string        `json:"name"`
	Status    Status        `json:"status"`
	Message   string        `json:"message,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Checker is one named check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Report aggregates every check: its status is the worst check status, and
// Checks is sorted by name.
type Report struct {
	Status    Status        `json:"status"`
	Checks    []CheckResult `json:"checks"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// IsHealthy reports whether every check passed.
func (r Report) IsHealthy() bool { return r.Status == StatusHealthy }

// Registry holds checks by name. It is safe for concurrent use.
type Registry struct {
	mu     sync.Mutex
	checks map[string]Checker
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{checks: map[string]Checker{}}
}

// Register adds c, replacing any check with the same name.
func (r *Registry) Register(c Checker) {
	r.mu.Lock()
	r.checks[c.Name()] = c
	r.mu.Unlock()
}

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Sorted(maps.Keys(r.checks))
}

func (r *Registry) snapshot() []Checker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Collect(maps.Values(r.checks))
}

// Check runs every check concurrently and aggregates the results.
func (r *Registry) Check(ctx context.Context) Report {
	started := time.Now()
	checkers := r.snapshot()
	results := make([]CheckResult, len(checkers))

	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = c.Check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(results, func(a, b CheckResult) int { return cmp.Compare(a.Name, b.Name) })
	report := Report{Status: StatusHealthy, Checks: results}
	for _, res := range results {
		if res.Status.severity() > report.Status.severity() {
			report.Status = res.Status
		}
	}
	report.Timestamp = time.Now()
	report.Duration = time.Since(started)
	return report
}

// Handler serves the report as JSON. Only an unhealthy report answers 503;
// degraded still answers 200.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		report := r.Check(req.Context())
		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(report)
	})
}
