package health

import (
	"context"
	"time"
)

const defaultTimeout = 5 * time.Second

// Checkable is a component that can report its own health, such as the
// sandbox store.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// AdapterChecker checks a Checkable under a timeout.
type AdapterChecker struct {
	name    string
	adapter Checkable
	timeout time.Duration
}

// NewAdapterChecker wraps adapter. A zero timeout means five seconds.
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &AdapterChecker{name: name, adapter: adapter, timeout: timeout}
}

// Check implements Checker.
func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.adapter.HealthCheck(ctx)
	res := CheckResult{Name: c.name, Status: StatusHealthy, Message: "OK", Timestamp: time.Now(), Duration: time.Since(start)}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Message = ""
		res.Error = err.Error()
	}
	return res
}

// Name implements Checker.
func (c *AdapterChecker) Name() string { return c.name }

// CustomChecker adapts a function that decides the status itself, e.g. to
// report degraded.
type CustomChecker struct {
	name    string
	check   func(ctx context.Context) (Status, string, error)
	timeout time.Duration
}

// NewCustomChecker wraps check. A returned error always means unhealthy.
func NewCustomChecker(name string, check func(ctx context.Context) (Status, string, error)) *CustomChecker {
	return &CustomChecker{name: name, check: check, timeout: defaultTimeout}
}

// Check implements Checker.
func (c *CustomChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	status, msg, err := c.check(ctx)
	res := CheckResult{Name: c.name, Status: status, Message: msg, Timestamp: time.Now(), Duration: time.Since(start)}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
	}
	return res
}

// Name implements Checker.
func (c *CustomChecker) Name() string { return c.name }
