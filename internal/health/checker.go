// Package health provides health check functionality for liveness and readiness probes.
package health

import (
	"context"
	"sync"
	"time"
)

// ReadinessChecker is the interface for readiness checks.
// Implemented by the session hub to verify it still accepts connections.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Status represents the health status of a component.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult contains the result of a health check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Response is the health check response.
type Response struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Checker performs health checks on the relay's components.
type Checker struct {
	hub     ReadinessChecker
	timeout time.Duration

	mu           sync.RWMutex
	shuttingDown bool
}

// NewChecker creates a new health checker.
func NewChecker(hub ReadinessChecker) *Checker {
	return &Checker{
		hub:     hub,
		timeout: 5 * time.Second,
	}
}

// Liveness returns true if the process is alive. It never checks
// dependencies; failing this probe should trigger a restart.
func (c *Checker) Liveness(ctx context.Context) *Response {
	return &Response{
		Status: StatusHealthy,
	}
}

// Readiness checks if the relay is ready to accept traffic.
// Failing this probe should remove the instance from load balancer rotation.
func (c *Checker) Readiness(ctx context.Context) *Response {
	c.mu.RLock()
	shuttingDown := c.shuttingDown
	c.mu.RUnlock()

	if shuttingDown {
		return &Response{
			Status: StatusUnhealthy,
			Checks: map[string]CheckResult{
				"shutdown": {Status: StatusUnhealthy, Message: "service is shutting down"},
			},
		}
	}

	checks := map[string]CheckResult{
		"sessions": c.checkHub(ctx),
	}

	status := StatusHealthy
	if checks["sessions"].Status != StatusHealthy {
		status = StatusUnhealthy
	}

	return &Response{
		Status: status,
		Checks: checks,
	}
}

// checkHub verifies the session hub still accepts connections.
func (c *Checker) checkHub(ctx context.Context) CheckResult {
	if c.hub == nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: "session hub not configured",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.hub.Ready(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: err.Error(),
		}
	}

	return CheckResult{
		Status: StatusHealthy,
	}
}

// IsHealthy returns true if the overall status is healthy.
func (r *Response) IsHealthy() bool {
	return r.Status == StatusHealthy
}

// SetShuttingDown marks the service as shutting down. Readiness checks then
// report unhealthy, signaling load balancers to stop sending new traffic.
func (c *Checker) SetShuttingDown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuttingDown = true
}
