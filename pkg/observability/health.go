package observability

import (
	"context"
	"sync"
	"time"
)

// HealthStatus is the state of one dependency or of the whole process.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResult is the outcome of one check.
type HealthCheckResult struct {
	Status    HealthStatus  `json:"status"`
	Message   string        `json:"message,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
	Timestamp time.Time     `json:"timestamp"`
}

// HealthChecker probes one dependency.
type HealthChecker func(ctx context.Context) HealthCheckResult

// HealthRegistry runs the registered checks concurrently.
type HealthRegistry struct {
	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthRegistry creates an empty registry.
func NewHealthRegistry() *HealthRegistry {
	return &HealthRegistry{checkers: make(map[string]HealthChecker)}
}

// Register adds or replaces the checker for name.
func (r *HealthRegistry) Register(name string, checker HealthChecker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = checker
}

// Check runs every checker and returns the results by name.
func (r *HealthRegistry) Check(ctx context.Context) map[string]HealthCheckResult {
	r.mu.RLock()
	checkers := make(map[string]HealthChecker, len(r.checkers))
	for name, c := range r.checkers {
		checkers[name] = c
	}
	r.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]HealthCheckResult, len(checkers))
	)
	for name, checker := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			result := checker(ctx)
			result.Duration = time.Since(start)
			result.Timestamp = time.Now()
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// OverallHealth is the aggregated health served by /healthz.
type OverallHealth struct {
	Status    HealthStatus                 `json:"status"`
	Timestamp time.Time                    `json:"timestamp"`
	Checks    map[string]HealthCheckResult `json:"checks"`
}

// GetOverallHealth runs all checks. Any unhealthy check makes the process
// unhealthy; otherwise any degraded check makes it degraded.
func (r *HealthRegistry) GetOverallHealth(ctx context.Context) OverallHealth {
	checks := r.Check(ctx)
	return OverallHealth{
		Status:    aggregate(checks),
		Timestamp: time.Now(),
		Checks:    checks,
	}
}

func aggregate(checks map[string]HealthCheckResult) HealthStatus {
	status := HealthStatusHealthy
	for _, c := range checks {
		switch c.Status {
		case HealthStatusUnhealthy:
			return HealthStatusUnhealthy
		case HealthStatusDegraded:
			status = HealthStatusDegraded
		}
	}
	return status
}

// DatabaseHealthChecker reports the process unhealthy when the database is
// unreachable.
func DatabaseHealthChecker(ping func(ctx context.Context) error) HealthChecker {
	return pingChecker("database", HealthStatusUnhealthy, ping)
}

// RedisHealthChecker reports degraded: reads fall through to storage.
func RedisHealthChecker(ping func(ctx context.Context) error) HealthChecker {
	return pingChecker("redis", HealthStatusDegraded, ping)
}

// DependencyHealthChecker reports a non-critical dependency as degraded
// when check fails.
func DependencyHealthChecker(name string, check func(ctx context.Context) error) HealthChecker {
	return pingChecker(name, HealthStatusDegraded, check)
}

func pingChecker(name string, onFailure HealthStatus, ping func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheckResult {
		if err := ping(ctx); err != nil {
			return HealthCheckResult{Status: onFailure, Message: name + " unavailable: " + err.Error()}
		}
		return HealthCheckResult{Status: HealthStatusHealthy, Message: name + " healthy"}
	}
}
