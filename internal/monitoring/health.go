// internal/monitoring/health.go
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnknown   HealthStatus = "unknown"
)

// HealthCheck is a single named check.
type HealthCheck struct {
	Name     string
	Critical bool
	Timeout  time.Duration
	Check    func(ctx context.Context) HealthCheckResult
}

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status   HealthStatus           `json:"status"`
	Message  string                 `json:"message,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Critical bool                   `json:"critical"`
	Duration time.Duration          `json:"duration"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SystemHealth is the aggregated response of all checks.
type SystemHealth struct {
	Status    HealthStatus                 `json:"status"`
	Timestamp time.Time                    `json:"timestamp"`
	Version   string                       `json:"version,omitempty"`
	Uptime    time.Duration                `json:"uptime"`
	Checks    map[string]HealthCheckResult `json:"checks,omitempty"`
}

// HealthManager runs registered checks on demand.
type HealthManager struct {
	mu             sync.RWMutex
	checks         map[string]HealthCheck
	version        string
	started        time.Time
	defaultTimeout time.Duration
}

// NewHealthManager creates a new health manager
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checks:         make(map[string]HealthCheck),
		version:        version,
		started:        time.Now(),
		defaultTimeout: 5 * time.Second,
	}
}

// RegisterCheck adds or replaces a check.
func (hm *HealthManager) RegisterCheck(check HealthCheck) {
	if check.Timeout <= 0 {
		check.Timeout = hm.defaultTimeout
	}
	hm.mu.Lock()
	hm.checks[check.Name] = check
	hm.mu.Unlock()
}

// Names returns the registered check names in order.
func (hm *HealthManager) Names() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Check runs every check concurrently and aggregates the result. A failing
// critical check makes the system unhealthy; any other problem degrades it.
func (hm *HealthManager) Check(ctx context.Context) SystemHealth {
	hm.mu.RLock()
	checks := make([]HealthCheck, 0, len(hm.checks))
	for _, c := range hm.checks {
		checks = append(checks, c)
	}
	hm.mu.RUnlock()

	results := make(map[string]HealthCheckResult, len(checks))
	var (
		wg  sync.WaitGroup
		rmu sync.Mutex
	)
	for _, check := range checks {
		wg.Add(1)
		go func(c HealthCheck) {
			defer wg.Done()
			res := runCheck(ctx, c)
			rmu.Lock()
			results[c.Name] = res
			rmu.Unlock()
		}(check)
	}
	wg.Wait()

	status := HealthStatusHealthy
	for _, res := range results {
		switch res.Status {
		case HealthStatusHealthy:
		case HealthStatusUnhealthy:
			if res.Critical {
				status = HealthStatusUnhealthy
			} else if status == HealthStatusHealthy {
				status = HealthStatusDegraded
			}
		default:
			if status == HealthStatusHealthy {
				status = HealthStatusDegraded
			}
		}
	}

	return SystemHealth{
		Status:    status,
		Timestamp: time.Now(),
		Version:   hm.version,
		Uptime:    time.Since(hm.started),
		Checks:    results,
	}
}

func runCheck(ctx context.Context, check HealthCheck) HealthCheckResult {
	start := time.Now()
	checkCtx, cancel := context.WithTimeout(ctx, check.Timeout)
	defer cancel()

	var res HealthCheckResult
	if check.Check != nil {
		res = check.Check(checkCtx)
	} else {
		res = HealthCheckResult{Status: HealthStatusUnknown, Message: "no check function defined"}
	}
	res.Critical = check.Critical
	res.Duration = time.Since(start)
	return res
}

// Handler serves the aggregated health as JSON, with 503 when unhealthy.
func (hm *HealthManager) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := hm.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if health.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		json.NewEncoder(w).Encode(health)
	}
}

// DatabaseHealthCheck wraps a ping function, typically the selector cache database.
func DatabaseHealthCheck(name string, ping func(ctx context.Context) error) HealthCheck {
	return HealthCheck{
		Name:     name,
		Critical: true,
		Check: func(ctx context.Context) HealthCheckResult {
			if err := ping(ctx); err != nil {
				return HealthCheckResult{
					Status:  HealthStatusUnhealthy,
					Message: "database connection failed",
					Error:   err.Error(),
				}
			}
			return HealthCheckResult{Status: HealthStatusHealthy, Message: "database connection successful"}
		},
	}
}

// BreakerHealthCheck degrades health while the escalation circuit is not closed.
func BreakerHealthCheck(name string, state func() string) HealthCheck {
	return HealthCheck{
		Name: name,
		Check: func(ctx context.Context) HealthCheckResult {
			s := state()
			meta := map[string]interface{}{"state": s}
			switch s {
			case "closed":
				return HealthCheckResult{Status: HealthStatusHealthy, Message: "circuit closed", Metadata: meta}
			case "open":
				return HealthCheckResult{Status: HealthStatusUnhealthy, Message: "circuit open, escalation suspended", Metadata: meta}
			default:
				return HealthCheckResult{Status: HealthStatusDegraded, Message: "circuit " + s, Metadata: meta}
			}
		},
	}
}

// OutboxHealthCheck degrades health when more than max batches wait for redelivery.
func OutboxHealthCheck(pending func(ctx context.Context) (int, error), max int) HealthCheck {
	return HealthCheck{
		Name: "outbox",
		Check: func(ctx context.Context) HealthCheckResult {
			n, err := pending(ctx)
			if err != nil {
				return HealthCheckResult{Status: HealthStatusUnhealthy, Message: "failed to count retained batches", Error: err.Error()}
			}
			meta := map[string]interface{}{"pending": n, "max_pending": max}
			if max > 0 && n > max {
				return HealthCheckResult{
					Status:   HealthStatusDegraded,
					Message:  fmt.Sprintf("%d batches waiting for redelivery", n),
					Metadata: meta,
				}
			}
			return HealthCheckResult{Status: HealthStatusHealthy, Metadata: meta}
		},
	}
}

// GoroutineHealthCheck creates a goroutine count health check
func GoroutineHealthCheck(maxGoroutines int) HealthCheck {
	return HealthCheck{
		Name: "goroutines",
		Check: func(ctx context.Context) HealthCheckResult {
			count := runtime.NumGoroutine()
			meta := map[string]interface{}{
				"goroutine_count": count,
				"max_allowed":     maxGoroutines,
			}
			if count > maxGoroutines {
				return HealthCheckResult{
					Status:   HealthStatusDegraded,
					Message:  fmt.Sprintf("High goroutine count: %d", count),
					Metadata: meta,
				}
			}
			return HealthCheckResult{
				Status:   HealthStatusHealthy,
				Message:  fmt.Sprintf("Goroutine count normal: %d", count),
				Metadata: meta,
			}
		},
	}
}
