package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// healthCheckTimeout is the maximum time allowed for all health probes to
// complete. If any probe exceeds this deadline, the health check returns
// 503 Service Unavailable.
const healthCheckTimeout = 2 * time.Second

// HealthProbe defines the interface for a subsystem health check.
// Each probe represents a critical dependency (database, compute engine)
// that must be operational for the service to function correctly.
type HealthProbe interface {
	// Name returns a human-readable identifier for the probe
	// (e.g., "database", "compute_engine").
	Name() string

	// Check performs the health check against the subsystem. It should
	// respect the context deadline and return an error if the subsystem is
	// unhealthy or unreachable.
	Check(ctx context.Context) error
}

// HealthChecker aggregates health probes and owns closable resources
// (e.g., the database pool) released during shutdown.
type HealthChecker struct {
	probes  []HealthProbe
	closers []func(context.Context) error
}

// NewHealthChecker creates a HealthChecker over the given probes.
func NewHealthChecker(probes ...HealthProbe) *HealthChecker {
	return &HealthChecker{probes: probes}
}

// AddCloser registers a resource-release function invoked on shutdown.
func (h *HealthChecker) AddCloser(fn func(context.Context) error) {
	h.closers = append(h.closers, fn)
}

// Close releases all registered resources in registration order.
func (h *HealthChecker) Close(ctx context.Context) error {
	for _, fn := range h.closers {
		if err := fn(ctx); err != nil {
			return err
		}
	}
	return nil
}

// componentStatus represents the health state of a single subsystem.
type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResponse is the JSON response body for the health check endpoint.
type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth executes all registered health probes concurrently with a
// short timeout. Returns 200 OK if all probes report healthy, 503 Service
// Unavailable if any critical subsystem fails or the deadline is exceeded.
//
// This endpoint is public (no authentication required) and is mounted at
// GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Health == nil || len(s.Health.probes) == 0 {
		// No probes registered: report healthy with no component details.
		JSON(w, r, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	var mu sync.Mutex
	components := make(map[string]componentStatus, len(s.Health.probes))
	healthy := true

	// Probes run concurrently so total latency is the slowest probe, not the
	// sum. A failing probe must not abort the others; errors are collected
	// per component instead of propagated through the group.
	g, gctx := errgroup.WithContext(ctx)
	for _, probe := range s.Health.probes {
		g.Go(func() error {
			var err error
			func() {
				defer func() {
					if rec := recover(); rec != nil {
						err = fmt.Errorf("probe panicked: %v", rec)
					}
				}()
				err = probe.Check(gctx)
			}()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				healthy = false
				components[probe.Name()] = componentStatus{Status: "unhealthy", Message: err.Error()}
			} else {
				components[probe.Name()] = componentStatus{Status: "healthy"}
			}
			return nil
		})
	}
	_ = g.Wait()

	resp := healthResponse{Status: "healthy", Components: components}
	status := http.StatusOK
	if !healthy {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	JSON(w, r, status, resp)
}
