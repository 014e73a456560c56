package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubProbe struct {
	name string
	err  error
}

func (p *stubProbe) Name() string                    { return p.name }
func (p *stubProbe) Check(ctx context.Context) error { return p.err }

func TestHandleHealth_NoProbes(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestHandleHealth_AllHealthy(t *testing.T) {
	srv := newTestServer(t)
	srv.Health = NewHealthChecker(
		&stubProbe{name: "database"},
		&stubProbe{name: "compute_engine"},
	)

	w := httptest.NewRecorder()
	srv.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected healthy, got %q", resp.Status)
	}
	if resp.Components["database"].Status != "healthy" {
		t.Errorf("expected database healthy, got %+v", resp.Components["database"])
	}
}

func TestHandleHealth_OneProbeFailing(t *testing.T) {
	srv := newTestServer(t)
	srv.Health = NewHealthChecker(
		&stubProbe{name: "database"},
		&stubProbe{name: "compute_engine", err: errors.New("connection refused")},
	)

	w := httptest.NewRecorder()
	srv.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}

	var resp healthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("expected unhealthy, got %q", resp.Status)
	}
	if resp.Components["database"].Status != "healthy" {
		t.Errorf("healthy probe should still report, got %+v", resp.Components["database"])
	}
	if resp.Components["compute_engine"].Status != "unhealthy" {
		t.Errorf("expected compute_engine unhealthy, got %+v", resp.Components["compute_engine"])
	}
}

func TestHealthChecker_CloseRunsClosersInOrder(t *testing.T) {
	checker := NewHealthChecker()

	var order []string
	checker.AddCloser(func(ctx context.Context) error {
		order = append(order, "pool")
		return nil
	})
	checker.AddCloser(func(ctx context.Context) error {
		order = append(order, "cache")
		return nil
	})

	if err := checker.Close(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(order) != 2 || order[0] != "pool" || order[1] != "cache" {
		t.Errorf("unexpected close order %v", order)
	}
}
