package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lattice/internal/types"
)

// ComputeClientConfig holds the configuration for creating a ComputeClient.
type ComputeClientConfig struct {
	BaseURL string
	Logger  *slog.Logger
}

// ComputeClient forwards console requests to the SIMD compute engine. The
// engine's request and response payloads are opaque to us; the client
// validates nothing beyond JSON well-formedness at the handler layer and
// passes bodies through unchanged.
type ComputeClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewComputeClient creates a new ComputeClient.
func NewComputeClient(httpClient *http.Client, cfg ComputeClientConfig, opts ...BaseClientOption) *ComputeClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"compute-engine",
		RetryPolicy{
			MaxRetries: 1,
			MinWait:    250 * time.Millisecond,
			MaxWait:    2 * time.Second,
		},
		"Lattice/1.0",
		types.ErrCodeUpstreamCompute,
		opts...,
	)

	return &ComputeClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// Run submits an element-wise vector operation to the engine.
func (c *ComputeClient) Run(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.post(ctx, "/api/v1/simd/compute", body)
}

// Matrix submits a matrix operation to the engine.
func (c *ComputeClient) Matrix(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.post(ctx, "/api/v1/simd/matrix", body)
}

// Benchmark runs an engine benchmark.
func (c *ComputeClient) Benchmark(ctx context.Context, body json.RawMessage) (json.RawMessage, error) {
	return c.post(ctx, "/api/v1/simd/benchmark", body)
}

// Capabilities reports the engine's detected SIMD feature set.
func (c *ComputeClient) Capabilities(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/api/v1/simd/capabilities")
}

// Stats reports the engine's runtime counters.
func (c *ComputeClient) Stats(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "/api/v1/simd/stats")
}

// Ping checks engine liveness. Used by the health endpoint.
func (c *ComputeClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.NewAppError(
			types.ErrCodeUpstreamCompute,
			fmt.Sprintf("compute engine health returned %d", resp.StatusCode),
			nil,
		)
	}
	return nil
}

func (c *ComputeClient) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, path)
}

func (c *ComputeClient) post(ctx context.Context, path string, body json.RawMessage) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path)
}

func (c *ComputeClient) do(req *http.Request, path string) (json.RawMessage, error) {
	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamCompute,
			fmt.Sprintf("failed to read compute engine response for %s", path),
			err,
		)
	}

	if resp.StatusCode != http.StatusOK {
		// Engine errors are passed upward as upstream failures; the body is
		// logged but never forwarded to the browser.
		c.logger.WarnContext(req.Context(), "compute engine request failed",
			"path", path,
			"status", resp.StatusCode,
		)
		return nil, types.NewAppError(
			types.ErrCodeUpstreamCompute,
			fmt.Sprintf("compute engine returned %d for %s", resp.StatusCode, path),
			nil,
		)
	}

	return json.RawMessage(payload), nil
}
