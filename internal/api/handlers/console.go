package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lattice/internal/core"
)

// ComputeGateway is the engine surface the console proxies to. Payloads are
// opaque JSON; the engine owns their semantics.
type ComputeGateway interface {
	Run(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
	Matrix(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
	Benchmark(ctx context.Context, body json.RawMessage) (json.RawMessage, error)
	Capabilities(ctx context.Context) (json.RawMessage, error)
	Stats(ctx context.Context) (json.RawMessage, error)
}

// ConsoleHandler forwards authenticated console requests to the compute
// engine. It checks only that POST bodies are well-formed JSON objects
// before forwarding.
type ConsoleHandler struct {
	engine ComputeGateway
	logger *slog.Logger
}

// NewConsoleHandler creates a new ConsoleHandler.
func NewConsoleHandler(engine ComputeGateway, l *slog.Logger) *ConsoleHandler {
	if l == nil {
		l = slog.Default()
	}
	return &ConsoleHandler{engine: engine, logger: l}
}

// RegisterRoutes mounts the console endpoints. The parent router applies
// auth middleware.
func (h *ConsoleHandler) RegisterRoutes(r chi.Router) {
	r.Route("/compute", func(r chi.Router) {
		r.Post("/run", h.forward(h.engine.Run))
		r.Post("/matrix", h.forward(h.engine.Matrix))
		r.Post("/benchmark", h.forward(h.engine.Benchmark))
		r.Get("/capabilities", h.fetch(h.engine.Capabilities))
		r.Get("/stats", h.fetch(h.engine.Stats))
	})
}

// forward returns a handler that validates the body as JSON and passes it to
// the engine verbatim.
func (h *ConsoleHandler) forward(call func(context.Context, json.RawMessage) (json.RawMessage, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body json.RawMessage
		if err := core.DecodeJSON(w, r, &body); err != nil {
			core.Error(w, r, err)
			return
		}

		result, err := call(r.Context(), body)
		if err != nil {
			core.Error(w, r, err)
			return
		}

		h.writeRaw(w, r, result)
	}
}

// fetch returns a handler for the engine's GET endpoints.
func (h *ConsoleHandler) fetch(call func(context.Context) (json.RawMessage, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := call(r.Context())
		if err != nil {
			core.Error(w, r, err)
			return
		}

		h.writeRaw(w, r, result)
	}
}

// writeRaw relays the engine's response body without re-marshalling. The
// payload was produced by the engine as JSON; re-encoding would only risk
// mangling number precision.
func (h *ConsoleHandler) writeRaw(w http.ResponseWriter, r *http.Request, payload json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload); err != nil {
		h.logger.WarnContext(r.Context(), "failed to write console response",
			"error", err,
		)
	}
}
