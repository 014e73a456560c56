// Package handlers contains the HTTP handler implementations for the Lattice API.
//
// The Stripe webhook handler is NOT behind auth middleware; it is called
// directly by Stripe. Security is provided by verifying the Stripe-Signature
// header against the raw payload bytes before anything is parsed.
package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lattice/internal/core"
	"lattice/internal/types"
)

// maxWebhookBodySize caps Stripe webhook payloads at 64 KB. Real deliveries
// are far smaller; the limit protects against abuse.
const maxWebhookBodySize = 64 * 1024

// WebhookVerifier validates a raw webhook payload against its signature
// header and the signing secret.
type WebhookVerifier interface {
	Verify(payload []byte, header string, secret string) error
}

// EventApplier reconciles a verified webhook payload into local state.
type EventApplier interface {
	Apply(ctx context.Context, payload []byte) error
}

// StripeWebhookHandler handles asynchronous billing events from Stripe.
type StripeWebhookHandler struct {
	verifier   WebhookVerifier
	reconciler EventApplier
	secret     types.SecretString
	logger     *slog.Logger
}

// NewStripeWebhookHandler creates a new StripeWebhookHandler. An empty
// secret means billing is not configured; deliveries are then rejected with
// a credentials error rather than verified against a blank key.
func NewStripeWebhookHandler(
	verifier WebhookVerifier,
	reconciler EventApplier,
	secret types.SecretString,
	logger *slog.Logger,
) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier:   verifier,
		reconciler: reconciler,
		secret:     secret,
		logger:     logger,
	}
}

// RegisterRoutes mounts the Stripe webhook endpoint. Kept separate from the
// authenticated billing routes because webhook routes are public.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Handle)
}

// Handle processes an incoming Stripe webhook delivery:
//  1. Read the raw body (size capped).
//  2. Verify the Stripe-Signature header against the raw bytes. Nothing is
//     parsed before this succeeds.
//  3. Hand the payload to the reconciler.
//  4. Acknowledge with {"received": true}.
//
// Reconciler failures after a valid signature are surfaced as errors so
// Stripe redelivers; every transition is idempotent, so redelivery is safe.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body",
			"error", err,
		)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			"failed to read request body",
			err,
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if err := h.verifier.Verify(payload, sigHeader, h.secret.Unmask()); err != nil {
		h.logger.WarnContext(r.Context(), "webhook verification failed",
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	if err := h.reconciler.Apply(r.Context(), payload); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, map[string]bool{"received": true})
}
