package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"lattice/internal/config"
	"lattice/internal/core"
	"lattice/internal/types"
)

// CheckoutService starts provider-side purchase and portal flows.
type CheckoutService interface {
	StartCheckout(ctx context.Context, userID, userEmail, priceID, successURL, cancelURL string) (string, error)
	StartPortal(ctx context.Context, userID, returnURL string) (string, error)
}

// AccountGetter reads the per-user billing account.
type AccountGetter interface {
	GetByUserID(ctx context.Context, userID string) (*types.Account, error)
}

// CreateCheckoutRequest is the request body for POST /v1/billing/checkout.
//
// Success and cancel URLs are intentionally absent: redirect targets are
// built server-side from the configured dashboard origin so client input
// can never cause an open redirect.
type CreateCheckoutRequest struct {
	PriceID string `json:"price_id" validate:"required"`
}

// CheckoutResponse is the response for POST /v1/billing/checkout.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// PortalResponse is the response for POST /v1/billing/portal.
type PortalResponse struct {
	URL string `json:"url"`
}

// BillingHandler handles synchronous billing actions initiated by the user.
type BillingHandler struct {
	checkout     CheckoutService
	accounts     AccountGetter
	validator    *core.Validator
	dashboardURL string
	logger       *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(
	checkout CheckoutService,
	accounts AccountGetter,
	cfg *config.Config,
	v *core.Validator,
	l *slog.Logger,
) *BillingHandler {
	if l == nil {
		l = slog.Default()
	}

	dashboardURL := ""
	if cfg != nil {
		dashboardURL = cfg.Server.DashboardURL
	}

	return &BillingHandler{
		checkout:     checkout,
		accounts:     accounts,
		validator:    v,
		dashboardURL: dashboardURL,
		logger:       l,
	}
}

// RegisterRoutes mounts the billing endpoints. The parent router applies
// auth middleware; every route here requires an Actor.
func (h *BillingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/checkout", h.CreateCheckout)
	r.Post("/billing/portal", h.CreatePortal)
	r.Get("/billing/account", h.GetAccount)
}

// CreateCheckout handles POST /v1/billing/checkout.
func (h *BillingHandler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSessionMissing, "authentication required", nil))
		return
	}

	var req CreateCheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	redirectURL, err := h.checkout.StartCheckout(
		r.Context(),
		actor.UserID,
		actor.Email,
		req.PriceID,
		h.dashboardURL+"/dashboard?checkout=success",
		h.dashboardURL+"/pricing?checkout=cancelled",
	)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, CheckoutResponse{URL: redirectURL})
}

// CreatePortal handles POST /v1/billing/portal.
func (h *BillingHandler) CreatePortal(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSessionMissing, "authentication required", nil))
		return
	}

	portalURL, err := h.checkout.StartPortal(r.Context(), actor.UserID, h.dashboardURL+"/settings/billing")
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, PortalResponse{URL: portalURL})
}

// GetAccount handles GET /v1/billing/account. The settings page reads the
// plan and payment linkage from here; it never derives plan state from
// Stripe directly.
func (h *BillingHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeAuthSessionMissing, "authentication required", nil))
		return
	}

	account, err := h.accounts.GetByUserID(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, account)
}
