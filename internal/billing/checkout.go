package billing

import (
	"context"
	"errors"
	"log/slog"

	"lattice/internal/types"
)

// CustomerResolver obtains the Stripe customer reference for a user,
// reusing a stored ID or looking up/creating one provider-side.
type CustomerResolver interface {
	ResolveCustomer(ctx context.Context, userID, email, existingCustomerID string) (string, error)
}

// CheckoutStarter creates a subscription-mode checkout session and returns
// the provider-issued redirect URL.
type CheckoutStarter interface {
	CreateCheckoutSession(ctx context.Context, customerID, priceID, userID, successURL, cancelURL string) (checkoutURL string, sessionID string, err error)
}

// PortalStarter creates a billing portal session for an existing customer.
type PortalStarter interface {
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// StripeGateway is the full provider surface the checkout service needs.
type StripeGateway interface {
	CustomerResolver
	CheckoutStarter
	PortalStarter
}

// AccountReader is the read side of the account store used to recover a
// previously stored customer reference.
type AccountReader interface {
	GetByUserID(ctx context.Context, userID string) (*types.Account, error)
}

// CheckoutService starts purchase flows. It persists nothing locally: local
// state changes only when the corresponding webhook event arrives.
//
// The service is constructed explicitly with its gateway; when billing is
// not configured the constructor receives a nil gateway and every operation
// fails fast with a configuration error instead of a nil dereference deep
// in a request.
type CheckoutService struct {
	gateway  StripeGateway
	accounts AccountReader
	logger   *slog.Logger
}

// NewCheckoutService creates a new CheckoutService. A nil gateway marks
// billing as not configured.
func NewCheckoutService(gateway StripeGateway, accounts AccountReader, logger *slog.Logger) *CheckoutService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutService{
		gateway:  gateway,
		accounts: accounts,
		logger:   logger,
	}
}

// Enabled reports whether a Stripe gateway was configured.
func (s *CheckoutService) Enabled() bool {
	return s.gateway != nil
}

func (s *CheckoutService) requireGateway() error {
	if s.gateway == nil {
		return types.NewAppError(
			types.ErrCodeConfigBillingDisabled,
			"billing is not configured on this deployment",
			nil,
		)
	}
	return nil
}

// StartCheckout resolves the user's Stripe customer and creates a
// subscription-mode checkout session for a single price, returning the
// redirect URL verbatim.
func (s *CheckoutService) StartCheckout(ctx context.Context, userID, userEmail, priceID, successURL, cancelURL string) (string, error) {
	if err := s.requireGateway(); err != nil {
		return "", err
	}
	if priceID == "" {
		return "", types.NewAppError(types.ErrCodeValidationMissingField, "price id is required", nil)
	}

	customerID, err := s.gateway.ResolveCustomer(ctx, userID, userEmail, s.storedCustomerID(ctx, userID))
	if err != nil {
		return "", err
	}

	redirectURL, sessionID, err := s.gateway.CreateCheckoutSession(ctx, customerID, priceID, userID, successURL, cancelURL)
	if err != nil {
		return "", err
	}

	s.logger.InfoContext(ctx, "checkout session created",
		"user_id", userID,
		"session_id", sessionID,
	)

	return redirectURL, nil
}

// StartPortal creates a billing portal session for the user's stored
// customer. A user with no stored customer has never completed checkout and
// has nothing to manage.
func (s *CheckoutService) StartPortal(ctx context.Context, userID, returnURL string) (string, error) {
	if err := s.requireGateway(); err != nil {
		return "", err
	}

	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}
	if account.StripeCustomerID == nil || *account.StripeCustomerID == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationMissingField,
			"account has no billing customer; complete checkout first",
			nil,
		)
	}

	return s.gateway.CreatePortalSession(ctx, *account.StripeCustomerID, returnURL)
}

// storedCustomerID returns the customer reference persisted by an earlier
// checkout completion, or "" when none exists. A missing account row is not
// an error here; checkout may run before any billing event has landed.
func (s *CheckoutService) storedCustomerID(ctx context.Context, userID string) string {
	account, err := s.accounts.GetByUserID(ctx, userID)
	if err != nil {
		var appErr *types.AppError
		if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeNotFoundAccount {
			s.logger.WarnContext(ctx, "failed to load account for customer lookup",
				"user_id", userID,
				"error", err,
			)
		}
		return ""
	}
	if account.StripeCustomerID == nil {
		return ""
	}
	return *account.StripeCustomerID
}
