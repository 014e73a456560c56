// Package billing implements checkout initiation and webhook event
// reconciliation. The two halves never talk to each other directly: checkout
// embeds the user ID into Stripe metadata, and the reconciler reads it back
// out of webhook payloads to mutate the local account row.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"lattice/internal/types"
)

// Stripe event types the reconciler acts on. Everything else is
// acknowledged and ignored.
const (
	EventCheckoutCompleted  = "checkout.session.completed"
	EventSubscriptionUpdate = "customer.subscription.updated"
	EventSubscriptionDelete = "customer.subscription.deleted"
)

// subscriptionStatusActive is the only provider-reported status that
// upgrades a plan. Transient states (past_due, incomplete, unpaid) leave the
// plan untouched rather than downgrading, to avoid flapping; only an
// explicit deletion downgrades.
const subscriptionStatusActive = "active"

// AccountStore is the account mutation surface the reconciler drives. Every
// method is an idempotent single-row upsert keyed by user ID and scoped to
// the plan and payment linkage columns.
type AccountStore interface {
	ApplyCheckoutCompleted(ctx context.Context, userID, customerID, subscriptionID string) error
	ApplySubscriptionActive(ctx context.Context, userID, subscriptionID string) error
	ApplySubscriptionDeleted(ctx context.Context, userID string) error
}

// Reconciler applies verified Stripe webhook events to local account state.
// It assumes the payload has already passed signature verification; nothing
// unverified may reach it.
type Reconciler struct {
	accounts AccountStore
	logger   *slog.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(accounts AccountStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{accounts: accounts, logger: logger}
}

// Apply parses a verified event payload and dispatches it by type.
//
// Events with no recoverable user ID are skipped with a log line, not
// failed: provider test events and subscriptions created outside this flow
// legitimately lack our metadata, and failing them would only trigger
// pointless redelivery. Unknown event types are likewise acknowledged
// without any write.
func (r *Reconciler) Apply(ctx context.Context, payload []byte) error {
	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "invalid webhook event JSON", err)
	}

	r.logger.InfoContext(ctx, "processing stripe webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	switch event.Type {
	case EventCheckoutCompleted:
		return r.applyCheckoutCompleted(ctx, &event)
	case EventSubscriptionUpdate:
		return r.applySubscriptionUpdated(ctx, &event)
	case EventSubscriptionDelete:
		return r.applySubscriptionDeleted(ctx, &event)
	default:
		r.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			"event_type", event.Type,
		)
		return nil
	}
}

func (r *Reconciler) applyCheckoutCompleted(ctx context.Context, event *webhookEvent) error {
	var session checkoutSessionObject
	if err := event.decodeObject(&session); err != nil {
		return err
	}

	sub := session.Subscription.normalize()
	userID := sub.metadata["userId"]
	if userID == "" {
		userID = session.Metadata["userId"]
	}
	if userID == "" {
		r.skip(ctx, event, "no user id in subscription or session metadata")
		return nil
	}

	r.logger.InfoContext(ctx, "applying checkout completion",
		"event_id", event.ID,
		"user_id", userID,
	)

	return r.accounts.ApplyCheckoutCompleted(ctx, userID, session.Customer.normalize().id, sub.id)
}

func (r *Reconciler) applySubscriptionUpdated(ctx context.Context, event *webhookEvent) error {
	sub, userID, err := r.decodeSubscription(ctx, event)
	if err != nil || userID == "" {
		return err
	}

	if sub.Status != subscriptionStatusActive {
		r.logger.InfoContext(ctx, "ignoring non-active subscription update",
			"event_id", event.ID,
			"user_id", userID,
			"status", sub.Status,
		)
		return nil
	}

	r.logger.InfoContext(ctx, "applying subscription activation",
		"event_id", event.ID,
		"user_id", userID,
	)

	return r.accounts.ApplySubscriptionActive(ctx, userID, sub.ID)
}

func (r *Reconciler) applySubscriptionDeleted(ctx context.Context, event *webhookEvent) error {
	_, userID, err := r.decodeSubscription(ctx, event)
	if err != nil || userID == "" {
		return err
	}

	r.logger.InfoContext(ctx, "applying subscription deletion",
		"event_id", event.ID,
		"user_id", userID,
	)

	return r.accounts.ApplySubscriptionDeleted(ctx, userID)
}

// decodeSubscription extracts the subscription object from an event whose
// data object is the subscription itself. A missing user ID is a logged
// skip, reported as ("", nil).
func (r *Reconciler) decodeSubscription(ctx context.Context, event *webhookEvent) (*subscriptionObject, string, error) {
	var sub subscriptionObject
	if err := event.decodeObject(&sub); err != nil {
		return nil, "", err
	}

	userID := sub.Metadata["userId"]
	if userID == "" {
		r.skip(ctx, event, "no user id in subscription metadata")
		return &sub, "", nil
	}
	return &sub, userID, nil
}

func (r *Reconciler) skip(ctx context.Context, event *webhookEvent, reason string) {
	r.logger.WarnContext(ctx, "skipping webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
		"reason", reason,
	)
}

// ---------------------------------------------------------------------------
// Event Parsing
// ---------------------------------------------------------------------------

// webhookEvent is a minimal representation of a Stripe webhook event. We
// avoid the full stripe.Event type: only a handful of fields matter here and
// minimal structs keep test fixtures readable.
type webhookEvent struct {
	ID      string           `json:"id"`
	Type    string           `json:"type"`
	Created int64            `json:"created"`
	Data    webhookEventData `json:"data"`
}

type webhookEventData struct {
	Object json.RawMessage `json:"object"`
}

func (e *webhookEvent) decodeObject(dst any) error {
	if err := json.Unmarshal(e.Data.Object, dst); err != nil {
		return types.NewAppError(
			types.ErrCodeValidationInvalidJSON,
			fmt.Sprintf("invalid data object in %s event", e.Type),
			err,
		)
	}
	return nil
}

// checkoutSessionObject holds the fields we read from a
// checkout.session.completed data object.
type checkoutSessionObject struct {
	Customer     expandableRef     `json:"customer"`
	Subscription expandableRef     `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

// subscriptionObject holds the fields we read from a customer.subscription.*
// data object.
type subscriptionObject struct {
	ID       string            `json:"id"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

// expandableRef is a Stripe reference that arrives either as a bare ID
// string or as an expanded object. Normalization happens exactly once, in
// normalize, so the dispatch code only ever sees a plain string ID plus
// whatever metadata the expanded form carried.
type expandableRef struct {
	raw json.RawMessage
}

func (r *expandableRef) UnmarshalJSON(data []byte) error {
	r.raw = append(r.raw[:0], data...)
	return nil
}

// normalizedRef is the flattened form of an expandableRef.
type normalizedRef struct {
	id       string
	metadata map[string]string
}

func (r expandableRef) normalize() normalizedRef {
	if len(r.raw) == 0 || string(r.raw) == "null" {
		return normalizedRef{}
	}

	var id string
	if err := json.Unmarshal(r.raw, &id); err == nil {
		return normalizedRef{id: id}
	}

	var obj struct {
		ID       string            `json:"id"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.Unmarshal(r.raw, &obj); err == nil {
		return normalizedRef{id: obj.ID, metadata: obj.Metadata}
	}

	return normalizedRef{}
}
