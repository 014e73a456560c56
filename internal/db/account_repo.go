package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"lattice/internal/types"
)

// AccountRepository provides data access for the accounts table: the durable
// per-user plan and payment linkage mutated by the billing reconciler.
//
// Every billing mutation is a single-row upsert keyed by user_id and scoped
// to the plan/payment columns only. Each statement is a pure function of the
// incoming event's data, so replaying an event leaves the row unchanged and
// concurrent deliveries serialize through the row update without any
// in-process coordination.
type AccountRepository struct {
	db     DBTX
	logger *slog.Logger
}

// NewAccountRepository creates a new AccountRepository backed by the given
// database connection (pool or transaction).
func NewAccountRepository(db DBTX, logger *slog.Logger) *AccountRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountRepository{db: db, logger: logger}
}

// accountColumns defines the standard set of columns selected for account
// queries. Used consistently across all query methods to avoid column drift.
const accountColumns = `a.user_id, a.plan, a.stripe_customer_id, a.stripe_subscription_id,
	a.created_at, a.updated_at`

// scanAccount scans a single account row into a types.Account struct.
// The columns must match the order defined in accountColumns.
func scanAccount(row pgx.Row) (*types.Account, error) {
	var a types.Account
	err := row.Scan(
		&a.UserID,
		&a.Plan,
		&a.StripeCustomerID,
		&a.StripeSubscriptionID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByUserID retrieves the account for the given user.
// Returns ErrCodeNotFoundAccount if no account row exists.
func (r *AccountRepository) GetByUserID(ctx context.Context, userID string) (*types.Account, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+accountColumns+`
		 FROM accounts a
		 WHERE a.user_id = $1`,
		userID,
	)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAccount, "account not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load account", err)
	}
	return account, nil
}

// Create inserts the initial account row for a freshly registered user:
// plan=free, no payment identifiers. Called inside the registration
// transaction.
func (r *AccountRepository) Create(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO accounts (user_id, plan, created_at, updated_at)
		 VALUES ($1, $2, NOW(), NOW())`,
		userID,
		types.PlanFree,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create account", err)
	}
	return nil
}

// ApplyCheckoutCompleted records a confirmed subscription purchase:
// plan becomes pro and both payment identifiers are set. This is the only
// mutation that writes stripe_customer_id.
func (r *AccountRepository) ApplyCheckoutCompleted(ctx context.Context, userID, customerID, subscriptionID string) error {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO accounts (user_id, plan, stripe_customer_id, stripe_subscription_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET plan = EXCLUDED.plan,
		     stripe_customer_id = EXCLUDED.stripe_customer_id,
		     stripe_subscription_id = EXCLUDED.stripe_subscription_id,
		     updated_at = NOW()`,
		userID,
		types.PlanPro,
		customerID,
		subscriptionID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply checkout completion", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "checkout completion touched no rows",
			slog.String("user_id", userID),
		)
	}
	return nil
}

// ApplySubscriptionActive records an active subscription: plan becomes pro
// and the subscription reference is set. The customer id is left untouched.
func (r *AccountRepository) ApplySubscriptionActive(ctx context.Context, userID, subscriptionID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO accounts (user_id, plan, stripe_subscription_id, created_at, updated_at)
		 VALUES ($1, $2, $3, NOW(), NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET plan = EXCLUDED.plan,
		     stripe_subscription_id = EXCLUDED.stripe_subscription_id,
		     updated_at = NOW()`,
		userID,
		types.PlanPro,
		subscriptionID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply active subscription", err)
	}
	return nil
}

// ApplySubscriptionDeleted records a cancelled subscription: plan reverts to
// free and the subscription reference is cleared. The customer id is kept so
// the user can resubscribe against the same Stripe customer.
func (r *AccountRepository) ApplySubscriptionDeleted(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO accounts (user_id, plan, created_at, updated_at)
		 VALUES ($1, $2, NOW(), NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET plan = EXCLUDED.plan,
		     stripe_subscription_id = NULL,
		     updated_at = NOW()`,
		userID,
		types.PlanFree,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to apply subscription deletion", err)
	}
	return nil
}
