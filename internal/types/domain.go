package types

import (
	"encoding/json"
	"time"
)

// Plan identifies the billing tier for an account. Derived solely from
// billing events; user registration starts every account on PlanFree.
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

// Account is the durable per-user record holding the plan and the payment
// provider linkage. It is mutated exclusively by the billing reconciler;
// the settings and billing pages only read it.
type Account struct {
	UserID               string    `json:"user_id"`
	Plan                 Plan      `json:"plan"`
	StripeCustomerID     *string   `json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID *string   `json:"stripe_subscription_id,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// User is an authenticated identity. Registration creates the User and its
// Account row in the same transaction.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Session is a server-side login session referenced by an opaque cookie.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	IPAddress string    `json:"-"`
	UserAgent string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Project is a user-owned workspace the console operates on.
type Project struct {
	ID        string          `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Name      string          `json:"name"`
	Config    json.RawMessage `json:"config"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
