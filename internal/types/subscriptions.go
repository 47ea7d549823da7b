package types

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus mirrors the billing backend's lifecycle states. The
// entitlement engine reads only the tier; status passes through for display.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionTrialing  SubscriptionStatus = "trialing"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionPastDue   SubscriptionStatus = "past_due"
)

// Subscription is one row of the remote subscriptions table. Rows are
// created and updated by the billing backend; this service never writes
// tier or status changes itself (CreateDefault excepted, for new users).
type Subscription struct {
	ID                 uuid.UUID          `json:"id"`
	UserID             uuid.UUID          `json:"user_id"`
	Tier               Tier               `json:"tier"`
	Status             SubscriptionStatus `json:"status"`
	Platform           string             `json:"platform"`
	CurrentPeriodStart *time.Time         `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time         `json:"current_period_end"`
	PriceCents         int64              `json:"price_cents"`
	Currency           string             `json:"currency"`
	CancelledAt        *time.Time         `json:"cancelled_at"`
	AgencyID           *uuid.UUID         `json:"agency_id"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// SubscriptionRepository defines methods for accessing subscription data.
type SubscriptionRepository interface {
	// GetCurrentByUserID fetches the most recently created subscription row
	// for a user. Returns ErrNotFound (wrapped) when no row exists, which
	// is the expected state for free users, not a failure.
	GetCurrentByUserID(ctx context.Context, userID uuid.UUID) (*Subscription, error)
	// CreateDefault creates the initial free subscription row for a new user.
	CreateDefault(ctx context.Context, userID uuid.UUID) error
}
