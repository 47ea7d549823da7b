package types

import (
	"fmt"

	"github.com/google/uuid"
)

// Tier identifies a subscription level. Tiers form a fixed total order
// (see TierOrder); access checks compare ranks, never raw strings.
type Tier string

const (
	TierFree      Tier = "free"
	TierPro       Tier = "pro"
	TierCorporate Tier = "corporate"
)

// TierOrder is the entitlement hierarchy from lowest to highest.
var TierOrder = []Tier{TierFree, TierPro, TierCorporate}

// Rank returns the position of the tier in the hierarchy. Unknown tiers
// rank below free so a malformed subscription row never grants access.
func (t Tier) Rank() int {
	for i, candidate := range TierOrder {
		if t == candidate {
			return i
		}
	}
	return -1
}

// Valid reports whether the tier is part of the known hierarchy.
func (t Tier) Valid() bool {
	return t.Rank() >= 0
}

// FeatureKey is an enumerated capability gate, independent of numeric limits.
type FeatureKey string

const (
	FeatureMultipleDoctors   FeatureKey = "multiple_doctors"
	FeatureUnlimitedStates   FeatureKey = "unlimited_states"
	FeatureAdvancedAnalytics FeatureKey = "advanced_analytics"
	FeatureCustomBranding    FeatureKey = "custom_branding"
	FeatureAPIAccess         FeatureKey = "api_access"
	FeatureTeamManagement    FeatureKey = "team_management"
)

// AllFeatureKeys lists every capability gate the catalog may grant.
var AllFeatureKeys = []FeatureKey{
	FeatureMultipleDoctors,
	FeatureUnlimitedStates,
	FeatureAdvancedAnalytics,
	FeatureCustomBranding,
	FeatureAPIAccess,
	FeatureTeamManagement,
}

// Price is either a fixed monthly amount or custom (contact sales) pricing.
// The Custom flag replaces the old price-zero sentinel so a genuinely free
// tier and "call us" pricing can never be confused.
type Price struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Custom      bool   `json:"custom"`
}

// FixedPrice builds a fixed monthly price.
func FixedPrice(amountCents int64, currency string) Price {
	return Price{AmountCents: amountCents, Currency: currency}
}

// CustomPrice builds the contact-for-pricing variant.
func CustomPrice() Price {
	return Price{Custom: true}
}

// Display renders the price for gating surfaces.
func (p Price) Display() string {
	if p.Custom {
		return "Custom pricing"
	}
	if p.AmountCents == 0 {
		return "Free"
	}
	return fmt.Sprintf("%s%.2f/mo", currencySymbol(p.Currency), float64(p.AmountCents)/100)
}

func currencySymbol(currency string) string {
	switch currency {
	case "USD", "":
		return "$"
	case "EUR":
		return "€"
	default:
		return currency + " "
	}
}

// Limit is a numeric cap on countable entities. Unlimited means no cap.
type Limit int

// Unlimited is the unbounded sentinel for Limit.
const Unlimited Limit = -1

// Allows reports whether one more entity may be added given the current count.
// A count at or above the limit denies; there is no separate over-limit state.
func (l Limit) Allows(count int) bool {
	if l == Unlimited {
		return true
	}
	return count < int(l)
}

// Unbounded reports whether the limit is the unlimited sentinel.
func (l Limit) Unbounded() bool {
	return l == Unlimited
}

// TierLimits holds the countable-entity caps granted by a tier.
type TierLimits struct {
	MaxDoctors Limit `json:"max_doctors"`
	MaxStates  Limit `json:"max_states"`
}

// TierConfig is the immutable configuration of one subscription tier.
type TierConfig struct {
	Tier        Tier                    `json:"tier"`
	DisplayName string                  `json:"display_name"`
	Description string                  `json:"description"`
	Price       Price                   `json:"price"`
	Features    map[FeatureKey]struct{} `json:"-"`
	Limits      TierLimits              `json:"limits"`
}

// HasFeature reports exact membership of the key in this tier's feature set.
func (c TierConfig) HasFeature(key FeatureKey) bool {
	_, ok := c.Features[key]
	return ok
}

// FeatureList returns the granted features in catalog declaration order.
func (c TierConfig) FeatureList() []FeatureKey {
	keys := make([]FeatureKey, 0, len(c.Features))
	for _, key := range AllFeatureKeys {
		if _, ok := c.Features[key]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// EntitlementSnapshot is the complete derived entitlement state at a point
// in time. Snapshots are replaced wholesale on every settle, never patched.
type EntitlementSnapshot struct {
	Subscription *Subscription `json:"subscription"`
	Tier         Tier          `json:"tier"`
	Loading      bool          `json:"is_loading"`
	Err          error         `json:"-"`
}

// GateDecision is what a gating surface renders on an entitlement check.
// On denial the required tier, the human-readable feature name, and the
// required tier's price are populated so the surface never shows raw keys.
type GateDecision struct {
	Allowed      bool   `json:"allowed"`
	RequiredTier Tier   `json:"required_tier,omitempty"`
	TierName     string `json:"tier_name,omitempty"`
	FeatureName  string `json:"feature_name,omitempty"`
	PriceDisplay string `json:"price_display,omitempty"`
}

// UserID is the opaque identity token of the active user. Absence (nil)
// is a valid state: a logged-out session is entitled as free, not errored.
type UserID = uuid.UUID
