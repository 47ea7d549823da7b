package entitlements

import (
	"github.com/credtrack/credtrack-api/internal/types"
)

// The resolver is a set of pure predicates over the tier catalog. Every
// gating decision in the application reduces to one of these; they do no
// I/O and never fail.

// HasMinimumTier reports whether current ranks at or above required in
// the tier hierarchy. Reflexive: every tier satisfies itself.
func HasMinimumTier(current, required types.Tier) bool {
	return current.Rank() >= required.Rank()
}

// CanAddDoctor reports whether a tier allows tracking one more doctor
// given the current count. An unbounded limit always allows.
func CanAddDoctor(current types.Tier, count int) bool {
	return ConfigOf(current).Limits.MaxDoctors.Allows(count)
}

// CanAddState reports whether a tier allows one more state license given
// the current count.
func CanAddState(current types.Tier, count int) bool {
	return ConfigOf(current).Limits.MaxStates.Allows(count)
}

// HasFeature reports whether the tier's configured feature set contains
// the key. Membership is exact: a feature granted only by a lower tier
// is not inherited (the catalog re-lists inherited features explicitly).
func HasFeature(current types.Tier, key types.FeatureKey) bool {
	return ConfigOf(current).HasFeature(key)
}

// GateFeature evaluates a feature check and, on denial, fills in what a
// gating surface must present: the required tier's display name, the
// human-readable feature name, and the required tier's price display.
func GateFeature(current types.Tier, key types.FeatureKey) types.GateDecision {
	if HasFeature(current, key) {
		return types.GateDecision{Allowed: true}
	}
	decision := types.GateDecision{
		Allowed:     false,
		FeatureName: FeatureName(key),
	}
	if required, ok := RequiredTierFor(key); ok {
		cfg := ConfigOf(required)
		decision.RequiredTier = required
		decision.TierName = cfg.DisplayName
		decision.PriceDisplay = cfg.Price.Display()
	}
	return decision
}

// GateDoctorCount evaluates adding one more doctor at the given count.
// On denial the payload names the lowest tier whose doctor limit allows
// the add, so the upgrade prompt is correct at every tier, not just free.
func GateDoctorCount(current types.Tier, count int) types.GateDecision {
	if CanAddDoctor(current, count) {
		return types.GateDecision{Allowed: true}
	}
	return countDenial(types.FeatureMultipleDoctors, count, func(cfg types.TierConfig) types.Limit {
		return cfg.Limits.MaxDoctors
	})
}

// GateStateCount evaluates adding a license in a new state at the given
// distinct-state count, with the same denial payload contract.
func GateStateCount(current types.Tier, count int) types.GateDecision {
	if CanAddState(current, count) {
		return types.GateDecision{Allowed: true}
	}
	return countDenial(types.FeatureUnlimitedStates, count, func(cfg types.TierConfig) types.Limit {
		return cfg.Limits.MaxStates
	})
}

func countDenial(key types.FeatureKey, count int, limit func(types.TierConfig) types.Limit) types.GateDecision {
	decision := types.GateDecision{
		Allowed:     false,
		FeatureName: FeatureName(key),
	}
	for _, tier := range types.TierOrder {
		cfg := ConfigOf(tier)
		if limit(cfg).Allows(count) {
			decision.RequiredTier = tier
			decision.TierName = cfg.DisplayName
			decision.PriceDisplay = cfg.Price.Display()
			break
		}
	}
	return decision
}

// GateMinimumTier evaluates an at-least-tier check with the same denial
// payload contract as GateFeature.
func GateMinimumTier(current, required types.Tier) types.GateDecision {
	if HasMinimumTier(current, required) {
		return types.GateDecision{Allowed: true}
	}
	cfg := ConfigOf(required)
	return types.GateDecision{
		Allowed:      false,
		RequiredTier: required,
		TierName:     cfg.DisplayName,
		PriceDisplay: cfg.Price.Display(),
	}
}
