package entitlements

import (
	"github.com/credtrack/credtrack-api/internal/types"
)

// featureNames is the display table for capability gates. Gating surfaces
// render these, never the raw keys.
var featureNames = map[types.FeatureKey]string{
	types.FeatureMultipleDoctors:   "Multiple doctors",
	types.FeatureUnlimitedStates:   "Unlimited state licenses",
	types.FeatureAdvancedAnalytics: "Advanced analytics",
	types.FeatureCustomBranding:    "Custom branding",
	types.FeatureAPIAccess:         "API access",
	types.FeatureTeamManagement:    "Team management",
}

// FeatureName returns the human-readable name for a capability gate.
// Unknown keys fall back to the raw key so nothing renders empty.
func FeatureName(key types.FeatureKey) string {
	if name, ok := featureNames[key]; ok {
		return name
	}
	return string(key)
}

func featureSet(keys ...types.FeatureKey) map[types.FeatureKey]struct{} {
	set := make(map[types.FeatureKey]struct{}, len(keys))
	for _, key := range keys {
		set[key] = struct{}{}
	}
	return set
}

// catalog is the complete tier configuration. It is built once at init
// and never mutated; every tier in types.TierOrder has an entry.
//
// Catalog maintenance rule: each tier's feature set must re-list every
// feature granted by lower tiers. HasFeature is exact membership, not
// rank-based inclusion.
var catalog = map[types.Tier]types.TierConfig{
	types.TierFree: {
		Tier:        types.TierFree,
		DisplayName: "Free",
		Description: "Track one doctor and one state license.",
		Price:       types.FixedPrice(0, "USD"),
		Features:    featureSet(),
		Limits: types.TierLimits{
			MaxDoctors: 1,
			MaxStates:  1,
		},
	},
	types.TierPro: {
		Tier:        types.TierPro,
		DisplayName: "Pro",
		Description: "Multiple doctors, unlimited states, and compliance analytics.",
		Price:       types.FixedPrice(2999, "USD"),
		Features: featureSet(
			types.FeatureMultipleDoctors,
			types.FeatureUnlimitedStates,
			types.FeatureAdvancedAnalytics,
		),
		Limits: types.TierLimits{
			MaxDoctors: 10,
			MaxStates:  types.Unlimited,
		},
	},
	types.TierCorporate: {
		Tier:        types.TierCorporate,
		DisplayName: "Corporate",
		Description: "Everything in Pro plus branding, API access, and team management.",
		Price:       types.CustomPrice(),
		Features: featureSet(
			types.FeatureMultipleDoctors,
			types.FeatureUnlimitedStates,
			types.FeatureAdvancedAnalytics,
			types.FeatureCustomBranding,
			types.FeatureAPIAccess,
			types.FeatureTeamManagement,
		),
		Limits: types.TierLimits{
			MaxDoctors: types.Unlimited,
			MaxStates:  types.Unlimited,
		},
	},
}

// ConfigOf returns the configuration for a tier. The lookup is total:
// a tier outside the known hierarchy resolves to the free configuration
// so a malformed row can never grant paid access.
func ConfigOf(tier types.Tier) types.TierConfig {
	if cfg, ok := catalog[tier]; ok {
		return cfg
	}
	return catalog[types.TierFree]
}

// Catalog returns every tier configuration in hierarchy order, for the
// pricing surface.
func Catalog() []types.TierConfig {
	configs := make([]types.TierConfig, 0, len(types.TierOrder))
	for _, tier := range types.TierOrder {
		configs = append(configs, catalog[tier])
	}
	return configs
}

// RequiredTierFor returns the lowest tier granting a feature. The second
// return is false when no tier grants the key.
func RequiredTierFor(key types.FeatureKey) (types.Tier, bool) {
	for _, tier := range types.TierOrder {
		if catalog[tier].HasFeature(key) {
			return tier, true
		}
	}
	return "", false
}
