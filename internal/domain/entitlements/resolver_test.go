package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credtrack/credtrack-api/internal/types"
)

func TestHasMinimumTier_Reflexive(t *testing.T) {
	for _, tier := range types.TierOrder {
		assert.True(t, HasMinimumTier(tier, tier), "tier %s should satisfy itself", tier)
	}
}

func TestHasMinimumTier_StrictHierarchy(t *testing.T) {
	for i, lower := range types.TierOrder {
		for _, higher := range types.TierOrder[i+1:] {
			assert.False(t, HasMinimumTier(lower, higher), "%s should not satisfy %s", lower, higher)
			assert.True(t, HasMinimumTier(higher, lower), "%s should satisfy %s", higher, lower)
		}
	}
}

func TestHasMinimumTier_UnknownTierNeverSatisfies(t *testing.T) {
	assert.False(t, HasMinimumTier(types.Tier("platinum"), types.TierFree))
}

func TestCanAddDoctor(t *testing.T) {
	tests := []struct {
		name  string
		tier  types.Tier
		count int
		want  bool
	}{
		{"free below limit", types.TierFree, 0, true},
		{"free at limit", types.TierFree, 1, false},
		{"free over limit", types.TierFree, 5, false},
		{"pro below limit", types.TierPro, 9, true},
		{"pro at limit", types.TierPro, 10, false},
		{"corporate unbounded", types.TierCorporate, 100000, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanAddDoctor(tt.tier, tt.count))
		})
	}
}

func TestCanAddDoctor_UnboundedAlwaysAllows(t *testing.T) {
	require.True(t, ConfigOf(types.TierCorporate).Limits.MaxDoctors.Unbounded())
	for _, count := range []int{0, 1, 10, 1 << 20} {
		assert.True(t, CanAddDoctor(types.TierCorporate, count))
	}
}

func TestCanAddState(t *testing.T) {
	assert.True(t, CanAddState(types.TierFree, 0))
	assert.False(t, CanAddState(types.TierFree, 1))
	assert.True(t, CanAddState(types.TierPro, 50))
	assert.True(t, CanAddState(types.TierCorporate, 50))
}

func TestHasFeature_AdvancedAnalytics(t *testing.T) {
	assert.False(t, HasFeature(types.TierFree, types.FeatureAdvancedAnalytics))
	assert.True(t, HasFeature(types.TierPro, types.FeatureAdvancedAnalytics))
	assert.True(t, HasFeature(types.TierCorporate, types.FeatureAdvancedAnalytics))
}

func TestHasFeature_CorporateOnlyKeys(t *testing.T) {
	for _, key := range []types.FeatureKey{
		types.FeatureCustomBranding,
		types.FeatureAPIAccess,
		types.FeatureTeamManagement,
	} {
		assert.False(t, HasFeature(types.TierFree, key))
		assert.False(t, HasFeature(types.TierPro, key))
		assert.True(t, HasFeature(types.TierCorporate, key))
	}
}

func TestGateFeature_DenialPayload(t *testing.T) {
	decision := GateFeature(types.TierFree, types.FeatureAdvancedAnalytics)
	require.False(t, decision.Allowed)
	assert.Equal(t, types.TierPro, decision.RequiredTier)
	assert.Equal(t, "Pro", decision.TierName)
	assert.Equal(t, "Advanced analytics", decision.FeatureName)
	assert.Equal(t, "$29.99/mo", decision.PriceDisplay)
}

func TestGateFeature_CustomPricingSentinel(t *testing.T) {
	decision := GateFeature(types.TierPro, types.FeatureAPIAccess)
	require.False(t, decision.Allowed)
	assert.Equal(t, types.TierCorporate, decision.RequiredTier)
	assert.Equal(t, "Custom pricing", decision.PriceDisplay)
}

func TestGateFeature_Allowed(t *testing.T) {
	decision := GateFeature(types.TierPro, types.FeatureMultipleDoctors)
	assert.True(t, decision.Allowed)
	assert.Empty(t, decision.TierName)
}

func TestGateDoctorCount_AllowedStaysEmpty(t *testing.T) {
	decision := GateDoctorCount(types.TierPro, 9)
	assert.True(t, decision.Allowed)
	assert.Empty(t, decision.RequiredTier)
	assert.Empty(t, decision.TierName)
	assert.Empty(t, decision.PriceDisplay)
}

func TestGateDoctorCount_FreeAtLimitPointsToPro(t *testing.T) {
	decision := GateDoctorCount(types.TierFree, 1)
	require.False(t, decision.Allowed)
	assert.Equal(t, types.TierPro, decision.RequiredTier)
	assert.Equal(t, "Pro", decision.TierName)
	assert.Equal(t, "Multiple doctors", decision.FeatureName)
	assert.Equal(t, "$29.99/mo", decision.PriceDisplay)
}

func TestGateDoctorCount_ProAtLimitPointsToCorporate(t *testing.T) {
	decision := GateDoctorCount(types.TierPro, 10)
	require.False(t, decision.Allowed)
	assert.Equal(t, types.TierCorporate, decision.RequiredTier)
	assert.Equal(t, "Corporate", decision.TierName)
	assert.Equal(t, "Custom pricing", decision.PriceDisplay)
}

func TestGateStateCount(t *testing.T) {
	allowed := GateStateCount(types.TierPro, 50)
	assert.True(t, allowed.Allowed)

	denied := GateStateCount(types.TierFree, 1)
	require.False(t, denied.Allowed)
	assert.Equal(t, types.TierPro, denied.RequiredTier)
	assert.Equal(t, "Unlimited state licenses", denied.FeatureName)
	assert.Equal(t, "$29.99/mo", denied.PriceDisplay)
}

func TestGateMinimumTier(t *testing.T) {
	allowed := GateMinimumTier(types.TierCorporate, types.TierPro)
	assert.True(t, allowed.Allowed)

	denied := GateMinimumTier(types.TierFree, types.TierPro)
	require.False(t, denied.Allowed)
	assert.Equal(t, "Pro", denied.TierName)
	assert.Equal(t, "$29.99/mo", denied.PriceDisplay)
}
