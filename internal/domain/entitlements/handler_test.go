package entitlements

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/credtrack/credtrack-api/internal/types"
)

func newTestRequest(t *testing.T, p *Provider, method, target string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	return req.WithContext(WithProvider(context.Background(), p))
}

func providerWithTier(t *testing.T, tier types.Tier) *Provider {
	t.Helper()
	userID := uuid.New()
	repo := new(mockSubscriptionRepo)
	repo.On("GetCurrentByUserID", mock.Anything, userID).
		Return(subscriptionFor(userID, tier), nil)
	p := NewProvider(repo, testLogger())
	p.SetIdentity(context.Background(), &userID)
	return p
}

func TestHandlerSnapshot_ProTier(t *testing.T) {
	h := NewHandler(testLogger())
	rec := httptest.NewRecorder()
	h.Snapshot(rec, newTestRequest(t, providerWithTier(t, types.TierPro), http.MethodGet, "/v1/entitlements"))

	require.Equal(t, http.StatusOK, rec.Code)
	var got snapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, types.TierPro, got.Tier)
	assert.False(t, got.Loading)
	assert.Empty(t, got.Error)
	assert.Equal(t, limitPayload{Max: 10}, got.Limits.Doctors)
	assert.True(t, got.Limits.States.Unlimited)
	require.NotNil(t, got.Current)

	var keys []types.FeatureKey
	for _, f := range got.Features {
		keys = append(keys, f.Key)
	}
	assert.Contains(t, keys, types.FeatureAdvancedAnalytics)
	assert.NotContains(t, keys, types.FeatureAPIAccess)
}

func TestHandlerSnapshot_AnonymousIsFree(t *testing.T) {
	h := NewHandler(testLogger())
	p := NewProvider(new(mockSubscriptionRepo), testLogger())
	rec := httptest.NewRecorder()
	h.Snapshot(rec, newTestRequest(t, p, http.MethodGet, "/v1/entitlements"))

	require.Equal(t, http.StatusOK, rec.Code)
	var got snapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, types.TierFree, got.Tier)
	assert.Equal(t, limitPayload{Max: 1}, got.Limits.Doctors)
	assert.Empty(t, got.Features)
	assert.Nil(t, got.Current)
}

func TestHandlerRefresh_ReturnsSettledState(t *testing.T) {
	userID := uuid.New()
	repo := new(mockSubscriptionRepo)
	repo.On("GetCurrentByUserID", mock.Anything, userID).
		Return(subscriptionFor(userID, types.TierCorporate), nil)
	p := NewProvider(repo, testLogger())
	p.SetIdentity(context.Background(), &userID)

	h := NewHandler(testLogger())
	rec := httptest.NewRecorder()
	h.Refresh(rec, newTestRequest(t, p, http.MethodPost, "/v1/entitlements/refresh"))

	require.Equal(t, http.StatusOK, rec.Code)
	var got snapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, types.TierCorporate, got.Tier)
	assert.False(t, got.Loading)
	repo.AssertNumberOfCalls(t, "GetCurrentByUserID", 2)
}

func TestHandlerGate_FeatureDeniedForFree(t *testing.T) {
	h := NewHandler(testLogger())
	p := NewProvider(new(mockSubscriptionRepo), testLogger())
	rec := httptest.NewRecorder()
	h.Gate(rec, newTestRequest(t, p, http.MethodGet, "/v1/entitlements/gate?feature=advanced_analytics"))

	require.Equal(t, http.StatusOK, rec.Code)
	var got gateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Allowed)
	assert.Equal(t, "pro", got.RequiredTier)
	assert.Equal(t, "Pro", got.TierName)
	assert.Equal(t, "Advanced analytics", got.FeatureName)
	assert.Equal(t, "$29.99/mo", got.PriceDisplay)
}

func TestHandlerGate_FeatureAllowedForPro(t *testing.T) {
	h := NewHandler(testLogger())
	rec := httptest.NewRecorder()
	h.Gate(rec, newTestRequest(t, providerWithTier(t, types.TierPro), http.MethodGet, "/v1/entitlements/gate?feature=advanced_analytics"))

	require.Equal(t, http.StatusOK, rec.Code)
	var got gateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Allowed)
	assert.Empty(t, got.RequiredTier)
}

func TestHandlerGate_MinimumTier(t *testing.T) {
	h := NewHandler(testLogger())
	rec := httptest.NewRecorder()
	h.Gate(rec, newTestRequest(t, providerWithTier(t, types.TierPro), http.MethodGet, "/v1/entitlements/gate?tier=corporate"))

	require.Equal(t, http.StatusOK, rec.Code)
	var got gateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Allowed)
	assert.Equal(t, "corporate", got.RequiredTier)
	assert.Equal(t, "Custom pricing", got.PriceDisplay)
}

func TestHandlerGate_DoctorCount(t *testing.T) {
	h := NewHandler(testLogger())
	p := providerWithTier(t, types.TierPro)

	rec := httptest.NewRecorder()
	h.Gate(rec, newTestRequest(t, p, http.MethodGet, "/v1/entitlements/gate?doctors=9"))
	var got gateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Allowed)

	rec = httptest.NewRecorder()
	h.Gate(rec, newTestRequest(t, p, http.MethodGet, "/v1/entitlements/gate?doctors=10"))
	got = gateResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Allowed)
	assert.Equal(t, string(types.TierCorporate), got.RequiredTier)
	assert.Equal(t, "Corporate", got.TierName)
	assert.Equal(t, "Custom pricing", got.PriceDisplay)
	assert.Equal(t, "Multiple doctors", got.FeatureName)
}

func TestHandlerGate_StateCount(t *testing.T) {
	h := NewHandler(testLogger())
	p := providerWithTier(t, types.TierFree)

	rec := httptest.NewRecorder()
	h.Gate(rec, newTestRequest(t, p, http.MethodGet, "/v1/entitlements/gate?states=1"))
	var got gateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Allowed)
	assert.Equal(t, string(types.TierPro), got.RequiredTier)
	assert.Equal(t, "Pro", got.TierName)
	assert.Equal(t, "$29.99/mo", got.PriceDisplay)
	assert.Equal(t, "Unlimited state licenses", got.FeatureName)
}

func TestHandlerGate_BadInput(t *testing.T) {
	h := NewHandler(testLogger())
	p := NewProvider(new(mockSubscriptionRepo), testLogger())

	for _, target := range []string{
		"/v1/entitlements/gate",
		"/v1/entitlements/gate?feature=time_travel",
		"/v1/entitlements/gate?tier=platinum",
		"/v1/entitlements/gate?doctors=-1",
		"/v1/entitlements/gate?states=lots",
	} {
		rec := httptest.NewRecorder()
		h.Gate(rec, newTestRequest(t, p, http.MethodGet, target))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestHandlerPricing_ListsAllTiers(t *testing.T) {
	h := NewHandler(testLogger())
	rec := httptest.NewRecorder()
	h.Pricing(rec, httptest.NewRequest(http.MethodGet, "/v1/pricing", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Tiers []pricingTier `json:"tiers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Tiers, 3)
	assert.Equal(t, types.TierFree, got.Tiers[0].Tier)
	assert.Equal(t, "Free", got.Tiers[0].Price)
	assert.Equal(t, "$29.99/mo", got.Tiers[1].Price)
	assert.Equal(t, "Custom pricing", got.Tiers[2].Price)
	assert.True(t, got.Tiers[2].Limits.Doctors.Unlimited)
	assert.Len(t, got.Tiers[2].Features, len(types.AllFeatureKeys))
}
