package entitlements

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/credtrack/credtrack-api/internal/types"
	"github.com/credtrack/credtrack-api/pkg/server"
)

type Handler struct {
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

type snapshotResponse struct {
	Tier     types.Tier          `json:"tier"`
	Loading  bool                `json:"loading"`
	Error    string              `json:"error,omitempty"`
	Limits   limitsPayload       `json:"limits"`
	Features []featurePayload    `json:"features"`
	Current  *types.Subscription `json:"subscription,omitempty"`
}

type limitsPayload struct {
	Doctors limitPayload `json:"doctors"`
	States  limitPayload `json:"states"`
}

type limitPayload struct {
	Unlimited bool `json:"unlimited"`
	Max       int  `json:"max,omitempty"`
}

type featurePayload struct {
	Key  types.FeatureKey `json:"key"`
	Name string           `json:"name"`
}

func toLimitPayload(l types.Limit) limitPayload {
	if l.Unbounded() {
		return limitPayload{Unlimited: true}
	}
	return limitPayload{Max: int(l)}
}

func toSnapshotResponse(view Entitlements) snapshotResponse {
	cfg := ConfigOf(view.Tier)
	resp := snapshotResponse{
		Tier:    view.Tier,
		Loading: view.Loading,
		Limits: limitsPayload{
			Doctors: toLimitPayload(cfg.Limits.MaxDoctors),
			States:  toLimitPayload(cfg.Limits.MaxStates),
		},
		Current: view.Subscription,
	}
	if view.Err != nil {
		resp.Error = view.Err.Error()
	}
	for _, key := range cfg.FeatureList() {
		resp.Features = append(resp.Features, featurePayload{Key: key, Name: FeatureName(key)})
	}
	return resp
}

// Snapshot reports the caller's current entitlement state.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	provider := FromContext(r.Context())
	server.WriteJSON(w, http.StatusOK, toSnapshotResponse(provider.View()))
}

// Refresh re-fetches the subscription and returns the settled state.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	provider := FromContext(r.Context())
	provider.Refresh(r.Context())
	server.WriteJSON(w, http.StatusOK, toSnapshotResponse(provider.View()))
}

type gateResponse struct {
	Allowed      bool   `json:"allowed"`
	RequiredTier string `json:"required_tier,omitempty"`
	TierName     string `json:"tier_name,omitempty"`
	FeatureName  string `json:"feature_name,omitempty"`
	PriceDisplay string `json:"price_display,omitempty"`
}

func toGateResponse(d types.GateDecision) gateResponse {
	resp := gateResponse{Allowed: d.Allowed}
	if !d.Allowed {
		resp.RequiredTier = string(d.RequiredTier)
		resp.TierName = d.TierName
		resp.FeatureName = d.FeatureName
		resp.PriceDisplay = d.PriceDisplay
	}
	return resp
}

// Gate answers access questions about the caller's tier. Exactly one of
// the feature, tier, doctors or states query parameters selects the check.
func (h *Handler) Gate(w http.ResponseWriter, r *http.Request) {
	view := FromContext(r.Context()).View()
	q := r.URL.Query()

	switch {
	case q.Has("feature"):
		key := types.FeatureKey(q.Get("feature"))
		if _, ok := RequiredTierFor(key); !ok {
			server.WriteJSON(w, http.StatusBadRequest, server.ErrorResponse{Error: "unknown feature key"})
			return
		}
		h.writeGate(w, r, GateFeature(view.Tier, key), view.Tier, string(key))
	case q.Has("tier"):
		required := types.Tier(q.Get("tier"))
		if !required.Valid() {
			server.WriteJSON(w, http.StatusBadRequest, server.ErrorResponse{Error: "unknown tier"})
			return
		}
		h.writeGate(w, r, GateMinimumTier(view.Tier, required), view.Tier, string(required))
	case q.Has("doctors"):
		count, err := strconv.Atoi(q.Get("doctors"))
		if err != nil || count < 0 {
			server.WriteJSON(w, http.StatusBadRequest, server.ErrorResponse{Error: "doctors must be a non-negative integer"})
			return
		}
		h.writeGate(w, r, GateDoctorCount(view.Tier, count), view.Tier, "doctors")
	case q.Has("states"):
		count, err := strconv.Atoi(q.Get("states"))
		if err != nil || count < 0 {
			server.WriteJSON(w, http.StatusBadRequest, server.ErrorResponse{Error: "states must be a non-negative integer"})
			return
		}
		h.writeGate(w, r, GateStateCount(view.Tier, count), view.Tier, "states")
	default:
		server.WriteJSON(w, http.StatusBadRequest, server.ErrorResponse{Error: "one of feature, tier, doctors or states is required"})
	}
}

// writeGate writes a gate decision, logging denials with enough context
// to trace upgrade-prompt impressions.
func (h *Handler) writeGate(w http.ResponseWriter, r *http.Request, decision types.GateDecision, current types.Tier, check string) {
	if !decision.Allowed {
		h.logger.InfoContext(r.Context(), "entitlement gate denied",
			slog.String("check", check),
			slog.String("tier", string(current)),
			slog.String("required_tier", string(decision.RequiredTier)))
	}
	server.WriteJSON(w, http.StatusOK, toGateResponse(decision))
}

type pricingTier struct {
	Tier     types.Tier       `json:"tier"`
	Price    string           `json:"price"`
	Limits   limitsPayload    `json:"limits"`
	Features []featurePayload `json:"features"`
}

// Pricing lists every tier with its price, limits and features. The
// route is public so upgrade prompts can render without a session.
func (h *Handler) Pricing(w http.ResponseWriter, r *http.Request) {
	tiers := make([]pricingTier, 0, len(types.TierOrder))
	for _, cfg := range Catalog() {
		entry := pricingTier{
			Tier:  cfg.Tier,
			Price: cfg.Price.Display(),
			Limits: limitsPayload{
				Doctors: toLimitPayload(cfg.Limits.MaxDoctors),
				States:  toLimitPayload(cfg.Limits.MaxStates),
			},
			Features: make([]featurePayload, 0, len(cfg.FeatureList())),
		}
		for _, key := range cfg.FeatureList() {
			entry.Features = append(entry.Features, featurePayload{Key: key, Name: FeatureName(key)})
		}
		tiers = append(tiers, entry)
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"tiers": tiers})
}
