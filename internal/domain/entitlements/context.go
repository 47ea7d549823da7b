package entitlements

import (
	"context"
	"log/slog"

	"github.com/credtrack/credtrack-api/internal/types"
)

// Provider owns exactly one Synchronizer for the lifetime of the app
// session and hands consumers a bound Entitlements view so none of them
// re-fetches. Construct it once at startup and inject it; request-scoped
// consumers reach it through FromContext.
type Provider struct {
	sync *Synchronizer
}

// NewProvider constructs the single entitlement provider for a session.
func NewProvider(repo types.SubscriptionRepository, logger *slog.Logger) *Provider {
	return &Provider{sync: NewSynchronizer(repo, logger)}
}

// SetIdentity forwards an identity change to the synchronizer.
func (p *Provider) SetIdentity(ctx context.Context, identity *types.UserID) {
	p.sync.SetIdentity(ctx, identity)
}

// Identity returns the synchronizer's active identity.
func (p *Provider) Identity() *types.UserID {
	return p.sync.Identity()
}

// Refresh re-runs the subscription fetch for the current identity.
func (p *Provider) Refresh(ctx context.Context) {
	p.sync.Refresh(ctx)
}

// Close tears down the owned synchronizer.
func (p *Provider) Close() {
	p.sync.Close()
}

// View returns the consumer-facing entitlement surface bound to the
// current snapshot. The shape is load-bearing: gating surfaces bind to
// exactly these fields and predicates.
func (p *Provider) View() Entitlements {
	snap := p.sync.Snapshot()
	return Entitlements{
		Subscription: snap.Subscription,
		Tier:         snap.Tier,
		Loading:      snap.Loading,
		Err:          snap.Err,
		provider:     p,
	}
}

// Entitlements is an immutable view over one snapshot with the resolver
// predicates pre-bound to the snapshot's tier.
type Entitlements struct {
	Subscription *types.Subscription
	Tier         types.Tier
	Loading      bool
	Err          error

	provider *Provider
}

// IsFreeTier reports whether the current tier is free.
func (e Entitlements) IsFreeTier() bool { return e.Tier == types.TierFree }

// IsProTier reports whether the current tier is pro.
func (e Entitlements) IsProTier() bool { return e.Tier == types.TierPro }

// IsCorporateTier reports whether the current tier is corporate.
func (e Entitlements) IsCorporateTier() bool { return e.Tier == types.TierCorporate }

// CanAddDoctor applies the doctor limit of the snapshot's tier.
func (e Entitlements) CanAddDoctor(count int) bool {
	return CanAddDoctor(e.Tier, count)
}

// CanAddState applies the state-license limit of the snapshot's tier.
func (e Entitlements) CanAddState(count int) bool {
	return CanAddState(e.Tier, count)
}

// CheckFeatureAccess applies the feature check of the snapshot's tier.
func (e Entitlements) CheckFeatureAccess(key types.FeatureKey) bool {
	return HasFeature(e.Tier, key)
}

// Refresh triggers a re-fetch on the owning provider. The view itself
// is a snapshot; call View again afterwards for the updated state.
func (e Entitlements) Refresh(ctx context.Context) {
	e.provider.Refresh(ctx)
}

type ctxKey struct{}

// WithProvider attaches the provider to a context for request-scoped
// consumers.
func WithProvider(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the provider attached to the context. It panics
// when none is attached: reaching for entitlements outside an active
// session is a wiring bug that must surface immediately, not default
// silently to free.
func FromContext(ctx context.Context) *Provider {
	p, ok := ctx.Value(ctxKey{}).(*Provider)
	if !ok || p == nil {
		panic("entitlements: no provider in context; wrap the context with entitlements.WithProvider at startup")
	}
	return p
}
