package entitlements

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/credtrack/credtrack-api/internal/types"
)

// Registry scopes one Provider per authenticated identity. A client app
// owns a single session and so a single synchronizer; a server carries
// many sessions at once, and each needs its own single-identity state
// machine. The registry is that mapping: For never hands two identities
// the same synchronizer, so one user's fetch can never settle into
// another user's snapshot.
type Registry struct {
	logger *slog.Logger
	repo   types.SubscriptionRepository

	mu        sync.Mutex
	providers map[uuid.UUID]*entry
	anon      *Provider
	closed    bool
}

// entry delays the initial fetch until the first request, and lets
// concurrent first requests for the same user share it.
type entry struct {
	provider *Provider
	init     sync.Once
}

// NewRegistry constructs the session registry. The anonymous provider is
// created eagerly; it has no identity and always views the free tier.
func NewRegistry(repo types.SubscriptionRepository, logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger,
		repo:      repo,
		providers: make(map[uuid.UUID]*entry),
		anon:      NewProvider(repo, logger),
	}
}

// For returns the provider bound to the given identity, creating and
// settling it on first use. Callers racing on the same new identity all
// block until the initial fetch settles.
func (r *Registry) For(ctx context.Context, userID uuid.UUID) *Provider {
	r.mu.Lock()
	e, ok := r.providers[userID]
	if !ok {
		e = &entry{provider: NewProvider(r.repo, r.logger)}
		if !r.closed {
			r.providers[userID] = e
		}
	}
	r.mu.Unlock()

	e.init.Do(func() {
		id := userID
		e.provider.SetIdentity(ctx, &id)
		r.logger.DebugContext(ctx, "entitlement session opened",
			slog.String("userID", userID.String()))
	})
	return e.provider
}

// Anonymous returns the shared identity-less provider for
// unauthenticated requests.
func (r *Registry) Anonymous() *Provider {
	return r.anon
}

// Close tears down every provider. Fetches still in flight are discarded
// by their synchronizers.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.anon.Close()
	for _, e := range r.providers {
		e.provider.Close()
	}
}
