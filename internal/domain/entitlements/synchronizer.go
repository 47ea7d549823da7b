package entitlements

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/credtrack/credtrack-api/internal/types"
	"github.com/credtrack/credtrack-api/pkg/observability"
)

// Synchronizer keeps a single user's entitlement snapshot in sync with
// the remote subscriptions table.
//
// State machine: Uninitialized -> Loading -> {Ready, Errored}, with
// Ready and Errored re-enterable through Refresh or an identity change.
// Every trigger bumps a generation counter; a fetch completion settles
// the snapshot only while its generation is still current, so a stale
// completion racing a newer trigger is a no-op rather than a data race.
type Synchronizer struct {
	logger *slog.Logger
	repo   types.SubscriptionRepository

	mu       sync.Mutex
	identity *uuid.UUID
	snapshot types.EntitlementSnapshot
	gen      uint64
	closed   bool
}

// NewSynchronizer returns an uninitialized synchronizer. Until an
// identity is set the snapshot reports the free tier with no error.
func NewSynchronizer(repo types.SubscriptionRepository, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		logger:   logger,
		repo:     repo,
		snapshot: types.EntitlementSnapshot{Tier: types.TierFree},
	}
}

// Snapshot returns the current entitlement snapshot. Snapshots are
// replaced atomically; the returned value never mutates under the caller.
func (s *Synchronizer) Snapshot() types.EntitlementSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Identity returns the active identity, or nil when logged out.
func (s *Synchronizer) Identity() *uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// SetIdentity swaps the active user and restarts the fetch. A nil
// identity settles immediately to the free tier without touching the
// repository: logging out is a valid state, not an error.
func (s *Synchronizer) SetIdentity(ctx context.Context, identity *uuid.UUID) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	s.identity = identity
	if identity == nil {
		s.snapshot = types.EntitlementSnapshot{Tier: types.TierFree}
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "identity cleared, settled to free tier")
		return
	}
	s.enterLoadingLocked()
	userID := *identity
	s.mu.Unlock()

	s.fetch(ctx, gen, userID)
}

// Refresh re-runs the fetch for the current identity regardless of the
// prior state. With no identity it settles the free snapshot again.
func (s *Synchronizer) Refresh(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	if s.identity == nil {
		s.snapshot = types.EntitlementSnapshot{Tier: types.TierFree}
		s.mu.Unlock()
		return
	}
	s.enterLoadingLocked()
	userID := *s.identity
	s.mu.Unlock()

	s.fetch(ctx, gen, userID)
}

// Close tears the synchronizer down. Any in-flight fetch may run to
// completion but its result is discarded; the snapshot never changes
// again after Close returns.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// enterLoadingLocked re-derives the snapshot for the Loading state,
// keeping the last known subscription and tier visible.
func (s *Synchronizer) enterLoadingLocked() {
	s.snapshot = types.EntitlementSnapshot{
		Subscription: s.snapshot.Subscription,
		Tier:         s.snapshot.Tier,
		Loading:      true,
	}
}

func (s *Synchronizer) fetch(ctx context.Context, gen uint64, userID uuid.UUID) {
	ctx, span := otel.Tracer("EntitlementSynchronizer").Start(ctx, "fetch")
	span.SetAttributes(attribute.String("user.id", userID.String()))
	defer span.End()

	sub, err := s.repo.GetCurrentByUserID(ctx, userID)
	s.settle(ctx, gen, sub, err)

	if err != nil && !errors.Is(err, types.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "subscription fetch failed")
		return
	}
	span.SetStatus(codes.Ok, "settled")
}

// settle applies a fetch result. The generation check makes discarding
// superseded completions structural: only the latest trigger can win.
func (s *Synchronizer) settle(ctx context.Context, gen uint64, sub *types.Subscription, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen {
		observability.RecordSubscriptionFetch(observability.FetchOutcomeDiscarded)
		s.logger.DebugContext(ctx, "discarding superseded fetch completion",
			slog.Uint64("fetch_gen", gen), slog.Uint64("current_gen", s.gen))
		return
	}

	switch {
	case err == nil:
		tier := sub.Tier
		if !tier.Valid() {
			s.logger.WarnContext(ctx, "subscription row carries unknown tier, treating as free",
				slog.String("tier", string(sub.Tier)))
			tier = types.TierFree
		}
		s.snapshot = types.EntitlementSnapshot{Subscription: sub, Tier: tier}
		observability.RecordSubscriptionFetch(observability.FetchOutcomeFound)
		s.logger.InfoContext(ctx, "subscription synced", slog.String("tier", string(tier)))

	case errors.Is(err, types.ErrNotFound):
		// Expected steady state for non-paying users.
		s.snapshot = types.EntitlementSnapshot{Tier: types.TierFree}
		observability.RecordSubscriptionFetch(observability.FetchOutcomeNone)
		s.logger.DebugContext(ctx, "no subscription row, settled to free tier")

	default:
		// Keep the last known subscription and tier so a transient
		// failure never downgrades a paying user mid-session.
		s.snapshot = types.EntitlementSnapshot{
			Subscription: s.snapshot.Subscription,
			Tier:         s.snapshot.Tier,
			Err:          err,
		}
		observability.RecordSubscriptionFetch(observability.FetchOutcomeError)
		s.logger.ErrorContext(ctx, "subscription fetch failed", slog.Any("error", err))
	}
}
