package entitlements

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/credtrack/credtrack-api/internal/types"
)

func TestRegistry_EachIdentityGetsOwnProvider(t *testing.T) {
	alice := uuid.New()
	bob := uuid.New()
	repo := new(mockSubscriptionRepo)
	repo.On("GetCurrentByUserID", mock.Anything, alice).
		Return(subscriptionFor(alice, types.TierPro), nil)
	repo.On("GetCurrentByUserID", mock.Anything, bob).
		Return(nil, fmt.Errorf("no current subscription: %w", types.ErrNotFound))

	r := NewRegistry(repo, testLogger())
	defer r.Close()
	ctx := context.Background()

	pa := r.For(ctx, alice)
	pb := r.For(ctx, bob)
	require.NotSame(t, pa, pb)

	assert.Equal(t, types.TierPro, pa.View().Tier)
	assert.Equal(t, types.TierFree, pb.View().Tier)
	assert.Equal(t, types.TierPro, r.For(ctx, alice).View().Tier, "one user's fetch must not disturb another's view")
}

func TestRegistry_RepeatLookupReturnsSameProvider(t *testing.T) {
	userID := uuid.New()
	repo := new(mockSubscriptionRepo)
	repo.On("GetCurrentByUserID", mock.Anything, userID).
		Return(subscriptionFor(userID, types.TierPro), nil)

	r := NewRegistry(repo, testLogger())
	defer r.Close()
	ctx := context.Background()

	assert.Same(t, r.For(ctx, userID), r.For(ctx, userID))
	repo.AssertNumberOfCalls(t, "GetCurrentByUserID", 1)
}

func TestRegistry_ConcurrentFirstLookupsFetchOnce(t *testing.T) {
	userID := uuid.New()
	repo := new(mockSubscriptionRepo)
	repo.On("GetCurrentByUserID", mock.Anything, userID).
		Return(subscriptionFor(userID, types.TierCorporate), nil)

	r := NewRegistry(repo, testLogger())
	defer r.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, types.TierCorporate, r.For(context.Background(), userID).View().Tier)
		}()
	}
	wg.Wait()

	repo.AssertNumberOfCalls(t, "GetCurrentByUserID", 1)
}

func TestRegistry_AnonymousViewsFreeWithoutFetch(t *testing.T) {
	repo := new(mockSubscriptionRepo)
	r := NewRegistry(repo, testLogger())
	defer r.Close()

	view := r.Anonymous().View()
	assert.True(t, view.IsFreeTier())
	repo.AssertNotCalled(t, "GetCurrentByUserID", mock.Anything, mock.Anything)
}
