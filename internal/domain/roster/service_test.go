package roster

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/credtrack/credtrack-api/internal/domain/entitlements"
	"github.com/credtrack/credtrack-api/internal/types"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) CountDoctors(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockRepo) CreateDoctor(ctx context.Context, userID uuid.UUID, params types.CreateDoctorParams) (*types.Doctor, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Doctor), args.Error(1)
}

func (m *mockRepo) ListDoctors(ctx context.Context, userID uuid.UUID) ([]types.Doctor, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Doctor), args.Error(1)
}

func (m *mockRepo) DeleteDoctor(ctx context.Context, userID, doctorID uuid.UUID) error {
	args := m.Called(ctx, userID, doctorID)
	return args.Error(0)
}

func (m *mockRepo) CountStates(ctx context.Context, userID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockRepo) CreateLicense(ctx context.Context, userID uuid.UUID, params types.CreateLicenseParams) (*types.StateLicense, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.StateLicense), args.Error(1)
}

func (m *mockRepo) ListLicenses(ctx context.Context, userID uuid.UUID, filter types.LicenseFilter) ([]types.StateLicense, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.StateLicense), args.Error(1)
}

func (m *mockRepo) CreateCredit(ctx context.Context, userID uuid.UUID, params types.CreateCreditParams) (*types.CMECredit, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.CMECredit), args.Error(1)
}

func (m *mockRepo) ListCredits(ctx context.Context, userID, licenseID uuid.UUID) ([]types.CMECredit, error) {
	args := m.Called(ctx, userID, licenseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.CMECredit), args.Error(1)
}

func (m *mockRepo) ComplianceSummary(ctx context.Context, userID uuid.UUID) (*types.ComplianceSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ComplianceSummary), args.Error(1)
}

type stubSubscriptionRepo struct {
	tier types.Tier
}

func (s *stubSubscriptionRepo) GetCurrentByUserID(ctx context.Context, userID uuid.UUID) (*types.Subscription, error) {
	if s.tier == "" {
		return nil, fmt.Errorf("no current subscription: %w", types.ErrNotFound)
	}
	return &types.Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		Tier:      s.tier,
		Status:    types.SubscriptionActive,
		CreatedAt: time.Now(),
	}, nil
}

func (s *stubSubscriptionRepo) CreateDefault(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func newService(t *testing.T, tier types.Tier) (*ServiceImpl, *mockRepo, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	repo := new(mockRepo)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := entitlements.NewRegistry(&stubSubscriptionRepo{tier: tier}, logger)
	return NewService(repo, sessions, logger), repo, userID
}

func TestAddDoctor_AllowedBelowLimit(t *testing.T) {
	svc, repo, userID := newService(t, types.TierPro)
	ctx := context.Background()
	params := types.CreateDoctorParams{FullName: "Dr. Ada Osei"}
	want := &types.Doctor{ID: uuid.New(), UserID: userID, FullName: params.FullName}

	repo.On("CountDoctors", mock.Anything, userID).Return(3, nil)
	repo.On("CreateDoctor", mock.Anything, userID, params).Return(want, nil)

	got, err := svc.AddDoctor(ctx, userID, params)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	repo.AssertExpectations(t)
}

func TestAddDoctor_DeniedAtFreeLimit(t *testing.T) {
	svc, repo, userID := newService(t, types.TierFree)
	repo.On("CountDoctors", mock.Anything, userID).Return(1, nil)

	got, err := svc.AddDoctor(context.Background(), userID, types.CreateDoctorParams{FullName: "Dr. B"})
	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrForbidden)

	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "Pro", limitErr.Decision.TierName)
	assert.Equal(t, "Multiple doctors", limitErr.Decision.FeatureName)
	assert.Equal(t, "$29.99/mo", limitErr.Decision.PriceDisplay)
	repo.AssertNotCalled(t, "CreateDoctor", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddDoctor_DeniedAtProLimitPointsToCorporate(t *testing.T) {
	svc, repo, userID := newService(t, types.TierPro)
	repo.On("CountDoctors", mock.Anything, userID).Return(10, nil)

	got, err := svc.AddDoctor(context.Background(), userID, types.CreateDoctorParams{FullName: "Dr. Eleven"})
	assert.Nil(t, got)
	require.Error(t, err)

	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.False(t, limitErr.Decision.Allowed)
	assert.Equal(t, types.TierCorporate, limitErr.Decision.RequiredTier)
	assert.Equal(t, "Corporate", limitErr.Decision.TierName)
	assert.Equal(t, "Custom pricing", limitErr.Decision.PriceDisplay)
	assert.Equal(t, "Multiple doctors", limitErr.Decision.FeatureName)
}

func TestAddLicense_DeniedAtFreeStateLimit(t *testing.T) {
	svc, repo, userID := newService(t, types.TierFree)
	repo.On("CountStates", mock.Anything, userID).Return(1, nil)
	repo.On("ListLicenses", mock.Anything, userID, types.LicenseFilter{State: "CA"}).
		Return([]types.StateLicense{}, nil)

	got, err := svc.AddLicense(context.Background(), userID, types.CreateLicenseParams{State: "CA"})
	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrForbidden)

	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, "Unlimited state licenses", limitErr.Decision.FeatureName)
}

func TestAddLicense_ExistingStateBypassesLimit(t *testing.T) {
	svc, repo, userID := newService(t, types.TierFree)
	params := types.CreateLicenseParams{DoctorID: uuid.New(), State: "CA", LicenseNumber: "CA-2", RequiredHours: 25}
	want := &types.StateLicense{ID: uuid.New(), UserID: userID, State: "CA"}

	repo.On("CountStates", mock.Anything, userID).Return(1, nil)
	repo.On("ListLicenses", mock.Anything, userID, types.LicenseFilter{State: "CA"}).
		Return([]types.StateLicense{{ID: uuid.New(), UserID: userID, State: "CA"}}, nil)
	repo.On("CreateLicense", mock.Anything, userID, params).Return(want, nil)

	got, err := svc.AddLicense(context.Background(), userID, params)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
}

func TestAddLicense_ProUnlimitedStates(t *testing.T) {
	svc, repo, userID := newService(t, types.TierPro)
	params := types.CreateLicenseParams{DoctorID: uuid.New(), State: "NY", LicenseNumber: "NY-100", RequiredHours: 50}
	want := &types.StateLicense{ID: uuid.New(), UserID: userID, State: "NY"}

	repo.On("CountStates", mock.Anything, userID).Return(49, nil)
	repo.On("ListLicenses", mock.Anything, userID, types.LicenseFilter{State: "NY"}).
		Return([]types.StateLicense{}, nil)
	repo.On("CreateLicense", mock.Anything, userID, params).Return(want, nil)

	got, err := svc.AddLicense(context.Background(), userID, params)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
}

func TestLogCredit_RejectsNonPositiveHours(t *testing.T) {
	svc, _, userID := newService(t, types.TierPro)

	_, err := svc.LogCredit(context.Background(), userID, types.CreateCreditParams{Hours: 0})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrBadRequest)
}

func TestLogCredit_Passthrough(t *testing.T) {
	svc, repo, userID := newService(t, types.TierFree)
	params := types.CreateCreditParams{
		LicenseID:    uuid.New(),
		ActivityName: "Grand Rounds",
		Hours:        1.5,
		CompletedAt:  time.Now(),
	}
	want := &types.CMECredit{ID: uuid.New(), Hours: 1.5}
	repo.On("CreateCredit", mock.Anything, userID, params).Return(want, nil)

	got, err := svc.LogCredit(context.Background(), userID, params)
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
}

func TestSummary_Passthrough(t *testing.T) {
	svc, repo, userID := newService(t, types.TierPro)
	want := &types.ComplianceSummary{DoctorCount: 2, StateCount: 3, TotalHours: 12}
	repo.On("ComplianceSummary", mock.Anything, userID).Return(want, nil)

	got, err := svc.Summary(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
