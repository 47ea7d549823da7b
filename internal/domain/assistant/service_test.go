package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/credtrack/credtrack-api/internal/domain/entitlements"
	"github.com/credtrack/credtrack-api/internal/types"
)

type mockChatRepo struct {
	mock.Mock
}

func (m *mockChatRepo) CreateSession(ctx context.Context, userID uuid.UUID, title string) (*types.ChatSession, error) {
	args := m.Called(ctx, userID, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ChatSession), args.Error(1)
}

func (m *mockChatRepo) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*types.ChatSession, error) {
	args := m.Called(ctx, userID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ChatSession), args.Error(1)
}

func (m *mockChatRepo) ListSessions(ctx context.Context, userID uuid.UUID, page, limit int) (*types.ChatSessionsResponse, error) {
	args := m.Called(ctx, userID, page, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ChatSessionsResponse), args.Error(1)
}

func (m *mockChatRepo) EndSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	args := m.Called(ctx, userID, sessionID)
	return args.Error(0)
}

func (m *mockChatRepo) AddMessage(ctx context.Context, sessionID uuid.UUID, role types.ChatRole, content string, topic types.ChatTopic) (*types.ChatMessage, error) {
	args := m.Called(ctx, sessionID, role, content, topic)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ChatMessage), args.Error(1)
}

func (m *mockChatRepo) ListMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]types.ChatMessage, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.ChatMessage), args.Error(1)
}

type mockRosterService struct {
	mock.Mock
}

func (m *mockRosterService) AddDoctor(ctx context.Context, userID uuid.UUID, params types.CreateDoctorParams) (*types.Doctor, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Doctor), args.Error(1)
}

func (m *mockRosterService) Doctors(ctx context.Context, userID uuid.UUID) ([]types.Doctor, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Doctor), args.Error(1)
}

func (m *mockRosterService) RemoveDoctor(ctx context.Context, userID, doctorID uuid.UUID) error {
	args := m.Called(ctx, userID, doctorID)
	return args.Error(0)
}

func (m *mockRosterService) AddLicense(ctx context.Context, userID uuid.UUID, params types.CreateLicenseParams) (*types.StateLicense, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.StateLicense), args.Error(1)
}

func (m *mockRosterService) Licenses(ctx context.Context, userID uuid.UUID, filter types.LicenseFilter) ([]types.StateLicense, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.StateLicense), args.Error(1)
}

func (m *mockRosterService) LogCredit(ctx context.Context, userID uuid.UUID, params types.CreateCreditParams) (*types.CMECredit, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.CMECredit), args.Error(1)
}

func (m *mockRosterService) Credits(ctx context.Context, userID, licenseID uuid.UUID) ([]types.CMECredit, error) {
	args := m.Called(ctx, userID, licenseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.CMECredit), args.Error(1)
}

func (m *mockRosterService) Summary(ctx context.Context, userID uuid.UUID) (*types.ComplianceSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.ComplianceSummary), args.Error(1)
}

type fakeModel struct {
	lastPrompt string
	reply      string
	err        error
}

func (f *fakeModel) Generate(ctx context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type stubSubscriptionRepo struct {
	tier types.Tier
}

func (s *stubSubscriptionRepo) GetCurrentByUserID(ctx context.Context, userID uuid.UUID) (*types.Subscription, error) {
	if s.tier == "" {
		return nil, fmt.Errorf("no current subscription: %w", types.ErrNotFound)
	}
	return &types.Subscription{ID: uuid.New(), UserID: userID, Tier: s.tier, CreatedAt: time.Now()}, nil
}

func (s *stubSubscriptionRepo) CreateDefault(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func newTestService(t *testing.T, tier types.Tier, userID uuid.UUID) (*ServiceImpl, *mockChatRepo, *mockRosterService, *fakeModel) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := entitlements.NewRegistry(&stubSubscriptionRepo{tier: tier}, logger)

	repo := new(mockChatRepo)
	rosterSvc := new(mockRosterService)
	model := &fakeModel{reply: "Here is your answer."}
	return NewService(repo, rosterSvc, sessions, model, logger), repo, rosterSvc, model
}

func anyMessage(sessionID uuid.UUID) *types.ChatMessage {
	return &types.ChatMessage{ID: uuid.New(), SessionID: sessionID, CreatedAt: time.Now()}
}

func TestStartChat_GeneratesReplyWithContext(t *testing.T) {
	userID := uuid.New()
	svc, repo, rosterSvc, model := newTestService(t, types.TierPro, userID)
	sessionID := uuid.New()
	session := &types.ChatSession{ID: sessionID, UserID: userID, Title: "What credits do I"}

	repo.On("CreateSession", mock.Anything, userID, mock.Anything).Return(session, nil)
	repo.On("AddMessage", mock.Anything, sessionID, types.RoleUser, mock.Anything, mock.Anything).
		Return(anyMessage(sessionID), nil)
	repo.On("AddMessage", mock.Anything, sessionID, types.RoleAssistant, "Here is your answer.", mock.Anything).
		Return(anyMessage(sessionID), nil)
	repo.On("ListMessages", mock.Anything, sessionID, 20).Return([]types.ChatMessage{}, nil)
	specialty := "Cardiology"
	rosterSvc.On("Doctors", mock.Anything, userID).
		Return([]types.Doctor{{ID: uuid.New(), FullName: "Dr. Lin Park", Specialty: &specialty}}, nil)

	resp, err := svc.StartChat(context.Background(), userID, types.StartChatRequest{
		InitialMessage: "What credits do I still need to log this year?",
	})
	require.NoError(t, err)
	assert.Equal(t, sessionID, resp.SessionID)
	assert.Equal(t, "Here is your answer.", resp.Message)
	assert.Equal(t, types.TopicCredits, resp.Topic)
	assert.Contains(t, model.lastPrompt, "Dr. Lin Park")
	assert.Contains(t, model.lastPrompt, "Subscription tier: pro")
}

func TestContinueChat_ComplianceTopicIncludesSummary(t *testing.T) {
	userID := uuid.New()
	svc, repo, rosterSvc, model := newTestService(t, types.TierPro, userID)
	sessionID := uuid.New()

	repo.On("GetSession", mock.Anything, userID, sessionID).
		Return(&types.ChatSession{ID: sessionID, UserID: userID}, nil)
	repo.On("AddMessage", mock.Anything, sessionID, mock.Anything, mock.Anything, mock.Anything).
		Return(anyMessage(sessionID), nil)
	repo.On("ListMessages", mock.Anything, sessionID, 20).Return([]types.ChatMessage{}, nil)
	rosterSvc.On("Doctors", mock.Anything, userID).Return([]types.Doctor{}, nil)
	rosterSvc.On("Summary", mock.Anything, userID).Return(&types.ComplianceSummary{
		StateCount: 2,
		TotalHours: 18.5,
		Licenses: []types.LicenseCompliance{{
			License:       types.StateLicense{State: "CA", LicenseNumber: "CA-1"},
			EarnedHours:   18.5,
			RequiredHours: 50,
		}},
		NonCompliant: 1,
	}, nil)

	resp, err := svc.ContinueChat(context.Background(), userID, sessionID, "Am I compliant for my audit?")
	require.NoError(t, err)
	assert.Equal(t, types.TopicCompliance, resp.Topic)
	assert.Contains(t, model.lastPrompt, "18.5 hours logged")
	assert.Contains(t, model.lastPrompt, "CA license CA-1")
}

func TestContinueChat_ComplianceGatedOnFreeTier(t *testing.T) {
	userID := uuid.New()
	svc, repo, rosterSvc, model := newTestService(t, types.TierFree, userID)
	sessionID := uuid.New()

	repo.On("GetSession", mock.Anything, userID, sessionID).
		Return(&types.ChatSession{ID: sessionID, UserID: userID}, nil)
	repo.On("AddMessage", mock.Anything, sessionID, mock.Anything, mock.Anything, mock.Anything).
		Return(anyMessage(sessionID), nil)

	resp, err := svc.ContinueChat(context.Background(), userID, sessionID, "Show my compliance progress report")
	require.NoError(t, err)
	assert.Equal(t, types.TopicCompliance, resp.Topic)
	assert.Contains(t, resp.Message, "Advanced analytics")
	assert.Contains(t, resp.Message, "Pro")
	assert.Contains(t, resp.Message, "$29.99/mo")
	assert.Empty(t, model.lastPrompt, "gated topic must not reach the model")
	rosterSvc.AssertNotCalled(t, "Summary", mock.Anything, mock.Anything)
}

func TestContinueChat_EndedSessionRejected(t *testing.T) {
	userID := uuid.New()
	svc, repo, _, _ := newTestService(t, types.TierPro, userID)
	sessionID := uuid.New()
	ended := time.Now()

	repo.On("GetSession", mock.Anything, userID, sessionID).
		Return(&types.ChatSession{ID: sessionID, UserID: userID, EndedAt: &ended}, nil)

	_, err := svc.ContinueChat(context.Background(), userID, sessionID, "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrBadRequest)
}

func TestContinueChat_ModelFailureSurfaces(t *testing.T) {
	userID := uuid.New()
	svc, repo, rosterSvc, model := newTestService(t, types.TierPro, userID)
	sessionID := uuid.New()
	model.err = errors.New("upstream timeout")

	repo.On("GetSession", mock.Anything, userID, sessionID).
		Return(&types.ChatSession{ID: sessionID, UserID: userID}, nil)
	repo.On("AddMessage", mock.Anything, sessionID, types.RoleUser, mock.Anything, mock.Anything).
		Return(anyMessage(sessionID), nil)
	repo.On("ListMessages", mock.Anything, sessionID, 20).Return([]types.ChatMessage{}, nil)
	rosterSvc.On("Doctors", mock.Anything, userID).Return([]types.Doctor{}, nil)

	_, err := svc.ContinueChat(context.Background(), userID, sessionID, "hello there")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assistant generation failed")
}

func TestAssembleContext_Cached(t *testing.T) {
	userID := uuid.New()
	svc, _, rosterSvc, _ := newTestService(t, types.TierPro, userID)
	rosterSvc.On("Doctors", mock.Anything, userID).Return([]types.Doctor{}, nil).Once()

	view := entitlements.Entitlements{Tier: types.TierPro}
	first, err := svc.assembleContext(context.Background(), userID, view, types.TopicGeneral)
	require.NoError(t, err)

	second, err := svc.assembleContext(context.Background(), userID, view, types.TopicGeneral)
	require.NoError(t, err)
	assert.Same(t, first, second, "second call within TTL must hit the cache")
	rosterSvc.AssertNumberOfCalls(t, "Doctors", 1)
}

func TestClassifyTopic(t *testing.T) {
	tests := []struct {
		message string
		want    types.ChatTopic
	}{
		{"Am I compliant for the audit?", types.TopicCompliance},
		{"When does my California license expire?", types.TopicRenewal},
		{"Log 2 hours for the ethics course", types.TopicCredits},
		{"Good morning!", types.TopicGeneral},
		{"", types.TopicGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, types.ClassifyTopic(tt.message))
		})
	}
}

func TestFirstWords(t *testing.T) {
	assert.Equal(t, "New conversation", firstWords("   ", 6))
	assert.Equal(t, "short title", firstWords("short title", 6))
	long := firstWords("one two three four five six seven", 3)
	assert.True(t, strings.HasPrefix(long, "one two three"))
}
