package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/credtrack/credtrack-api/internal/domain/entitlements"
	"github.com/credtrack/credtrack-api/internal/domain/roster"
	"github.com/credtrack/credtrack-api/internal/types"
	"github.com/credtrack/credtrack-api/pkg/observability"
)

const contextCacheTTL = 5 * time.Minute

var _ Service = (*ServiceImpl)(nil)

// Service is the assistant business logic: persist the transcript,
// assemble the context payload around the message, call the model.
type Service interface {
	StartChat(ctx context.Context, userID uuid.UUID, req types.StartChatRequest) (*types.ChatResponse, error)
	ContinueChat(ctx context.Context, userID, sessionID uuid.UUID, message string) (*types.ChatResponse, error)
	Sessions(ctx context.Context, userID uuid.UUID, page, limit int) (*types.ChatSessionsResponse, error)
	Session(ctx context.Context, userID, sessionID uuid.UUID) (*types.ChatSession, error)
	Messages(ctx context.Context, userID, sessionID uuid.UUID, limit int) ([]types.ChatMessage, error)
	EndSession(ctx context.Context, userID, sessionID uuid.UUID) error
}

// ModelClient is the remote model endpoint. The reply behavior is out of
// scope here; this service only owns what gets sent.
type ModelClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ServiceImpl struct {
	logger   *slog.Logger
	repo     Repository
	roster   roster.Service
	sessions *entitlements.Registry
	model    ModelClient
	cache    *cache.Cache
}

func NewService(
	repo Repository,
	rosterSvc roster.Service,
	sessions *entitlements.Registry,
	model ModelClient,
	logger *slog.Logger,
) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		repo:     repo,
		roster:   rosterSvc,
		sessions: sessions,
		model:    model,
		cache:    cache.New(contextCacheTTL, 10*time.Minute),
	}
}

func (s *ServiceImpl) StartChat(ctx context.Context, userID uuid.UUID, req types.StartChatRequest) (*types.ChatResponse, error) {
	ctx, span := otel.Tracer("AssistantService").Start(ctx, "StartChat")
	span.SetAttributes(attribute.String("user.id", userID.String()))
	defer span.End()

	title := req.Title
	if title == "" {
		title = firstWords(req.InitialMessage, 6)
	}
	session, err := s.repo.CreateSession(ctx, userID, title)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session create failed")
		return nil, err
	}

	return s.respond(ctx, userID, session.ID, req.InitialMessage)
}

func (s *ServiceImpl) ContinueChat(ctx context.Context, userID, sessionID uuid.UUID, message string) (*types.ChatResponse, error) {
	ctx, span := otel.Tracer("AssistantService").Start(ctx, "ContinueChat")
	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("session.id", sessionID.String()),
	)
	defer span.End()

	session, err := s.repo.GetSession(ctx, userID, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "session lookup failed")
		return nil, err
	}
	if session.EndedAt != nil {
		return nil, fmt.Errorf("chat session already ended: %w", types.ErrBadRequest)
	}

	return s.respond(ctx, userID, sessionID, message)
}

// respond runs one assistant turn: classify, gate, assemble, generate.
func (s *ServiceImpl) respond(ctx context.Context, userID, sessionID uuid.UUID, message string) (*types.ChatResponse, error) {
	l := s.logger.With(
		slog.String("method", "respond"),
		slog.String("userID", userID.String()),
		slog.String("sessionID", sessionID.String()),
	)
	start := time.Now()

	topic := types.ClassifyTopic(message)
	if _, err := s.repo.AddMessage(ctx, sessionID, types.RoleUser, message, topic); err != nil {
		return nil, err
	}

	view := s.sessions.For(ctx, userID).View()

	// Compliance analysis rides on the advanced-analytics entitlement.
	// Denied users get the upgrade pitch from the catalog, not a model call.
	if topic == types.TopicCompliance && !view.CheckFeatureAccess(types.FeatureAdvancedAnalytics) {
		observability.RecordGateDenial("feature", string(types.FeatureAdvancedAnalytics))
		decision := entitlements.GateFeature(view.Tier, types.FeatureAdvancedAnalytics)
		reply := fmt.Sprintf(
			"%s is available on the %s plan (%s). Upgrade to ask me for compliance analysis.",
			decision.FeatureName, decision.TierName, decision.PriceDisplay)
		if _, err := s.repo.AddMessage(ctx, sessionID, types.RoleAssistant, reply, topic); err != nil {
			return nil, err
		}
		l.InfoContext(ctx, "compliance topic gated", slog.String("tier", string(view.Tier)))
		return &types.ChatResponse{
			SessionID: sessionID,
			Message:   reply,
			Topic:     topic,
			LatencyMs: int(time.Since(start).Milliseconds()),
		}, nil
	}

	assistantCtx, err := s.assembleContext(ctx, userID, view, topic)
	if err != nil {
		return nil, err
	}

	history, err := s.repo.ListMessages(ctx, sessionID, 20)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(message, topic, assistantCtx, history)
	reply, err := s.model.Generate(ctx, prompt)
	if err != nil {
		l.ErrorContext(ctx, "model call failed", slog.Any("error", err))
		return nil, fmt.Errorf("assistant generation failed: %w", err)
	}

	if _, err := s.repo.AddMessage(ctx, sessionID, types.RoleAssistant, reply, topic); err != nil {
		return nil, err
	}

	latency := time.Since(start)
	l.InfoContext(ctx, "assistant turn completed",
		slog.String("topic", string(topic)),
		slog.Int64("latency_ms", latency.Milliseconds()))

	return &types.ChatResponse{
		SessionID: sessionID,
		Message:   reply,
		Topic:     topic,
		LatencyMs: int(latency.Milliseconds()),
	}, nil
}

// assembleContext builds the payload sent alongside the message. Roster
// and compliance reads run concurrently; the result is cached per user
// and topic for a few minutes since the underlying data changes slowly.
func (s *ServiceImpl) assembleContext(ctx context.Context, userID uuid.UUID, view entitlements.Entitlements, topic types.ChatTopic) (*types.AssistantContext, error) {
	cacheKey := fmt.Sprintf("assistant-ctx:%s:%s", userID, topic)
	if cached, found := s.cache.Get(cacheKey); found {
		return cached.(*types.AssistantContext), nil
	}

	start := time.Now()
	assistantCtx := &types.AssistantContext{Tier: view.Tier}

	g, gctx := errgroup.WithContext(ctx)
	if topic == types.TopicCompliance || topic == types.TopicRenewal {
		g.Go(func() error {
			summary, err := s.roster.Summary(gctx, userID)
			if err != nil {
				return fmt.Errorf("failed to load compliance summary: %w", err)
			}
			assistantCtx.Summary = summary
			return nil
		})
	}
	g.Go(func() error {
		doctors, err := s.roster.Doctors(gctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load doctors: %w", err)
		}
		assistantCtx.Doctors = doctors
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	assistantCtx.AssembleMs = int(time.Since(start).Milliseconds())
	s.cache.Set(cacheKey, assistantCtx, cache.DefaultExpiration)
	return assistantCtx, nil
}

func (s *ServiceImpl) Sessions(ctx context.Context, userID uuid.UUID, page, limit int) (*types.ChatSessionsResponse, error) {
	return s.repo.ListSessions(ctx, userID, page, limit)
}

func (s *ServiceImpl) Session(ctx context.Context, userID, sessionID uuid.UUID) (*types.ChatSession, error) {
	return s.repo.GetSession(ctx, userID, sessionID)
}

func (s *ServiceImpl) Messages(ctx context.Context, userID, sessionID uuid.UUID, limit int) ([]types.ChatMessage, error) {
	if _, err := s.repo.GetSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, sessionID, limit)
}

func (s *ServiceImpl) EndSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	return s.repo.EndSession(ctx, userID, sessionID)
}
