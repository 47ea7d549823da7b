package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/credtrack/credtrack-api/internal/types"
	"github.com/credtrack/credtrack-api/pkg/db"
)

var _ Repository = (*PostgresRepository)(nil)

// Repository persists assistant sessions and their message transcript.
type Repository interface {
	CreateSession(ctx context.Context, userID uuid.UUID, title string) (*types.ChatSession, error)
	GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*types.ChatSession, error)
	ListSessions(ctx context.Context, userID uuid.UUID, page, limit int) (*types.ChatSessionsResponse, error)
	EndSession(ctx context.Context, userID, sessionID uuid.UUID) error

	AddMessage(ctx context.Context, sessionID uuid.UUID, role types.ChatRole, content string, topic types.ChatTopic) (*types.ChatMessage, error)
	ListMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]types.ChatMessage, error)
}

type PostgresRepository struct {
	logger *slog.Logger
	pool   db.Querier
}

func NewPostgresRepository(pool db.Querier, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{
		logger: logger,
		pool:   pool,
	}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, userID uuid.UUID, title string) (*types.ChatSession, error) {
	ctx, span := otel.Tracer("AssistantRepo").Start(ctx, "CreateSession", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "chat_sessions"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query := `
		INSERT INTO chat_sessions (user_id, title)
		VALUES ($1, $2)
		RETURNING id, user_id, title, created_at, updated_at, ended_at`

	var session types.ChatSession
	err := r.pool.QueryRow(ctx, query, userID, title).Scan(
		&session.ID, &session.UserID, &session.Title,
		&session.CreatedAt, &session.UpdatedAt, &session.EndedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create chat session", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating chat session: %w", err)
	}

	span.SetStatus(codes.Ok, "Session created")
	return &session, nil
}

func (r *PostgresRepository) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*types.ChatSession, error) {
	query := `
		SELECT id, user_id, title, created_at, updated_at, ended_at
		FROM chat_sessions
		WHERE id = $1 AND user_id = $2`

	var session types.ChatSession
	err := r.pool.QueryRow(ctx, query, sessionID, userID).Scan(
		&session.ID, &session.UserID, &session.Title,
		&session.CreatedAt, &session.UpdatedAt, &session.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("chat session not found: %w", types.ErrNotFound)
		}
		return nil, fmt.Errorf("database error fetching chat session: %w", err)
	}
	return &session, nil
}

func (r *PostgresRepository) ListSessions(ctx context.Context, userID uuid.UUID, page, limit int) (*types.ChatSessionsResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM chat_sessions WHERE user_id = $1", userID).Scan(&total); err != nil {
		return nil, fmt.Errorf("database error counting chat sessions: %w", err)
	}

	query := `
		SELECT id, user_id, title, created_at, updated_at, ended_at
		FROM chat_sessions
		WHERE user_id = $1
		ORDER BY updated_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("database error listing chat sessions: %w", err)
	}
	defer rows.Close()

	resp := &types.ChatSessionsResponse{Total: total, Page: page, Limit: limit}
	for rows.Next() {
		var s types.ChatSession
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title,
			&s.CreatedAt, &s.UpdatedAt, &s.EndedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat session row: %w", err)
		}
		resp.Sessions = append(resp.Sessions, s)
	}
	return resp, rows.Err()
}

func (r *PostgresRepository) EndSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE chat_sessions SET ended_at = $1, updated_at = $1 WHERE id = $2 AND user_id = $3 AND ended_at IS NULL",
		time.Now(), sessionID, userID)
	if err != nil {
		return fmt.Errorf("database error ending chat session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("chat session not found or already ended: %w", types.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) AddMessage(ctx context.Context, sessionID uuid.UUID, role types.ChatRole, content string, topic types.ChatTopic) (*types.ChatMessage, error) {
	query := `
		INSERT INTO chat_messages (session_id, role, content, topic)
		VALUES ($1, $2, $3, $4)
		RETURNING id, session_id, role, content, topic, created_at`

	var msg types.ChatMessage
	err := r.pool.QueryRow(ctx, query, sessionID, role, content, topic).Scan(
		&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &msg.Topic, &msg.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to add chat message", slog.Any("error", err))
		return nil, fmt.Errorf("database error adding chat message: %w", err)
	}

	// Bump the session so listings sort by activity.
	if _, err := r.pool.Exec(ctx,
		"UPDATE chat_sessions SET updated_at = $1 WHERE id = $2", time.Now(), sessionID); err != nil {
		r.logger.WarnContext(ctx, "Failed to bump chat session", slog.Any("error", err))
	}

	return &msg, nil
}

func (r *PostgresRepository) ListMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]types.ChatMessage, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT id, session_id, role, content, topic, created_at
		FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("database error listing chat messages: %w", err)
	}
	defer rows.Close()

	var messages []types.ChatMessage
	for rows.Next() {
		var m types.ChatMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Topic, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message row: %w", err)
		}
		messages = append(messages, m)
	}
	// Oldest first for prompt assembly.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, rows.Err()
}
