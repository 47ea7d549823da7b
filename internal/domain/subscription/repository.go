package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

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

var _ types.SubscriptionRepository = (*PostgresRepository)(nil)

// PostgresRepository reads the subscriptions table the billing backend
// writes. The entitlement engine is its only consumer.
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

const currentSubscriptionQuery = `
	SELECT id, user_id, tier, status, platform,
	       current_period_start, current_period_end,
	       price_cents, currency, cancelled_at, agency_id,
	       created_at, updated_at
	FROM subscriptions
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT 1`

// GetCurrentByUserID returns the most recently created subscription row
// for the user. The LIMIT 1 newest-first read means any historical
// duplicate rows lose to the latest one. No row maps to ErrNotFound,
// which callers treat as the free-tier steady state.
func (r *PostgresRepository) GetCurrentByUserID(ctx context.Context, userID uuid.UUID) (*types.Subscription, error) {
	ctx, span := otel.Tracer("SubscriptionRepo").Start(ctx, "GetCurrentByUserID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.sql.table", "subscriptions"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "GetCurrentByUserID"), slog.String("userID", userID.String()))

	var sub types.Subscription
	err := r.pool.QueryRow(ctx, currentSubscriptionQuery, userID).Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Tier,
		&sub.Status,
		&sub.Platform,
		&sub.CurrentPeriodStart,
		&sub.CurrentPeriodEnd,
		&sub.PriceCents,
		&sub.Currency,
		&sub.CancelledAt,
		&sub.AgencyID,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			l.DebugContext(ctx, "no subscription row for user")
			span.SetStatus(codes.Ok, "No subscription row")
			return nil, fmt.Errorf("no current subscription: %w", types.ErrNotFound)
		}
		l.ErrorContext(ctx, "Failed to fetch current subscription", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error fetching subscription: %w", err)
	}

	span.SetStatus(codes.Ok, "Subscription fetched")
	return &sub, nil
}

// CreateDefault inserts the initial free row for a new user. Called once
// at registration; renewals and upgrades stay with the billing backend.
func (r *PostgresRepository) CreateDefault(ctx context.Context, userID uuid.UUID) error {
	ctx, span := otel.Tracer("SubscriptionRepo").Start(ctx, "CreateDefault", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "subscriptions"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query := `
		INSERT INTO subscriptions (user_id, tier, status, price_cents, currency)
		VALUES ($1, $2, $3, 0, 'USD')`

	_, err := r.pool.Exec(ctx, query, userID, types.TierFree, types.SubscriptionActive)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create default subscription",
			slog.String("userID", userID.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return fmt.Errorf("database error creating default subscription: %w", err)
	}

	span.SetStatus(codes.Ok, "Default subscription created")
	return nil
}
