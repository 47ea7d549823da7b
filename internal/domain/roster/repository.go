package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
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

// Repository defines persistence for doctors, state licenses and credits.
type Repository interface {
	CountDoctors(ctx context.Context, userID uuid.UUID) (int, error)
	CreateDoctor(ctx context.Context, userID uuid.UUID, params types.CreateDoctorParams) (*types.Doctor, error)
	ListDoctors(ctx context.Context, userID uuid.UUID) ([]types.Doctor, error)
	DeleteDoctor(ctx context.Context, userID, doctorID uuid.UUID) error

	// CountStates counts distinct states licensed by the user; the tier
	// limit applies to states, not license rows.
	CountStates(ctx context.Context, userID uuid.UUID) (int, error)
	CreateLicense(ctx context.Context, userID uuid.UUID, params types.CreateLicenseParams) (*types.StateLicense, error)
	ListLicenses(ctx context.Context, userID uuid.UUID, filter types.LicenseFilter) ([]types.StateLicense, error)

	CreateCredit(ctx context.Context, userID uuid.UUID, params types.CreateCreditParams) (*types.CMECredit, error)
	ListCredits(ctx context.Context, userID, licenseID uuid.UUID) ([]types.CMECredit, error)

	ComplianceSummary(ctx context.Context, userID uuid.UUID) (*types.ComplianceSummary, error)
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

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *PostgresRepository) CountDoctors(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM doctors WHERE user_id = $1", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("database error counting doctors: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) CreateDoctor(ctx context.Context, userID uuid.UUID, params types.CreateDoctorParams) (*types.Doctor, error) {
	ctx, span := otel.Tracer("RosterRepo").Start(ctx, "CreateDoctor", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "doctors"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query := `
		INSERT INTO doctors (user_id, full_name, npi_number, specialty)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, full_name, npi_number, specialty, created_at, updated_at`

	var doctor types.Doctor
	err := r.pool.QueryRow(ctx, query, userID, params.FullName, params.NPINumber, params.Specialty).Scan(
		&doctor.ID, &doctor.UserID, &doctor.FullName, &doctor.NPINumber,
		&doctor.Specialty, &doctor.CreatedAt, &doctor.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create doctor", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating doctor: %w", err)
	}

	span.SetStatus(codes.Ok, "Doctor created")
	return &doctor, nil
}

func (r *PostgresRepository) ListDoctors(ctx context.Context, userID uuid.UUID) ([]types.Doctor, error) {
	query := `
		SELECT id, user_id, full_name, npi_number, specialty, created_at, updated_at
		FROM doctors WHERE user_id = $1 ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("database error listing doctors: %w", err)
	}
	defer rows.Close()

	var doctors []types.Doctor
	for rows.Next() {
		var d types.Doctor
		if err := rows.Scan(&d.ID, &d.UserID, &d.FullName, &d.NPINumber,
			&d.Specialty, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan doctor row: %w", err)
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

func (r *PostgresRepository) DeleteDoctor(ctx context.Context, userID, doctorID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM doctors WHERE id = $1 AND user_id = $2", doctorID, userID)
	if err != nil {
		return fmt.Errorf("database error deleting doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("doctor not found: %w", types.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) CountStates(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(DISTINCT state) FROM state_licenses WHERE user_id = $1", userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("database error counting states: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) CreateLicense(ctx context.Context, userID uuid.UUID, params types.CreateLicenseParams) (*types.StateLicense, error) {
	ctx, span := otel.Tracer("RosterRepo").Start(ctx, "CreateLicense", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "INSERT"),
		attribute.String("db.sql.table", "state_licenses"),
		attribute.String("db.user.id", userID.String()),
		attribute.String("license.state", params.State),
	))
	defer span.End()

	query := `
		INSERT INTO state_licenses (user_id, doctor_id, state, license_number, expires_at, required_hours)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, doctor_id, state, license_number, expires_at, required_hours, created_at, updated_at`

	var lic types.StateLicense
	err := r.pool.QueryRow(ctx, query,
		userID, params.DoctorID, params.State, params.LicenseNumber,
		params.ExpiresAt, params.RequiredHours).Scan(
		&lic.ID, &lic.UserID, &lic.DoctorID, &lic.State, &lic.LicenseNumber,
		&lic.ExpiresAt, &lic.RequiredHours, &lic.CreatedAt, &lic.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create license", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB INSERT failed")
		return nil, fmt.Errorf("database error creating license: %w", err)
	}

	span.SetStatus(codes.Ok, "License created")
	return &lic, nil
}

func (r *PostgresRepository) ListLicenses(ctx context.Context, userID uuid.UUID, filter types.LicenseFilter) ([]types.StateLicense, error) {
	builder := psql.
		Select("id", "user_id", "doctor_id", "state", "license_number",
			"expires_at", "required_hours", "created_at", "updated_at").
		From("state_licenses").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("expires_at NULLS LAST", "state")

	if filter.DoctorID != nil {
		builder = builder.Where(sq.Eq{"doctor_id": *filter.DoctorID})
	}
	if filter.State != "" {
		builder = builder.Where(sq.Eq{"state": filter.State})
	}
	if filter.ExpiringUntil != nil {
		builder = builder.Where(sq.LtOrEq{"expires_at": *filter.ExpiringUntil})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build license query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("database error listing licenses: %w", err)
	}
	defer rows.Close()

	var licenses []types.StateLicense
	for rows.Next() {
		var lic types.StateLicense
		if err := rows.Scan(&lic.ID, &lic.UserID, &lic.DoctorID, &lic.State,
			&lic.LicenseNumber, &lic.ExpiresAt, &lic.RequiredHours,
			&lic.CreatedAt, &lic.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan license row: %w", err)
		}
		licenses = append(licenses, lic)
	}
	return licenses, rows.Err()
}

func (r *PostgresRepository) CreateCredit(ctx context.Context, userID uuid.UUID, params types.CreateCreditParams) (*types.CMECredit, error) {
	// The license must belong to the user; crediting someone else's
	// license is a not-found, not a forbidden, to avoid leaking IDs.
	var exists bool
	err := r.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM state_licenses WHERE id = $1 AND user_id = $2)",
		params.LicenseID, userID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("database error checking license ownership: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("license not found: %w", types.ErrNotFound)
	}

	query := `
		INSERT INTO cme_credits (user_id, license_id, activity_name, category, hours, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, license_id, activity_name, category, hours, completed_at, created_at`

	var credit types.CMECredit
	err = r.pool.QueryRow(ctx, query,
		userID, params.LicenseID, params.ActivityName, params.Category,
		params.Hours, params.CompletedAt).Scan(
		&credit.ID, &credit.UserID, &credit.LicenseID, &credit.ActivityName,
		&credit.Category, &credit.Hours, &credit.CompletedAt, &credit.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to create credit", slog.Any("error", err))
		return nil, fmt.Errorf("database error creating credit: %w", err)
	}
	return &credit, nil
}

func (r *PostgresRepository) ListCredits(ctx context.Context, userID, licenseID uuid.UUID) ([]types.CMECredit, error) {
	query := `
		SELECT id, user_id, license_id, activity_name, category, hours, completed_at, created_at
		FROM cme_credits
		WHERE user_id = $1 AND license_id = $2
		ORDER BY completed_at DESC`

	rows, err := r.pool.Query(ctx, query, userID, licenseID)
	if err != nil {
		return nil, fmt.Errorf("database error listing credits: %w", err)
	}
	defer rows.Close()

	var credits []types.CMECredit
	for rows.Next() {
		var c types.CMECredit
		if err := rows.Scan(&c.ID, &c.UserID, &c.LicenseID, &c.ActivityName,
			&c.Category, &c.Hours, &c.CompletedAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credit row: %w", err)
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// ComplianceSummary aggregates earned-vs-required hours per license in
// one grouped query plus a doctor count.
func (r *PostgresRepository) ComplianceSummary(ctx context.Context, userID uuid.UUID) (*types.ComplianceSummary, error) {
	ctx, span := otel.Tracer("RosterRepo").Start(ctx, "ComplianceSummary", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.operation", "SELECT"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	query := `
		SELECT l.id, l.user_id, l.doctor_id, l.state, l.license_number,
		       l.expires_at, l.required_hours, l.created_at, l.updated_at,
		       COALESCE(SUM(c.hours), 0) AS earned_hours
		FROM state_licenses l
		LEFT JOIN cme_credits c ON c.license_id = l.id
		WHERE l.user_id = $1
		GROUP BY l.id
		ORDER BY l.expires_at NULLS LAST`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "DB SELECT failed")
		return nil, fmt.Errorf("database error building compliance summary: %w", err)
	}
	defer rows.Close()

	summary := &types.ComplianceSummary{}
	states := make(map[string]struct{})
	for rows.Next() {
		var lc types.LicenseCompliance
		if err := rows.Scan(&lc.License.ID, &lc.License.UserID, &lc.License.DoctorID,
			&lc.License.State, &lc.License.LicenseNumber, &lc.License.ExpiresAt,
			&lc.License.RequiredHours, &lc.License.CreatedAt, &lc.License.UpdatedAt,
			&lc.EarnedHours); err != nil {
			return nil, fmt.Errorf("failed to scan compliance row: %w", err)
		}
		lc.RequiredHours = lc.License.RequiredHours
		lc.Compliant = lc.EarnedHours >= lc.RequiredHours
		if !lc.Compliant {
			summary.NonCompliant++
		}
		summary.TotalHours += lc.EarnedHours
		states[lc.License.State] = struct{}{}
		if lc.License.ExpiresAt != nil &&
			(summary.NextExpiry == nil || lc.License.ExpiresAt.Before(*summary.NextExpiry)) {
			expiry := *lc.License.ExpiresAt
			license := lc.License
			summary.NextExpiry = &expiry
			summary.NextExpiryRef = &license
		}
		summary.Licenses = append(summary.Licenses, lc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading compliance rows: %w", err)
	}
	summary.StateCount = len(states)

	if summary.DoctorCount, err = r.CountDoctors(ctx, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "doctor count failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "Summary built")
	return summary, nil
}
