package roster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/credtrack/credtrack-api/internal/domain/entitlements"
	"github.com/credtrack/credtrack-api/internal/types"
	"github.com/credtrack/credtrack-api/pkg/observability"
)

var _ Service = (*ServiceImpl)(nil)

// Service is the roster business logic. Adds are gated by the current
// entitlement tier before touching the repository.
type Service interface {
	AddDoctor(ctx context.Context, userID uuid.UUID, params types.CreateDoctorParams) (*types.Doctor, error)
	Doctors(ctx context.Context, userID uuid.UUID) ([]types.Doctor, error)
	RemoveDoctor(ctx context.Context, userID, doctorID uuid.UUID) error

	AddLicense(ctx context.Context, userID uuid.UUID, params types.CreateLicenseParams) (*types.StateLicense, error)
	Licenses(ctx context.Context, userID uuid.UUID, filter types.LicenseFilter) ([]types.StateLicense, error)

	LogCredit(ctx context.Context, userID uuid.UUID, params types.CreateCreditParams) (*types.CMECredit, error)
	Credits(ctx context.Context, userID, licenseID uuid.UUID) ([]types.CMECredit, error)

	Summary(ctx context.Context, userID uuid.UUID) (*types.ComplianceSummary, error)
}

// LimitError reports a denied add along with everything a gating surface
// must present: tier name, involved limit, price display.
type LimitError struct {
	Kind     string
	Decision types.GateDecision
}

func (e *LimitError) Error() string {
	if e.Decision.TierName != "" {
		return fmt.Sprintf("%s limit reached, requires %s (%s)",
			e.Kind, e.Decision.TierName, e.Decision.PriceDisplay)
	}
	return fmt.Sprintf("%s limit reached", e.Kind)
}

func (e *LimitError) Unwrap() error { return types.ErrForbidden }

type ServiceImpl struct {
	logger   *slog.Logger
	repo     Repository
	sessions *entitlements.Registry
}

func NewService(repo Repository, sessions *entitlements.Registry, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		repo:     repo,
		sessions: sessions,
	}
}

func (s *ServiceImpl) AddDoctor(ctx context.Context, userID uuid.UUID, params types.CreateDoctorParams) (*types.Doctor, error) {
	ctx, span := otel.Tracer("RosterService").Start(ctx, "AddDoctor")
	span.SetAttributes(attribute.String("user.id", userID.String()))
	defer span.End()

	l := s.logger.With(slog.String("method", "AddDoctor"), slog.String("userID", userID.String()))

	count, err := s.repo.CountDoctors(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "doctor count failed")
		return nil, err
	}

	view := s.sessions.For(ctx, userID).View()
	if !view.CanAddDoctor(count) {
		observability.RecordGateDenial("doctor_limit", string(view.Tier))
		l.InfoContext(ctx, "doctor add denied by tier limit",
			slog.String("tier", string(view.Tier)), slog.Int("count", count))
		span.SetStatus(codes.Ok, "Denied by limit")
		return nil, &LimitError{
			Kind:     "doctor",
			Decision: entitlements.GateDoctorCount(view.Tier, count),
		}
	}

	doctor, err := s.repo.CreateDoctor(ctx, userID, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}

	l.InfoContext(ctx, "doctor added", slog.String("doctorID", doctor.ID.String()))
	span.SetStatus(codes.Ok, "Doctor added")
	return doctor, nil
}

func (s *ServiceImpl) Doctors(ctx context.Context, userID uuid.UUID) ([]types.Doctor, error) {
	return s.repo.ListDoctors(ctx, userID)
}

func (s *ServiceImpl) RemoveDoctor(ctx context.Context, userID, doctorID uuid.UUID) error {
	return s.repo.DeleteDoctor(ctx, userID, doctorID)
}

func (s *ServiceImpl) AddLicense(ctx context.Context, userID uuid.UUID, params types.CreateLicenseParams) (*types.StateLicense, error) {
	ctx, span := otel.Tracer("RosterService").Start(ctx, "AddLicense")
	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("license.state", params.State),
	)
	defer span.End()

	l := s.logger.With(slog.String("method", "AddLicense"), slog.String("userID", userID.String()))

	count, err := s.repo.CountStates(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "state count failed")
		return nil, err
	}

	// A license in an already-tracked state does not grow the distinct
	// state count, so it passes regardless of the limit.
	existing, err := s.repo.ListLicenses(ctx, userID, types.LicenseFilter{State: params.State})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "license lookup failed")
		return nil, err
	}

	view := s.sessions.For(ctx, userID).View()
	if len(existing) == 0 && !view.CanAddState(count) {
		observability.RecordGateDenial("state_limit", string(view.Tier))
		l.InfoContext(ctx, "license add denied by tier limit",
			slog.String("tier", string(view.Tier)), slog.Int("states", count))
		span.SetStatus(codes.Ok, "Denied by limit")
		return nil, &LimitError{
			Kind:     "state license",
			Decision: entitlements.GateStateCount(view.Tier, count),
		}
	}

	lic, err := s.repo.CreateLicense(ctx, userID, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		return nil, err
	}

	l.InfoContext(ctx, "license added",
		slog.String("licenseID", lic.ID.String()), slog.String("state", lic.State))
	span.SetStatus(codes.Ok, "License added")
	return lic, nil
}

func (s *ServiceImpl) Licenses(ctx context.Context, userID uuid.UUID, filter types.LicenseFilter) ([]types.StateLicense, error) {
	return s.repo.ListLicenses(ctx, userID, filter)
}

func (s *ServiceImpl) LogCredit(ctx context.Context, userID uuid.UUID, params types.CreateCreditParams) (*types.CMECredit, error) {
	if params.Hours <= 0 {
		return nil, fmt.Errorf("credit hours must be positive: %w", types.ErrBadRequest)
	}
	return s.repo.CreateCredit(ctx, userID, params)
}

func (s *ServiceImpl) Credits(ctx context.Context, userID, licenseID uuid.UUID) ([]types.CMECredit, error) {
	return s.repo.ListCredits(ctx, userID, licenseID)
}

func (s *ServiceImpl) Summary(ctx context.Context, userID uuid.UUID) (*types.ComplianceSummary, error) {
	return s.repo.ComplianceSummary(ctx, userID)
}
