package types

import (
	"time"

	"github.com/google/uuid"
)

// Doctor is a physician tracked by a user. Free accounts may track one;
// paid tiers raise or remove the cap (see the tier catalog).
type Doctor struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	FullName  string    `json:"full_name"`
	NPINumber *string   `json:"npi_number"`
	Specialty *string   `json:"specialty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StateLicense is a medical license held by a tracked doctor in one state,
// with its renewal window and CME hour requirement.
type StateLicense struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	DoctorID      uuid.UUID  `json:"doctor_id"`
	State         string     `json:"state"`
	LicenseNumber string     `json:"license_number"`
	ExpiresAt     *time.Time `json:"expires_at"`
	RequiredHours float64    `json:"required_hours"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CMECredit is one completed continuing-education activity credited
// against a state license.
type CMECredit struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	LicenseID    uuid.UUID `json:"license_id"`
	ActivityName string    `json:"activity_name"`
	Category     string    `json:"category"`
	Hours        float64   `json:"hours"`
	CompletedAt  time.Time `json:"completed_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// LicenseCompliance is earned-vs-required progress for one license.
type LicenseCompliance struct {
	License       StateLicense `json:"license"`
	EarnedHours   float64      `json:"earned_hours"`
	RequiredHours float64      `json:"required_hours"`
	Compliant     bool         `json:"compliant"`
}

// ComplianceSummary aggregates credit progress across every license a
// user tracks. Built by the roster service, consumed by the assistant
// context payload and the analytics surface.
type ComplianceSummary struct {
	DoctorCount   int                 `json:"doctor_count"`
	StateCount    int                 `json:"state_count"`
	TotalHours    float64             `json:"total_hours"`
	Licenses      []LicenseCompliance `json:"licenses"`
	NonCompliant  int                 `json:"non_compliant"`
	NextExpiry    *time.Time          `json:"next_expiry"`
	NextExpiryRef *StateLicense       `json:"-"`
}

// CreateDoctorParams carries the caller-supplied fields for a new doctor.
type CreateDoctorParams struct {
	FullName  string  `json:"full_name"`
	NPINumber *string `json:"npi_number"`
	Specialty *string `json:"specialty"`
}

// CreateLicenseParams carries the caller-supplied fields for a new license.
type CreateLicenseParams struct {
	DoctorID      uuid.UUID  `json:"doctor_id"`
	State         string     `json:"state"`
	LicenseNumber string     `json:"license_number"`
	ExpiresAt     *time.Time `json:"expires_at"`
	RequiredHours float64    `json:"required_hours"`
}

// CreateCreditParams carries the caller-supplied fields for a new credit.
type CreateCreditParams struct {
	LicenseID    uuid.UUID `json:"license_id"`
	ActivityName string    `json:"activity_name"`
	Category     string    `json:"category"`
	Hours        float64   `json:"hours"`
	CompletedAt  time.Time `json:"completed_at"`
}

// LicenseFilter narrows license listings. Zero values mean no filter.
type LicenseFilter struct {
	DoctorID      *uuid.UUID
	State         string
	ExpiringUntil *time.Time
}
