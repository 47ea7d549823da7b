package roster

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/credtrack/credtrack-api/internal/types"
	"github.com/credtrack/credtrack-api/pkg/middleware"
	"github.com/credtrack/credtrack-api/pkg/server"
)

type Handler struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(svc Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: svc}
}

// limitErrorResponse carries the upgrade prompt payload for a denied add.
type limitErrorResponse struct {
	Error        string `json:"error"`
	Kind         string `json:"kind"`
	RequiredTier string `json:"required_tier"`
	TierName     string `json:"tier_name"`
	FeatureName  string `json:"feature_name"`
	PriceDisplay string `json:"price_display"`
}

// writeError maps limit denials to 403 with the full gate payload before
// falling back to the shared sentinel mapping.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var limitErr *LimitError
	if errors.As(err, &limitErr) {
		server.WriteJSON(w, http.StatusForbidden, limitErrorResponse{
			Error:        limitErr.Error(),
			Kind:         limitErr.Kind,
			RequiredTier: string(limitErr.Decision.RequiredTier),
			TierName:     limitErr.Decision.TierName,
			FeatureName:  limitErr.Decision.FeatureName,
			PriceDisplay: limitErr.Decision.PriceDisplay,
		})
		return
	}
	server.WriteError(w, h.logger, err)
}

func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		server.WriteJSON(w, http.StatusUnauthorized, server.ErrorResponse{Error: "authentication required"})
	}
	return userID, ok
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		server.WriteJSON(w, http.StatusBadRequest, server.ErrorResponse{Error: "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) AddDoctor(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var params types.CreateDoctorParams
	if err := server.DecodeJSON(r, &params); err != nil {
		server.WriteError(w, h.logger, err)
		return
	}

	doctor, err := h.service.AddDoctor(r.Context(), userID, params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusCreated, doctor)
}

func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	doctors, err := h.service.Doctors(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"doctors": doctors})
}

func (h *Handler) RemoveDoctor(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	doctorID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.RemoveDoctor(r.Context(), userID, doctorID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddLicense(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var params types.CreateLicenseParams
	if err := server.DecodeJSON(r, &params); err != nil {
		server.WriteError(w, h.logger, err)
		return
	}

	license, err := h.service.AddLicense(r.Context(), userID, params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusCreated, license)
}

func (h *Handler) ListLicenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var filter types.LicenseFilter
	q := r.URL.Query()
	if raw := q.Get("doctor_id"); raw != "" {
		doctorID, err := uuid.Parse(raw)
		if err != nil {
			server.WriteJSON(w, http.StatusBadRequest, server.ErrorResponse{Error: "invalid doctor_id"})
			return
		}
		filter.DoctorID = &doctorID
	}
	filter.State = q.Get("state")
	if raw := q.Get("expiring_until"); raw != "" {
		until, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			server.WriteJSON(w, http.StatusBadRequest, server.ErrorResponse{Error: "expiring_until must be RFC 3339"})
			return
		}
		filter.ExpiringUntil = &until
	}

	licenses, err := h.service.Licenses(r.Context(), userID, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"licenses": licenses})
}

func (h *Handler) LogCredit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var params types.CreateCreditParams
	if err := server.DecodeJSON(r, &params); err != nil {
		server.WriteError(w, h.logger, err)
		return
	}

	credit, err := h.service.LogCredit(r.Context(), userID, params)
	if err != nil {
		h.writeError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusCreated, credit)
}

func (h *Handler) ListCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	licenseID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	credits, err := h.service.Credits(r.Context(), userID, licenseID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"credits": credits})
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summary(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, summary)
}
