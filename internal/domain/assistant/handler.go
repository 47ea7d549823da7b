package assistant

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

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

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		server.WriteJSON(w, http.StatusUnauthorized, server.ErrorResponse{Error: "authentication required"})
	}
	return userID, ok
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		server.WriteJSON(w, http.StatusBadRequest, server.ErrorResponse{Error: "invalid session id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) StartChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	var req types.StartChatRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.InitialMessage) == "" {
		server.WriteJSON(w, http.StatusBadRequest, server.ErrorResponse{Error: "initial_message is required"})
		return
	}

	resp, err := h.service.StartChat(r.Context(), userID, req)
	if err != nil {
		server.WriteError(w, h.logger, err)
		return
	}
	server.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) ContinueChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req types.ContinueChatRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, h.logger, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		server.WriteJSON(w, http.StatusBadRequest, server.ErrorResponse{Error: "message is required"})
		return
	}

	resp, err := h.service.ContinueChat(r.Context(), userID, sessionID, req.Message)
	if err != nil {
		server.WriteError(w, h.logger, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)

	resp, err := h.service.Sessions(r.Context(), userID, page, limit)
	if err != nil {
		server.WriteError(w, h.logger, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	messages, err := h.service.Messages(r.Context(), userID, sessionID, queryInt(r, "limit", 50))
	if err != nil {
		server.WriteError(w, h.logger, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	sessionID, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	if err := h.service.EndSession(r.Context(), userID, sessionID); err != nil {
		server.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
