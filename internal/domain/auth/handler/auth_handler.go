package handler

import (
	"log/slog"
	"net/http"

	"github.com/credtrack/credtrack-api/internal/domain/auth/service"
	"github.com/credtrack/credtrack-api/internal/types"
	"github.com/credtrack/credtrack-api/pkg/server"
)

type AuthHandler struct {
	logger  *slog.Logger
	service *service.AuthService
}

func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{logger: logger, service: svc}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req types.RegisterRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, h.logger, err)
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		server.WriteError(w, h.logger, err)
		return
	}
	server.WriteJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, h.logger, err)
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		server.WriteError(w, h.logger, err)
		return
	}
	server.WriteJSON(w, http.StatusOK, resp)
}
