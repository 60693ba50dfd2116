package handler

import (
	"log/slog"
	"net/http"

	"github.com/lottodesk/platform/internal/domain"
	"github.com/lottodesk/platform/internal/service"
)

// AuthHandler handles registration, login and token endpoints.
type AuthHandler struct {
	authSvc *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, logger: logger}
}

type operatorResponse struct {
	Operator *domain.Operator `json:"operator"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, r, h.logger, err)
		return
	}

	op, err := h.authSvc.Register(r.Context(), input)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}

	RespondJSON(w, http.StatusCreated, operatorResponse{Operator: op})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, r, h.logger, err)
		return
	}

	result, err := h.authSvc.Login(r.Context(), input, ClientIP(r))
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}

	RespondJSON(w, http.StatusOK, result)
}

// ValidateToken handles POST /auth/validate-token.
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Token string `json:"token"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondError(w, r, h.logger, err)
		return
	}

	op, err := h.authSvc.ValidateToken(r.Context(), input.Token)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}

	RespondJSON(w, http.StatusOK, operatorResponse{Operator: op})
}

// Me handles GET /operators/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, err := operatorID(r)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}

	op, err := h.authSvc.Me(r.Context(), id)
	if err != nil {
		RespondError(w, r, h.logger, err)
		return
	}

	RespondJSON(w, http.StatusOK, operatorResponse{Operator: op})
}
