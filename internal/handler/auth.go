package handler

import (
	"net/http"

	"github.com/tenantgate/platform/internal/pipeline"
	"github.com/tenantgate/platform/internal/service"
)

// AuthHandler handles registration, login and logout endpoints.
type AuthHandler struct {
	authSvc *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc *service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var input service.RegisterInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	result, err := h.authSvc.Register(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusCreated, result)
}

// Login handles POST /auth/login. Success sets the session cookie the
// authorization pipeline keys on.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input service.LoginInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	result, err := h.authSvc.Login(r.Context(), input, pipeline.ClientIP(r))
	if err != nil {
		RespondError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     pipeline.SessionCookie,
		Value:    result.SessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	RespondJSON(w, http.StatusOK, result)
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(pipeline.SessionCookie); err == nil {
		if err := h.authSvc.Logout(r.Context(), cookie.Value); err != nil {
			RespondError(w, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     pipeline.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	RespondJSON(w, http.StatusNoContent, nil)
}
