package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tenantgate/platform/internal/auth"
	"github.com/tenantgate/platform/internal/domain"
	"github.com/tenantgate/platform/internal/risk"
)

// RiskHandler exposes the security level endpoints.
type RiskHandler struct {
	engine *risk.Engine
}

// NewRiskHandler creates a new RiskHandler.
func NewRiskHandler(engine *risk.Engine) *RiskHandler {
	return &RiskHandler{engine: engine}
}

type registerActionInput struct {
	ActionType string `json:"action_type"`
	Detail     string `json:"detail"`
}

// RegisterAction handles POST /admin/security/{tenantID}/{userID}/actions.
func (h *RiskHandler) RegisterAction(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	userID := chi.URLParam(r, "userID")

	var input registerActionInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	state, err := h.engine.RegisterAction(r.Context(), tenantID, userID, input.ActionType, input.Detail)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, state)
}

// CurrentLevel handles GET /admin/security/{tenantID}/{userID}.
func (h *RiskHandler) CurrentLevel(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	userID := chi.URLParam(r, "userID")

	state, err := h.engine.CurrentLevel(r.Context(), tenantID, userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, state)
}

// MySecurityLevel handles GET /me/security-level for the authenticated user.
func (h *RiskHandler) MySecurityLevel(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if claims == nil {
		RespondError(w, domain.ErrUnauthorized("no auth context"))
		return
	}

	state, err := h.engine.CurrentLevel(r.Context(), claims.TenantID, claims.Subject)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, state)
}

// RecentActions handles GET /admin/security/{tenantID}/{userID}/actions.
func (h *RiskHandler) RecentActions(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	userID := chi.URLParam(r, "userID")

	events, err := h.engine.RecentActions(r.Context(), tenantID, userID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, events)
}
