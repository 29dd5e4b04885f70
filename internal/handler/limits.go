package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tenantgate/platform/internal/domain"
	"github.com/tenantgate/platform/internal/service"
)

// LimitsHandler exposes the tenant session limit endpoints.
type LimitsHandler struct {
	svc *service.TenantLimitService
}

// NewLimitsHandler creates a new LimitsHandler.
func NewLimitsHandler(svc *service.TenantLimitService) *LimitsHandler {
	return &LimitsHandler{svc: svc}
}

// List handles GET /admin/limits.
func (h *LimitsHandler) List(w http.ResponseWriter, r *http.Request) {
	limits, err := h.svc.List(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, limits)
}

type upsertLimitInput struct {
	MaxSessions        int `json:"max_sessions"`
	MaxIdleSeconds     int `json:"max_idle_seconds"`
	MaxDurationSeconds int `json:"max_duration_seconds"`
}

// Upsert handles PUT /admin/limits/{tenantID}.
func (h *LimitsHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var input upsertLimitInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	stored, err := h.svc.Upsert(r.Context(), domain.TenantSessionLimit{
		TenantID:           chi.URLParam(r, "tenantID"),
		MaxSessions:        input.MaxSessions,
		MaxIdleSeconds:     input.MaxIdleSeconds,
		MaxDurationSeconds: input.MaxDurationSeconds,
	})
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, stored)
}
