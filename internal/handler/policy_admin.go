package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/tenantgate/platform/internal/domain"
	"github.com/tenantgate/platform/internal/service"
)

// PolicyAdminHandler exposes the policy administration endpoints.
type PolicyAdminHandler struct {
	svc *service.PolicyAdminService
}

// NewPolicyAdminHandler creates a new PolicyAdminHandler.
func NewPolicyAdminHandler(svc *service.PolicyAdminService) *PolicyAdminHandler {
	return &PolicyAdminHandler{svc: svc}
}

// List handles GET /admin/policies.
func (h *PolicyAdminHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.svc.List(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, summaries)
}

// Create handles POST /admin/policies.
func (h *PolicyAdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreatePolicyInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	created, err := h.svc.Create(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, created)
}

// SetActive handles PATCH /admin/policies/{id}/active.
func (h *PolicyAdminHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, err := policyID(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	var input struct {
		Active bool `json:"active"`
	}
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}
	if err := h.svc.SetActive(r.Context(), id, input.Active); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

// Delete handles DELETE /admin/policies/{id}.
func (h *PolicyAdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := policyID(r)
	if err != nil {
		RespondError(w, err)
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}

// Test handles POST /admin/policies/test, evaluating a synthetic context.
func (h *PolicyAdminHandler) Test(w http.ResponseWriter, r *http.Request) {
	var input service.TestPolicyInput
	if err := DecodeJSON(r, &input); err != nil {
		RespondJSON(w, http.StatusBadRequest, map[string]string{
			"code":    "VALIDATION_ERROR",
			"message": "invalid request body",
		})
		return
	}

	result, err := h.svc.Test(r.Context(), input)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

func policyID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, domain.ErrValidation("invalid policy id")
	}
	return id, nil
}
