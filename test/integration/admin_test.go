//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantgate/platform/test/integration/testutil"
)

func TestPolicyAdminLifecycle(t *testing.T) {
	env := testutil.NewTestEnv(t)
	admin := env.AdminToken("admin")

	// Create
	resp := env.POST("/admin/policies", map[string]interface{}{
		"name":            "weekend curfew",
		"condition_type":  "TIME_WINDOW",
		"effect":          "DENY",
		"priority":        130,
		"active":          true,
		"tenants":         "acme",
		"groups_excluded": "vpn-exempt",
		"window_start":    "22:00",
		"window_end":      "02:00",
		"window_zone":     "Europe/Berlin",
	}, admin)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID int64 `json:"id"`
	}
	testutil.DecodeJSON(t, resp, &created)
	require.NotZero(t, created.ID)

	// List
	list := env.AuthGET("/admin/policies", admin)
	require.Equal(t, http.StatusOK, list.StatusCode)
	var summaries []struct {
		Name       string `json:"name"`
		ScopeCount int    `json:"scope_count"`
	}
	testutil.DecodeJSON(t, list, &summaries)
	require.Len(t, summaries, 1)
	assert.Equal(t, "weekend curfew", summaries[0].Name)
	assert.Equal(t, 2, summaries[0].ScopeCount)

	// Dry run inside the window
	test := env.POST("/admin/policies/test", map[string]string{
		"tenant_id": "acme",
		"user_id":   "u-1",
		"date":      "2026-03-07",
		"time":      "23:30",
		"zone":      "Europe/Berlin",
	}, admin)
	require.Equal(t, http.StatusOK, test.StatusCode)
	var verdict struct {
		Allowed  bool   `json:"allowed"`
		PolicyID *int64 `json:"policy_id"`
	}
	testutil.DecodeJSON(t, test, &verdict)
	assert.False(t, verdict.Allowed)
	require.NotNil(t, verdict.PolicyID)
	assert.Equal(t, created.ID, *verdict.PolicyID)

	// Deactivate, then the dry run allows
	toggle := env.AuthPATCH(fmt.Sprintf("/admin/policies/%d/active", created.ID),
		map[string]bool{"active": false}, admin)
	toggle.Body.Close()
	require.Equal(t, http.StatusNoContent, toggle.StatusCode)

	test2 := env.POST("/admin/policies/test", map[string]string{
		"tenant_id": "acme",
		"date":      "2026-03-07",
		"time":      "23:30",
		"zone":      "Europe/Berlin",
	}, admin)
	require.Equal(t, http.StatusOK, test2.StatusCode)
	testutil.DecodeJSON(t, test2, &verdict)
	assert.True(t, verdict.Allowed)

	// Delete
	del := env.AuthDELETE(fmt.Sprintf("/admin/policies/%d", created.ID), admin)
	del.Body.Close()
	require.Equal(t, http.StatusNoContent, del.StatusCode)

	missing := env.AuthDELETE(fmt.Sprintf("/admin/policies/%d", created.ID), admin)
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	testutil.AssertErrorCode(t, missing, "NOT_FOUND")
}

func TestPolicyAdminValidation(t *testing.T) {
	env := testutil.NewTestEnv(t)
	admin := env.AdminToken("admin")

	resp := env.POST("/admin/policies", map[string]interface{}{
		"name":            "self-contradicting",
		"condition_type":  "LOCATION",
		"effect":          "DENY",
		"tenants":         "acme",
		"countries":       "DE",
		"groups_included": "ops",
		"groups_excluded": "ops",
	}, admin)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	testutil.AssertErrorCode(t, resp, "VALIDATION_ERROR")

	bad := env.POST("/admin/policies/test", map[string]string{
		"tenant_id": "acme",
		"date":      "07.03.2026",
	}, admin)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
	testutil.AssertErrorCode(t, bad, "VALIDATION_ERROR")
}

func TestPolicyAdminRBAC(t *testing.T) {
	env := testutil.NewTestEnv(t)
	viewer := env.AdminToken("viewer")

	// Viewers can read but not write.
	list := env.AuthGET("/admin/policies", viewer)
	list.Body.Close()
	assert.Equal(t, http.StatusOK, list.StatusCode)

	resp := env.POST("/admin/policies", map[string]interface{}{
		"name":           "nope",
		"condition_type": "LOCATION",
		"effect":         "DENY",
		"tenants":        "acme",
		"countries":      "DE",
	}, viewer)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// No token at all.
	anon := env.GET("/admin/policies")
	anon.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, anon.StatusCode)
}

func TestTenantLimitAdmin(t *testing.T) {
	env := testutil.NewTestEnv(t)
	admin := env.AdminToken("admin")

	resp := env.AuthPUT("/admin/limits/acme", map[string]int{
		"max_sessions":         3,
		"max_idle_seconds":     -5,
		"max_duration_seconds": 7200,
	}, admin)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stored struct {
		TenantID           string `json:"tenant_id"`
		MaxSessions        int    `json:"max_sessions"`
		MaxIdleSeconds     int    `json:"max_idle_seconds"`
		MaxDurationSeconds int    `json:"max_duration_seconds"`
	}
	testutil.DecodeJSON(t, resp, &stored)
	assert.Equal(t, "acme", stored.TenantID)
	assert.Equal(t, 3, stored.MaxSessions)
	assert.Equal(t, 0, stored.MaxIdleSeconds) // negatives clamp to zero
	assert.Equal(t, 7200, stored.MaxDurationSeconds)

	list := env.AuthGET("/admin/limits", admin)
	require.Equal(t, http.StatusOK, list.StatusCode)
	var limits []struct {
		TenantID string `json:"tenant_id"`
	}
	testutil.DecodeJSON(t, list, &limits)
	require.Len(t, limits, 1)
	assert.Equal(t, "acme", limits[0].TenantID)
}

func TestSecurityLevelAdmin(t *testing.T) {
	env := testutil.NewTestEnv(t)
	admin := env.AdminToken("admin")

	// Unknown user starts at the default level.
	current := env.AuthGET("/admin/security/acme/u-9", admin)
	require.Equal(t, http.StatusOK, current.StatusCode)
	var state struct {
		Level string `json:"level"`
		Score int    `json:"score"`
	}
	testutil.DecodeJSON(t, current, &state)
	assert.Equal(t, "LOW", state.Level)

	// One failed login lifts it to MEDIUM.
	reg := env.POST("/admin/security/acme/u-9/actions", map[string]string{
		"action_type": "LOGIN_FAILURE",
		"detail":      "bad password",
	}, admin)
	require.Equal(t, http.StatusOK, reg.StatusCode)
	testutil.DecodeJSON(t, reg, &state)
	assert.Equal(t, "MEDIUM", state.Level)

	// Blank action types are recorded as UNKNOWN.
	blank := env.POST("/admin/security/acme/u-9/actions", map[string]string{
		"action_type": "",
	}, admin)
	require.Equal(t, http.StatusOK, blank.StatusCode)
	blank.Body.Close()

	recent := env.AuthGET("/admin/security/acme/u-9/actions", admin)
	require.Equal(t, http.StatusOK, recent.StatusCode)
	var events []struct {
		ActionType string `json:"action_type"`
	}
	testutil.DecodeJSON(t, recent, &events)
	require.Len(t, events, 2)
	assert.Equal(t, "UNKNOWN", events[0].ActionType)
	assert.Equal(t, "LOGIN_FAILURE", events[1].ActionType)
}
