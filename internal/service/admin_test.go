package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantgate/platform/internal/domain"
	"github.com/tenantgate/platform/internal/repository"
)

type fakePolicyRepo struct {
	nextID   int64
	policies []*domain.SessionPolicy
	failWith error
}

func (f *fakePolicyRepo) FindActiveForTenant(ctx context.Context, db repository.DBTX, tenantID string) ([]*domain.SessionPolicy, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []*domain.SessionPolicy
	for _, p := range f.policies {
		if !p.Active {
			continue
		}
		for _, s := range p.Scopes {
			if s.ScopeType == domain.ScopeTenant && !s.Excluded && s.Value == tenantID {
				out = append(out, p)
				break
			}
		}
	}
	return out, nil
}

func (f *fakePolicyRepo) FindAll(ctx context.Context, db repository.DBTX) ([]*domain.SessionPolicy, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return f.policies, nil
}

func (f *fakePolicyRepo) FindByID(ctx context.Context, db repository.DBTX, id int64) (*domain.SessionPolicy, error) {
	for _, p := range f.policies {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (f *fakePolicyRepo) Create(ctx context.Context, db repository.DBTX, p *domain.SessionPolicy) (*domain.SessionPolicy, error) {
	f.nextID++
	p.ID = f.nextID
	p.CreatedAt = time.Now()
	f.policies = append(f.policies, p)
	return p, nil
}

func (f *fakePolicyRepo) SetActive(ctx context.Context, db repository.DBTX, id int64, active bool) (bool, error) {
	for _, p := range f.policies {
		if p.ID == id {
			p.Active = active
			return true, nil
		}
	}
	return false, nil
}

func (f *fakePolicyRepo) Delete(ctx context.Context, db repository.DBTX, id int64) (bool, error) {
	for i, p := range f.policies {
		if p.ID == id {
			f.policies = append(f.policies[:i], f.policies[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func validInput() CreatePolicyInput {
	return CreatePolicyInput{
		Name:          "maintenance window",
		ConditionType: "TIME_WINDOW",
		Effect:        "DENY",
		Priority:      100,
		Active:        true,
		Tenants:       "acme",
		WindowStart:   "22:00",
		WindowEnd:     "02:00",
		WindowZone:    "Europe/Berlin",
	}
}

func TestCreatePolicy(t *testing.T) {
	repo := &fakePolicyRepo{}
	svc := NewPolicyAdminService(nil, repo)

	p, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, domain.ConditionTimeWindow, p.ConditionType)
	assert.JSONEq(t, `{"start":"22:00","end":"02:00","zone":"Europe/Berlin"}`, p.ConditionValue)
	require.Len(t, p.Scopes, 1)
	assert.Equal(t, domain.ScopeTenant, p.Scopes[0].ScopeType)
	assert.Equal(t, "acme", p.Scopes[0].Value)
	assert.False(t, p.Scopes[0].Excluded)
}

func TestCreatePolicyScopeParsing(t *testing.T) {
	repo := &fakePolicyRepo{}
	svc := NewPolicyAdminService(nil, repo)

	input := validInput()
	input.Tenants = "acme, globex\nacme"
	input.GroupsIncluded = "ops,dev"
	input.GroupsExcluded = "contractors"
	input.UsersExcluded = "u-9"

	p, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	// Duplicate tenant token collapses; the rest fan out into scopes.
	assert.Len(t, p.Scopes, 6)
	excludedGroups := p.ScopeValues(domain.ScopeGroup, true)
	assert.Contains(t, excludedGroups, "contractors")
	excludedUsers := p.ScopeValues(domain.ScopeUser, true)
	assert.Contains(t, excludedUsers, "u-9")
}

func TestCreatePolicyValidation(t *testing.T) {
	svc := NewPolicyAdminService(nil, &fakePolicyRepo{})
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*CreatePolicyInput)
	}{
		{"missing name", func(i *CreatePolicyInput) { i.Name = "  " }},
		{"bad condition type", func(i *CreatePolicyInput) { i.ConditionType = "WEATHER" }},
		{"bad effect", func(i *CreatePolicyInput) { i.Effect = "MAYBE" }},
		{"no tenants", func(i *CreatePolicyInput) { i.Tenants = "" }},
		{"missing window end", func(i *CreatePolicyInput) { i.WindowEnd = "" }},
		{"bad window start", func(i *CreatePolicyInput) { i.WindowStart = "25:00" }},
		{"bad window zone", func(i *CreatePolicyInput) { i.WindowZone = "Mars/Olympus" }},
		{"group in both lists", func(i *CreatePolicyInput) {
			i.GroupsIncluded = "ops"
			i.GroupsExcluded = "ops"
		}},
		{"user in both lists", func(i *CreatePolicyInput) {
			i.UsersIncluded = "u-1"
			i.UsersExcluded = "u-1"
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)
			_, err := svc.Create(ctx, input)
			require.Error(t, err)
			appErr, ok := err.(*domain.AppError)
			require.True(t, ok)
			assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
		})
	}
}

func TestCreatePolicyConditionPayloads(t *testing.T) {
	svc := NewPolicyAdminService(nil, &fakePolicyRepo{})
	ctx := context.Background()

	input := validInput()
	input.ConditionType = "IP_RANGE"
	input.CIDRs = "10.0.0.0/8, 192.168.1.0/24"
	p, err := svc.Create(ctx, input)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cidr":["10.0.0.0/8","192.168.1.0/24"]}`, p.ConditionValue)

	input = validInput()
	input.ConditionType = "LOCATION"
	input.Countries = "de, at"
	p, err = svc.Create(ctx, input)
	require.NoError(t, err)
	assert.JSONEq(t, `{"countries":["DE","AT"]}`, p.ConditionValue)

	input = validInput()
	input.ConditionType = "IP_RANGE"
	input.CIDRs = ""
	_, err = svc.Create(ctx, input)
	require.Error(t, err)

	input = validInput()
	input.ConditionType = "LOCATION"
	input.Countries = ""
	_, err = svc.Create(ctx, input)
	require.Error(t, err)
}

func TestSetActiveAndDelete(t *testing.T) {
	repo := &fakePolicyRepo{}
	svc := NewPolicyAdminService(nil, repo)
	ctx := context.Background()

	p, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.SetActive(ctx, p.ID, false))
	assert.False(t, repo.policies[0].Active)

	err = svc.SetActive(ctx, 999, true)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", err.(*domain.AppError).Code)

	require.NoError(t, svc.Delete(ctx, p.ID))
	assert.Empty(t, repo.policies)

	err = svc.Delete(ctx, p.ID)
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND", err.(*domain.AppError).Code)
}

func TestListSummaries(t *testing.T) {
	repo := &fakePolicyRepo{}
	svc := NewPolicyAdminService(nil, repo)
	ctx := context.Background()

	input := validInput()
	input.GroupsExcluded = "contractors"
	_, err := svc.Create(ctx, input)
	require.NoError(t, err)

	summaries, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "maintenance window", summaries[0].Name)
	assert.Equal(t, 2, summaries[0].ScopeCount)
}

func TestPolicyDryRun(t *testing.T) {
	repo := &fakePolicyRepo{}
	svc := NewPolicyAdminService(nil, repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	// Inside the overnight window.
	res, err := svc.Test(ctx, TestPolicyInput{
		TenantID: "acme",
		UserID:   "u-1",
		Date:     "2026-03-01",
		Time:     "23:30",
		Zone:     "Europe/Berlin",
	})
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	require.NotNil(t, res.PolicyID)
	assert.Equal(t, int64(1), *res.PolicyID)

	// Outside the window: nothing matches, default allow.
	res, err = svc.Test(ctx, TestPolicyInput{
		TenantID: "acme",
		UserID:   "u-1",
		Date:     "2026-03-01",
		Time:     "12:00",
		Zone:     "Europe/Berlin",
	})
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Nil(t, res.PolicyID)
}

func TestPolicyDryRunValidation(t *testing.T) {
	svc := NewPolicyAdminService(nil, &fakePolicyRepo{})
	ctx := context.Background()

	for _, input := range []TestPolicyInput{
		{TenantID: "acme", Zone: "Nowhere/Void"},
		{TenantID: "acme", Date: "01.03.2026"},
		{TenantID: "acme", Time: "noon"},
	} {
		_, err := svc.Test(ctx, input)
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_ERROR", err.(*domain.AppError).Code)
	}
}

type fakeLimitRepo struct {
	rows map[string]domain.TenantSessionLimit
}

func (f *fakeLimitRepo) Get(ctx context.Context, db repository.DBTX, tenantID string) (*domain.TenantSessionLimit, error) {
	if l, ok := f.rows[tenantID]; ok {
		return &l, nil
	}
	return nil, nil
}

func (f *fakeLimitRepo) Upsert(ctx context.Context, db repository.DBTX, limit domain.TenantSessionLimit) error {
	if f.rows == nil {
		f.rows = make(map[string]domain.TenantSessionLimit)
	}
	f.rows[limit.TenantID] = limit
	return nil
}

func (f *fakeLimitRepo) FindAll(ctx context.Context, db repository.DBTX) ([]domain.TenantSessionLimit, error) {
	var out []domain.TenantSessionLimit
	for _, l := range f.rows {
		out = append(out, l)
	}
	return out, nil
}

func TestTenantLimitUpsert(t *testing.T) {
	repo := &fakeLimitRepo{}
	svc := NewTenantLimitService(nil, repo)
	ctx := context.Background()

	stored, err := svc.Upsert(ctx, domain.TenantSessionLimit{
		TenantID:           " acme ",
		MaxSessions:        -3,
		MaxIdleSeconds:     600,
		MaxDurationSeconds: -1,
	})
	require.NoError(t, err)
	assert.Equal(t, "acme", stored.TenantID)
	assert.Equal(t, 0, stored.MaxSessions)
	assert.Equal(t, 600, stored.MaxIdleSeconds)
	assert.Equal(t, 0, stored.MaxDurationSeconds)

	_, err = svc.Upsert(ctx, domain.TenantSessionLimit{TenantID: "  "})
	require.Error(t, err)
	assert.Equal(t, "VALIDATION_ERROR", err.(*domain.AppError).Code)

	limits, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, limits, 1)
}
