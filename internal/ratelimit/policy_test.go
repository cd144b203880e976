package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apigate/internal/models"
)

func TestNewPolicy_DefaultTables(t *testing.T) {
	policy, err := NewPolicy(models.DefaultPolicyTables(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, policy.Window())
}

func TestNewPolicy_EmptyTables(t *testing.T) {
	_, err := NewPolicy(models.PolicyTables{}, time.Minute)
	assert.Error(t, err)
}

func TestNewPolicy_InvalidWindow(t *testing.T) {
	_, err := NewPolicy(models.DefaultPolicyTables(), 0)
	assert.Error(t, err)
}

func TestPolicy_LimitFor(t *testing.T) {
	policy, err := NewPolicy(models.DefaultPolicyTables(), time.Minute)
	require.NoError(t, err)

	limit, err := policy.LimitFor(TierPublic, "auth", RoleStandard, "POST")
	require.NoError(t, err)
	assert.Equal(t, 5, limit)

	limit, err = policy.LimitFor(TierAuthenticated, "search", RolePremium, "GET")
	require.NoError(t, err)
	assert.Equal(t, 90, limit)

	limit, err = policy.LimitFor(TierAdmin, "users", RoleAdmin, "DELETE")
	require.NoError(t, err)
	assert.Equal(t, 30, limit)
}

func TestPolicy_LimitFor_NormalizesMethodCase(t *testing.T) {
	policy, err := NewPolicy(models.DefaultPolicyTables(), time.Minute)
	require.NoError(t, err)

	limit, err := policy.LimitFor(TierPublic, "general", RoleStandard, "get")
	require.NoError(t, err)
	assert.Equal(t, 60, limit)
}

func TestPolicy_LimitFor_PublicIgnoresRole(t *testing.T) {
	policy, err := NewPolicy(models.DefaultPolicyTables(), time.Minute)
	require.NoError(t, err)

	// A premium or admin principal hitting a public route still resolves the
	// public quota: the public table has no role axis.
	standard, err := policy.LimitFor(TierPublic, "auth", RoleStandard, "POST")
	require.NoError(t, err)
	premium, err := policy.LimitFor(TierPublic, "auth", RolePremium, "POST")
	require.NoError(t, err)
	admin, err := policy.LimitFor(TierPublic, "auth", RoleAdmin, "POST")
	require.NoError(t, err)

	assert.Equal(t, standard, premium)
	assert.Equal(t, standard, admin)
}

func TestPolicy_LimitFor_AdminTierNormalizesRole(t *testing.T) {
	policy, err := NewPolicy(models.DefaultPolicyTables(), time.Minute)
	require.NoError(t, err)

	limit, err := policy.LimitFor(TierAdmin, "settings", RoleStandard, "GET")
	require.NoError(t, err)
	assert.Equal(t, 60, limit)
}

func TestPolicy_LimitFor_Missing(t *testing.T) {
	policy, err := NewPolicy(models.DefaultPolicyTables(), time.Minute)
	require.NoError(t, err)

	_, err = policy.LimitFor(TierPublic, "nonexistent", RoleStandard, "GET")
	assert.True(t, errors.Is(err, ErrNoPolicy))

	_, err = policy.LimitFor(TierAuthenticated, "search", RoleStandard, "DELETE")
	assert.True(t, errors.Is(err, ErrNoPolicy))
}

func TestPolicy_Validate_CompleteTables(t *testing.T) {
	policy, err := NewPolicy(models.DefaultPolicyTables(), time.Minute)
	require.NoError(t, err)

	routes := []RouteScope{
		{Tier: TierPublic, Category: "auth", Methods: []string{"POST"}},
		{Tier: TierAuthenticated, Category: "general", Methods: []string{"GET", "PUT"}},
		{Tier: TierAdmin, Category: "reports", Methods: []string{"GET", "POST"}},
	}
	assert.NoError(t, policy.Validate(routes))
}

func TestPolicy_Validate_MissingCategory(t *testing.T) {
	policy, err := NewPolicy(models.DefaultPolicyTables(), time.Minute)
	require.NoError(t, err)

	routes := []RouteScope{
		{Tier: TierPublic, Category: "webhooks", Methods: []string{"POST"}},
	}
	err = policy.Validate(routes)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPolicy))
}

func TestPolicy_Validate_MissingRoleEntry(t *testing.T) {
	// Authenticated routes must resolve for every role; dropping premium from
	// one category must fail validation even though standard and admin exist.
	tables := models.DefaultPolicyTables()
	delete(tables.Authenticated["search"], "premium")

	policy, err := NewPolicy(tables, time.Minute)
	require.NoError(t, err)

	routes := []RouteScope{
		{Tier: TierAuthenticated, Category: "search", Methods: []string{"GET"}},
	}
	err = policy.Validate(routes)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoPolicy))
}

func TestPolicy_Validate_MissingMethod(t *testing.T) {
	tables := models.DefaultPolicyTables()

	policy, err := NewPolicy(tables, time.Minute)
	require.NoError(t, err)

	routes := []RouteScope{
		{Tier: TierAdmin, Category: "logs", Methods: []string{"GET", "DELETE"}},
	}
	assert.Error(t, policy.Validate(routes))
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RoleStandard, ParseRole("standard"))
	assert.Equal(t, RolePremium, ParseRole("premium"))
	assert.Equal(t, RoleAdmin, ParseRole("admin"))
	assert.Equal(t, RoleAdmin, ParseRole("  ADMIN  "))

	// Unknown or empty roles must never widen a quota.
	assert.Equal(t, RoleStandard, ParseRole(""))
	assert.Equal(t, RoleStandard, ParseRole("superuser"))
	assert.Equal(t, RoleStandard, ParseRole("Premium Plus"))
}
