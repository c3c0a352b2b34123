package admin

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trelnex/accessd/internal/kv/memstore"
	"github.com/trelnex/accessd/internal/rbac"
)

func newTestAdmin(t *testing.T) (*Admin, *rbac.Evaluator) {
	t.Helper()
	repo := rbac.NewRepository(memstore.New())
	evaluator := rbac.NewEvaluator(repo, 64, 0)
	return New(repo, evaluator), evaluator
}

func TestAdmin_AssignScopeInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	a, evaluator := newTestAdmin(t)

	require.NoError(t, a.CreateResource(ctx, "urn://r1"))
	require.NoError(t, a.CreateScope(ctx, "urn://r1", "s1"))

	access, err := evaluator.GetPrincipalAccess(ctx, "p1", "urn://r1", "")
	require.NoError(t, err)
	assert.Empty(t, access.Scopes)

	require.NoError(t, a.AssignScope(ctx, "urn://r1", "s1", "p1"))

	access, err = evaluator.GetPrincipalAccess(ctx, "p1", "urn://r1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, access.Scopes)
}

func TestAdmin_RevokeScopeInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	a, evaluator := newTestAdmin(t)

	require.NoError(t, a.CreateResource(ctx, "urn://r1"))
	require.NoError(t, a.CreateScope(ctx, "urn://r1", "s1"))
	require.NoError(t, a.AssignScope(ctx, "urn://r1", "s1", "p1"))

	access, err := evaluator.GetPrincipalAccess(ctx, "p1", "urn://r1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, access.Scopes)

	require.NoError(t, a.RevokeScope(ctx, "urn://r1", "s1", "p1"))

	access, err = evaluator.GetPrincipalAccess(ctx, "p1", "urn://r1", "")
	require.NoError(t, err)
	assert.Empty(t, access.Scopes)
}

func TestAdmin_DeletePrincipalSweepsAllResources(t *testing.T) {
	ctx := context.Background()
	a, evaluator := newTestAdmin(t)

	require.NoError(t, a.CreateResource(ctx, "urn://r1"))
	require.NoError(t, a.CreateScope(ctx, "urn://r1", "s1"))
	require.NoError(t, a.AssignScope(ctx, "urn://r1", "s1", "p1"))

	require.NoError(t, a.CreateResource(ctx, "urn://r2"))
	require.NoError(t, a.CreateScope(ctx, "urn://r2", "s2"))
	require.NoError(t, a.AssignScope(ctx, "urn://r2", "s2", "p1"))

	_, err := evaluator.GetPrincipalAccess(ctx, "p1", "urn://r1", "")
	require.NoError(t, err)
	_, err = evaluator.GetPrincipalAccess(ctx, "p1", "urn://r2", "")
	require.NoError(t, err)

	require.NoError(t, a.DeletePrincipal(ctx, "p1"))

	access, err := evaluator.GetPrincipalAccess(ctx, "p1", "urn://r1", "")
	require.NoError(t, err)
	assert.Empty(t, access.Scopes)

	access, err = evaluator.GetPrincipalAccess(ctx, "p1", "urn://r2", "")
	require.NoError(t, err)
	assert.Empty(t, access.Scopes)
}

func TestAdmin_DeleteResourceInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	a, evaluator := newTestAdmin(t)

	require.NoError(t, a.CreateResource(ctx, "urn://r1"))
	require.NoError(t, a.CreateScope(ctx, "urn://r1", "s1"))
	require.NoError(t, a.AssignScope(ctx, "urn://r1", "s1", "p1"))

	_, err := evaluator.GetPrincipalAccess(ctx, "p1", "urn://r1", "")
	require.NoError(t, err)

	require.NoError(t, a.DeleteResource(ctx, "urn://r1"))

	_, err = evaluator.GetPrincipalAccess(ctx, "p1", "urn://r1", "")
	assert.Error(t, err)
}
