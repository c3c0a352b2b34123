package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trelnex/accessd/internal/apierr"
	"github.com/trelnex/accessd/internal/kv/memstore"
)

func newTestRepo() Repository {
	return NewRepository(memstore.New())
}

func TestCreateResource_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	require.NoError(t, repo.CreateResource(ctx, "urn://r1"))
	require.NoError(t, repo.CreateResource(ctx, "urn://r1"))

	r, err := repo.GetResource(ctx, "urn://r1")
	require.NoError(t, err)
	require.NotNil(t, r)
}

func TestCreateScope_RequiresResource(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	err := repo.CreateScope(ctx, "urn://missing", "s1")
	assert.True(t, apierr.Is(err, apierr.KindResourceNotFound))
}

func TestCreateScope_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	require.NoError(t, repo.CreateResource(ctx, "urn://r1"))

	require.NoError(t, repo.CreateScope(ctx, "urn://r1", "s1"))
	require.NoError(t, repo.CreateScope(ctx, "urn://r1", "s1"))

	s, err := repo.GetScope(ctx, "urn://r1", "s1")
	require.NoError(t, err)
	require.NotNil(t, s)
}

func TestCreateScopeAssignment_RequiresScope(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()
	require.NoError(t, repo.CreateResource(ctx, "urn://r1"))

	err := repo.CreateScopeAssignment(ctx, "urn://r1", "s1", "p1")
	assert.True(t, apierr.Is(err, apierr.KindScopeNotFound))
}

func TestDeleteResource_CascadeCompleteness(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo().(*store)

	require.NoError(t, repo.CreateResource(ctx, "urn://r1"))
	require.NoError(t, repo.CreateScope(ctx, "urn://r1", "s1"))
	require.NoError(t, repo.CreateRole(ctx, "urn://r1", "role1"))
	require.NoError(t, repo.CreateScopeAssignment(ctx, "urn://r1", "s1", "p1"))
	require.NoError(t, repo.CreateRoleAssignment(ctx, "urn://r1", "role1", "p1"))

	require.NoError(t, repo.DeleteResource(ctx, "urn://r1"))

	rows, err := repo.kv.QueryByEntity(ctx, "urn://r1", "")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeleteScope_CascadesAssignmentsOnly(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	require.NoError(t, repo.CreateResource(ctx, "urn://r1"))
	require.NoError(t, repo.CreateScope(ctx, "urn://r1", "s1"))
	require.NoError(t, repo.CreateScopeAssignment(ctx, "urn://r1", "s1", "p1"))

	require.NoError(t, repo.DeleteScope(ctx, "urn://r1", "s1"))

	s, err := repo.GetScope(ctx, "urn://r1", "s1")
	require.NoError(t, err)
	assert.Nil(t, s)

	principals, err := repo.GetPrincipalsForScope(ctx, "urn://r1", "s1")
	assert.True(t, apierr.Is(err, apierr.KindScopeNotFound))
	assert.Nil(t, principals)
}

func TestDeletePrincipal_SweepsAcrossResources(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	require.NoError(t, repo.CreateResource(ctx, "urn://r1"))
	require.NoError(t, repo.CreateScope(ctx, "urn://r1", "s1"))
	require.NoError(t, repo.CreateScopeAssignment(ctx, "urn://r1", "s1", "p1"))

	require.NoError(t, repo.CreateResource(ctx, "urn://r2"))
	require.NoError(t, repo.CreateRole(ctx, "urn://r2", "role1"))
	require.NoError(t, repo.CreateRoleAssignment(ctx, "urn://r2", "role1", "p1"))

	require.NoError(t, repo.DeletePrincipal(ctx, "p1"))

	ps, err := repo.GetPrincipalsForScope(ctx, "urn://r1", "s1")
	require.NoError(t, err)
	assert.Empty(t, ps)

	// The resource and scope/role rows themselves must survive; only
	// assignment rows are swept.
	s, err := repo.GetScope(ctx, "urn://r1", "s1")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestGetResources_SortedAscending(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	require.NoError(t, repo.CreateResource(ctx, "urn://zzz"))
	require.NoError(t, repo.CreateResource(ctx, "urn://aaa"))

	resources, err := repo.GetResources(ctx)
	require.NoError(t, err)
	require.Len(t, resources, 2)
	assert.Equal(t, "urn://aaa", resources[0].Name)
	assert.Equal(t, "urn://zzz", resources[1].Name)
}

func TestInvalidName_NeverNotFound(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo()

	err := repo.CreateResource(ctx, "")
	assert.True(t, apierr.Is(err, apierr.KindInvalidName))

	err = repo.CreateScope(ctx, "urn://r1", "")
	assert.True(t, apierr.Is(err, apierr.KindInvalidName))
}
