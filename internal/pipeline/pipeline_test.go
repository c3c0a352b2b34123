package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trelnex/accessd/internal/jwtprovider"
	"github.com/trelnex/accessd/internal/kv/memstore"
	"github.com/trelnex/accessd/internal/rbac"
)

func newTestPipeline(t *testing.T) (rbac.Repository, *Pipeline) {
	t.Helper()
	repo := rbac.NewRepository(memstore.New())
	evaluator := rbac.NewEvaluator(repo, 0, 0)

	identity, err := jwtprovider.LoadIdentity(jwtprovider.IdentitySource{
		Audience:    "aud://r1",
		Issuer:      "https://issuer.example.com",
		KeyID:       "kid-1",
		Algorithm:   "HS256",
		KeyMaterial: "test-passphrase",
	})
	require.NoError(t, err)
	provider, err := jwtprovider.NewProvider([]*jwtprovider.SigningIdentity{identity}, jwtprovider.RealClock{})
	require.NoError(t, err)

	bind := func(callerIdentity string) (string, error) { return callerIdentity, nil }
	audience := func(resourceName string) (string, error) {
		if resourceName == "urn://r1" {
			return "aud://r1", nil
		}
		return "", fmt.Errorf("no audience configured for %q", resourceName)
	}

	return repo, New(bind, evaluator, provider, audience)
}

// Scenario 6: happy-path setup, issue a token, verify its claims.
func TestIssueToken_HappyPath(t *testing.T) {
	ctx := context.Background()
	repo, p := newTestPipeline(t)

	require.NoError(t, repo.CreateResource(ctx, "urn://r1"))
	require.NoError(t, repo.CreateScope(ctx, "urn://r1", "s1"))
	require.NoError(t, repo.CreateRole(ctx, "urn://r1", "role1"))
	require.NoError(t, repo.CreateScopeAssignment(ctx, "urn://r1", "s1", "p1"))
	require.NoError(t, repo.CreateRoleAssignment(ctx, "urn://r1", "role1", "p1"))

	token, err := p.IssueToken(ctx, "p1", "urn://r1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)

	claims, err := p.provider.Verify(token.Token)
	require.NoError(t, err)
	assert.Equal(t, "p1", claims["sub"])
	assert.Equal(t, "aud://r1", claims["aud"])
	assert.Equal(t, "s1", claims["scp"])
}

// Empty access still mints a token.
func TestIssueToken_EmptyAccessStillIssues(t *testing.T) {
	ctx := context.Background()
	repo, p := newTestPipeline(t)

	require.NoError(t, repo.CreateResource(ctx, "urn://r1"))

	token, err := p.IssueToken(ctx, "p1", "urn://r1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
}

func TestIssueToken_UnknownResource(t *testing.T) {
	ctx := context.Background()
	_, p := newTestPipeline(t)

	_, err := p.IssueToken(ctx, "p1", "urn://missing", "")
	assert.Error(t, err)
}

func TestIssueToken_BindFailure(t *testing.T) {
	ctx := context.Background()
	repo := rbac.NewRepository(memstore.New())
	evaluator := rbac.NewEvaluator(repo, 0, 0)
	identity, err := jwtprovider.LoadIdentity(jwtprovider.IdentitySource{
		Audience: "aud://r1", Issuer: "https://issuer.example.com",
		KeyID: "kid-1", Algorithm: "HS256", KeyMaterial: "test-passphrase",
	})
	require.NoError(t, err)
	provider, err := jwtprovider.NewProvider([]*jwtprovider.SigningIdentity{identity}, jwtprovider.RealClock{})
	require.NoError(t, err)

	bind := func(callerIdentity string) (string, error) {
		return "", fmt.Errorf("caller identity rejected")
	}
	audience := func(resourceName string) (string, error) { return "aud://r1", nil }

	p := New(bind, evaluator, provider, audience)
	_, err = p.IssueToken(ctx, "bad-caller", "urn://r1", "")
	assert.Error(t, err)
}
