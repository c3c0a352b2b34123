package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trelnex/accessd/internal/apierr"
)

func TestResourceName(t *testing.T) {
	normalized, err := ResourceName("urn://r1")
	require.NoError(t, err)
	assert.Equal(t, "urn://r1", normalized)

	normalized, err = ResourceName("https://example.com/resources/1/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/resources/1", normalized)

	_, err = ResourceName("")
	assert.True(t, apierr.Is(err, apierr.KindInvalidName))

	_, err = ResourceName("not-a-uri")
	assert.True(t, apierr.Is(err, apierr.KindInvalidName))

	_, err = ResourceName("urn://" + strings.Repeat("a", 512))
	assert.True(t, apierr.Is(err, apierr.KindInvalidName))
}

func TestScopeName(t *testing.T) {
	require.NoError(t, ScopeName("s1"))
	require.NoError(t, ScopeName("billing.read"))

	assert.True(t, apierr.Is(ScopeName(""), apierr.KindInvalidName))
	assert.True(t, apierr.Is(ScopeName(".default"), apierr.KindInvalidName))
	assert.True(t, apierr.Is(ScopeName("-leading-dash"), apierr.KindInvalidName))
	assert.True(t, apierr.Is(ScopeName(strings.Repeat("a", 129)), apierr.KindInvalidName))
}

func TestQueryScopeName(t *testing.T) {
	require.NoError(t, QueryScopeName(".default"))
	require.NoError(t, QueryScopeName("s1"))
	assert.True(t, apierr.Is(QueryScopeName(""), apierr.KindInvalidName))
}

func TestRoleName(t *testing.T) {
	require.NoError(t, RoleName("role1"))
	assert.True(t, apierr.Is(RoleName(""), apierr.KindInvalidName))
}

func TestPrincipalID(t *testing.T) {
	require.NoError(t, PrincipalID("p1"))
	assert.True(t, apierr.Is(PrincipalID(""), apierr.KindInvalidName))
	assert.True(t, apierr.Is(PrincipalID("has#hash"), apierr.KindInvalidName))
	assert.True(t, apierr.Is(PrincipalID(strings.Repeat("a", 257)), apierr.KindInvalidName))
}
