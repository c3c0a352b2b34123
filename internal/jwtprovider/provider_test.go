package jwtprovider

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity(t *testing.T) *SigningIdentity {
	t.Helper()
	id, err := LoadIdentity(IdentitySource{
		Audience:    "aud://r1",
		Issuer:      "https://issuer.example.com",
		KeyID:       "kid-1",
		Algorithm:   "HS256",
		KeyMaterial: "test-passphrase",
	})
	require.NoError(t, err)
	return id
}

func testECIdentity(t *testing.T) *SigningIdentity {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	id, err := LoadIdentity(IdentitySource{
		Audience:    "aud://r2",
		Issuer:      "https://issuer.example.com",
		KeyID:       "kid-2",
		Algorithm:   "ES256",
		KeyMaterial: string(pemBytes),
	})
	require.NoError(t, err)
	return id
}

// Scenario 6: token round-trip.
func TestEncode_RoundTrip(t *testing.T) {
	identity := testIdentity(t)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	provider, err := NewProvider([]*SigningIdentity{identity}, FixedClock{At: now})
	require.NoError(t, err)

	token, err := provider.Encode("p1", "aud://r1", []string{"s1"}, []string{"role1"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(60*time.Minute), token.ExpiresAt)

	claims, err := provider.Verify(token.Token)
	require.NoError(t, err)
	assert.Equal(t, "p1", claims["sub"])
	assert.Equal(t, "aud://r1", claims["aud"])
	assert.Equal(t, "s1", claims["scp"])
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	identity := testIdentity(t)
	provider, err := NewProvider([]*SigningIdentity{identity}, FixedClock{At: time.Now()})
	require.NoError(t, err)

	token, err := provider.Encode("p1", "aud://r1", nil, nil)
	require.NoError(t, err)

	parts := strings.Split(token.Token, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	mid := len(payload) / 2
	if payload[mid] == 'A' {
		payload[mid] = 'B'
	} else {
		payload[mid] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]
	_, err = provider.Verify(tampered)
	assert.Error(t, err)
}

func TestEncode_UnknownAudience(t *testing.T) {
	identity := testIdentity(t)
	provider, err := NewProvider([]*SigningIdentity{identity}, RealClock{})
	require.NoError(t, err)

	_, err = provider.Encode("p1", "aud://unknown", nil, nil)
	assert.Error(t, err)
}

func TestJWKS_OmitsSymmetricIdentities(t *testing.T) {
	hmacID := testIdentity(t)
	ecID := testECIdentity(t)
	provider, err := NewProvider([]*SigningIdentity{hmacID, ecID}, RealClock{})
	require.NoError(t, err)

	jwks := provider.JWKS()
	require.Len(t, jwks.Keys, 1)
	assert.Equal(t, "kid-2", jwks.Keys[0].KeyID)
}

func TestRotate_KeepsOldIdentityVerifiable(t *testing.T) {
	first := testIdentity(t)
	provider, err := NewProvider([]*SigningIdentity{first}, RealClock{})
	require.NoError(t, err)

	token, err := provider.Encode("p1", "aud://r1", nil, nil)
	require.NoError(t, err)

	second := testECIdentity(t)
	require.NoError(t, provider.Rotate([]*SigningIdentity{second}))

	_, err = provider.Verify(token.Token)
	require.NoError(t, err)
}
