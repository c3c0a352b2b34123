// Package jwtprovider owns signing identities, encodes access tokens, and
// publishes verification material.
package jwtprovider

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/trelnex/accessd/internal/apierr"
)

// identityTable is the process-local, read-mostly mapping the provider
// keeps behind an atomic.Value -- rebuilt only on explicit rotation via a
// copy-on-write swap.
type identityTable struct {
	byAudience map[string]*SigningIdentity
	byKID      map[string]*SigningIdentity
}

// Provider signs and verifies access tokens.
type Provider struct {
	table atomic.Pointer[identityTable]
	clock Clock
}

// NewProvider builds a Provider from a fixed set of signing identities.
// A missing audience->issuer->kid mapping is a construction-time error,
// never discovered mid-request.
func NewProvider(identities []*SigningIdentity, clock Clock) (*Provider, error) {
	if len(identities) == 0 {
		return nil, fmt.Errorf("jwtprovider: at least one signing identity is required")
	}
	if clock == nil {
		clock = RealClock{}
	}

	table := &identityTable{
		byAudience: make(map[string]*SigningIdentity, len(identities)),
		byKID:      make(map[string]*SigningIdentity, len(identities)),
	}
	for _, id := range identities {
		if id.Audience == "" || id.Issuer == "" || id.KeyID == "" {
			return nil, fmt.Errorf("jwtprovider: identity missing audience/issuer/kid")
		}
		if _, exists := table.byAudience[id.Audience]; exists {
			return nil, fmt.Errorf("jwtprovider: duplicate audience %q", id.Audience)
		}
		if _, exists := table.byKID[id.KeyID]; exists {
			return nil, fmt.Errorf("jwtprovider: duplicate kid %q", id.KeyID)
		}
		table.byAudience[id.Audience] = id
		table.byKID[id.KeyID] = id
	}

	p := &Provider{clock: clock}
	p.table.Store(table)
	return p, nil
}

// Rotate adds or replaces identities via a whole-map copy-on-write swap;
// existing identities not named in additions remain verifiable.
func (p *Provider) Rotate(additions []*SigningIdentity) error {
	old := p.table.Load()
	next := &identityTable{
		byAudience: make(map[string]*SigningIdentity, len(old.byAudience)+len(additions)),
		byKID:      make(map[string]*SigningIdentity, len(old.byKID)+len(additions)),
	}
	for k, v := range old.byAudience {
		next.byAudience[k] = v
	}
	for k, v := range old.byKID {
		next.byKID[k] = v
	}
	for _, id := range additions {
		if id.Audience == "" || id.Issuer == "" || id.KeyID == "" {
			return fmt.Errorf("jwtprovider: identity missing audience/issuer/kid")
		}
		next.byAudience[id.Audience] = id
		next.byKID[id.KeyID] = id
	}
	p.table.Store(next)
	return nil
}

// AccessToken is the result of Encode.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
}

// Encode assembles and signs a JWT for principalID, scoped to audience,
// carrying scopes/roles as claims. The header (the token's Header map) and
// the payload (jwt.MapClaims) are plain maps rather than typed structs, so
// encoding/json's map-key sorting gives deterministic, sorted-key output for
// free.
func (p *Provider) Encode(principalID, audience string, scopes, roles []string) (*AccessToken, error) {
	table := p.table.Load()
	identity, ok := table.byAudience[audience]
	if !ok {
		return nil, apierr.New(apierr.KindInternal, fmt.Sprintf("no signing identity configured for audience %q", audience))
	}

	now := p.clock.Now().UTC()
	exp := now.Add(time.Duration(identity.ExpirationMinutes) * time.Minute)

	jti, err := newJTI()
	if err != nil {
		return nil, apierr.Wrap(err)
	}

	claims := jwt.MapClaims{
		"iss":   identity.Issuer,
		"sub":   principalID,
		"aud":   audience,
		"iat":   now.Unix(),
		"nbf":   now.Unix(),
		"exp":   exp.Unix(),
		"jti":   jti,
		"scp":   strings.Join(scopes, " "),
		"roles": roles,
	}

	method, err := signingMethod(identity.Algorithm)
	if err != nil {
		return nil, apierr.Wrap(err)
	}

	token := jwt.NewWithClaims(method, claims)
	token.Header["kid"] = identity.KeyID

	signed, err := token.SignedString(identity.signingKey)
	if err != nil {
		return nil, apierr.Wrap(fmt.Errorf("jwtprovider: sign token: %w", err))
	}

	return &AccessToken{Token: signed, ExpiresAt: exp}, nil
}

// Verify parses and validates tokenString against the identity named by its
// kid header. Time claims are checked against the provider's Clock.
func (p *Provider) Verify(tokenString string) (jwt.MapClaims, error) {
	table := p.table.Load()

	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		identity, ok := table.byKID[kid]
		if !ok {
			return nil, fmt.Errorf("jwtprovider: unknown kid %q", kid)
		}
		if verifyKey(identity) == nil {
			return nil, fmt.Errorf("jwtprovider: identity %q has no verification key", kid)
		}
		return verifyKey(identity), nil
	}, jwt.WithTimeFunc(p.clock.Now))
	if err != nil {
		return nil, apierr.Wrap(fmt.Errorf("jwtprovider: verify token: %w", err))
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, apierr.New(apierr.KindInternal, "invalid token claims")
	}
	return claims, nil
}

// VerificationMaterial is the read-only view of a kid's public
// verification information.
type VerificationMaterial struct {
	KeyID     string
	Algorithm string
	Issuer    string
	Audience  string
	PublicKey interface{} // nil for symmetric (HMAC) identities
}

// VerificationMaterialByKID exposes the provider's read-only kid index.
func (p *Provider) VerificationMaterialByKID() map[string]VerificationMaterial {
	table := p.table.Load()
	out := make(map[string]VerificationMaterial, len(table.byKID))
	for kid, id := range table.byKID {
		out[kid] = VerificationMaterial{
			KeyID:     id.KeyID,
			Algorithm: id.Algorithm,
			Issuer:    id.Issuer,
			Audience:  id.Audience,
			PublicKey: id.publicKey,
		}
	}
	return out
}

func verifyKey(id *SigningIdentity) interface{} {
	if id.publicKey != nil {
		return id.publicKey
	}
	if key, ok := id.signingKey.(hmacKey); ok {
		return []byte(key)
	}
	return nil
}

func signingMethod(algorithm string) (jwt.SigningMethod, error) {
	switch algorithm {
	case "HS256":
		return jwt.SigningMethodHS256, nil
	case "RS256":
		return jwt.SigningMethodRS256, nil
	case "ES256":
		return jwt.SigningMethodES256, nil
	default:
		return nil, fmt.Errorf("jwtprovider: unsupported algorithm %q", algorithm)
	}
}

// newJTI generates a 128-bit random jti.
func newJTI() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("jwtprovider: generate jti: %w", err)
	}
	return id.String(), nil
}
