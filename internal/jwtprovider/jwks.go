package jwtprovider

import (
	"github.com/go-jose/go-jose/v4"
)

// JWKS returns the union of active verification keys in standard JWKS form.
// HMAC (symmetric) identities have no public key to publish and are
// omitted.
func (p *Provider) JWKS() jose.JSONWebKeySet {
	table := p.table.Load()

	var keys []jose.JSONWebKey
	for kid, id := range table.byKID {
		if id.publicKey == nil {
			continue
		}
		keys = append(keys, jose.JSONWebKey{
			Key:       id.publicKey,
			KeyID:     kid,
			Algorithm: id.Algorithm,
			Use:       "sig",
		})
	}
	return jose.JSONWebKeySet{Keys: keys}
}
