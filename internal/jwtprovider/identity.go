package jwtprovider

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"

	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/hkdf"
)

// SigningIdentity is a signing key, its kid, and the issuer/audience/
// expiration it is configured for.
type SigningIdentity struct {
	Algorithm         string
	KeyID             string
	Issuer            string
	Audience          string
	ExpirationMinutes int

	signingKey crypto.PrivateKey // *rsa.PrivateKey, *ecdsa.PrivateKey, or hmacKey
	publicKey  crypto.PublicKey  // nil for HMAC identities
}

// hmacKey is a named []byte so it can be type-switched apart from any other
// []byte-shaped value.
type hmacKey []byte

// IdentitySource is the subset of config.IdentityConfig jwtprovider needs,
// named separately to keep this package independent of internal/config.
type IdentitySource struct {
	Audience    string
	Issuer      string
	KeyID       string
	Algorithm   string
	KeyMaterial string
}

// LoadIdentity parses an IdentitySource into a SigningIdentity. For
// RS256/ES256, KeyMaterial is a PEM-encoded PKCS#8 private key. For HS256,
// KeyMaterial is a passphrase and the actual signing key is derived via
// HKDF (RFC 5869) so operators can configure a short secret rather than a
// raw key of the algorithm's exact bit length.
func LoadIdentity(src IdentitySource) (*SigningIdentity, error) {
	id := &SigningIdentity{
		Algorithm:         src.Algorithm,
		KeyID:             src.KeyID,
		Issuer:            src.Issuer,
		Audience:          src.Audience,
		ExpirationMinutes: 60,
	}

	switch src.Algorithm {
	case "HS256":
		key, err := deriveHMACKey(src.KeyMaterial, src.KeyID)
		if err != nil {
			return nil, err
		}
		id.signingKey = key
	case "RS256":
		key, err := parsePKCS8[*rsa.PrivateKey](src.KeyMaterial)
		if err != nil {
			return nil, err
		}
		id.signingKey = key
		id.publicKey = &key.PublicKey
	case "ES256":
		key, err := parsePKCS8[*ecdsa.PrivateKey](src.KeyMaterial)
		if err != nil {
			return nil, err
		}
		id.signingKey = key
		id.publicKey = &key.PublicKey
	default:
		return nil, fmt.Errorf("jwtprovider: unsupported algorithm %q", src.Algorithm)
	}

	return id, nil
}

func deriveHMACKey(passphrase, salt string) (hmacKey, error) {
	reader := hkdf.New(sha256.New, []byte(passphrase), []byte(salt), []byte("accessd-jwt-signing"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("jwtprovider: derive HMAC key: %w", err)
	}
	return hmacKey(key), nil
}

func parsePKCS8[T any](pemData string) (T, error) {
	var zero T
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return zero, fmt.Errorf("jwtprovider: invalid PEM key material")
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return zero, fmt.Errorf("jwtprovider: parse private key: %w", err)
	}
	typed, ok := key.(T)
	if !ok {
		return zero, fmt.Errorf("jwtprovider: private key is not of the expected type")
	}
	return typed, nil
}

// Fingerprint returns a base58-encoded SHA-256 digest of the identity's
// public verification material, safe to log: it identifies which identity
// loaded without exposing key material. HMAC identities fingerprint their
// kid instead, since they have no public component.
func (id *SigningIdentity) Fingerprint() string {
	var digestInput []byte
	switch k := id.signingKey.(type) {
	case hmacKey:
		digestInput = []byte(id.KeyID)
		_ = k
	default:
		der, err := x509.MarshalPKIXPublicKey(id.publicKey)
		if err != nil {
			digestInput = []byte(id.KeyID)
		} else {
			digestInput = der
		}
	}
	sum := sha256.Sum256(digestInput)
	return base58.Encode(sum[:])
}
