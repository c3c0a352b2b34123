// Package validate implements the pure, stateless name validators every
// RBAC repository operation runs at entry.
package validate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/trelnex/accessd/internal/apierr"
)

const (
	maxResourceNameLength = 512
	maxNameLength         = 128
	minNameLength         = 1
	maxPrincipalIDLength  = 256

	// DefaultScope is the reserved scope literal meaning "all scopes the
	// principal holds on this resource." It is a query-time sentinel only;
	// CreateScope/CreateRole reject it as a name.
	DefaultScope = ".default"
)

var nameRE = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.\-]*$`)

// ResourceName validates and normalizes a resource name: it must parse as
// an absolute URI with a non-empty authority or path, and its length
// (after stripping every trailing slash) must not exceed 512 bytes.
func ResourceName(raw string) (string, error) {
	if raw == "" {
		return "", apierr.Invalid("resourceName", "must not be empty")
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return "", apierr.Invalid("resourceName", "must be an absolute URI")
	}
	if u.Host == "" && u.Opaque == "" && u.Path == "" {
		return "", apierr.Invalid("resourceName", "must have a non-empty authority or path")
	}

	normalized := strings.TrimRight(raw, "/")
	if normalized == "" {
		return "", apierr.Invalid("resourceName", "must not be empty")
	}
	if len(normalized) > maxResourceNameLength {
		return "", apierr.Invalid("resourceName", "must not exceed 512 bytes")
	}
	return normalized, nil
}

// ScopeName validates a scope name. The reserved literal ".default" is
// rejected here: it is accepted only by the access-evaluation engine as a
// query-time sentinel, never as a name to create.
func ScopeName(raw string) error {
	if raw == DefaultScope {
		return apierr.Invalid("scopeName", `".default" is reserved and cannot be created`)
	}
	return simpleName("scopeName", raw)
}

// RoleName validates a role name with the same lexical rule as ScopeName.
func RoleName(raw string) error {
	return simpleName("roleName", raw)
}

// QueryScopeName validates a scope name used in a read-path query, where
// the reserved literal ".default" is permitted.
func QueryScopeName(raw string) error {
	if raw == DefaultScope {
		return nil
	}
	return simpleName("scopeName", raw)
}

func simpleName(field, raw string) error {
	if len(raw) < minNameLength || len(raw) > maxNameLength {
		return apierr.Invalid(field, "length must be between 1 and 128")
	}
	if !nameRE.MatchString(raw) {
		return apierr.Invalid(field, `must match [A-Za-z0-9][A-Za-z0-9.\-]*`)
	}
	return nil
}

// PrincipalID validates an opaque principal identifier: 1..256 bytes, all
// printable ASCII excluding '#' (reserved as the subjectName separator).
func PrincipalID(raw string) error {
	if len(raw) < 1 || len(raw) > maxPrincipalIDLength {
		return apierr.Invalid("principalId", "length must be between 1 and 256 bytes")
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '#' {
			return apierr.Invalid("principalId", "must not contain '#'")
		}
		if c < 0x20 || c > 0x7e {
			return apierr.Invalid("principalId", "must be printable ASCII")
		}
	}
	return nil
}
