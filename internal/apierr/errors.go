// Package apierr defines the error taxonomy shared by every layer of the
// RBAC repository and token-issuance pipeline.
package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way callers across the core are expected to
// handle it: retry, surface as not-found, surface as validation, etc.
type Kind string

const (
	KindInvalidName     Kind = "invalid_name"
	KindResourceNotFound Kind = "resource_not_found"
	KindScopeNotFound    Kind = "scope_not_found"
	KindRoleNotFound     Kind = "role_not_found"
	KindConflict         Kind = "conflict"
	KindThrottled        Kind = "throttled"
	KindTimeout          Kind = "timeout"
	KindCancelled        Kind = "cancelled"
	KindInternal         Kind = "internal"
)

// Error is the concrete type carrying a Kind plus enough context for a
// caller to report a useful message without needing a transport layer to
// translate sentinels into status codes.
type Error struct {
	Kind    Kind
	Field   string // populated for KindInvalidName
	Rule    string // the violated rule, for KindInvalidName
	Message string
	Err     error // wrapped collaborator error, if any
}

func (e *Error) Error() string {
	switch {
	case e.Field != "" && e.Rule != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Rule)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a plain error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Internal error wrapping a collaborator failure, unless err
// already carries a Kind, in which case it is returned unchanged.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}
	return &Error{Kind: KindInternal, Err: err}
}

// Invalid builds an InvalidName error naming the offending field and rule.
func Invalid(field, rule string) *Error {
	return &Error{Kind: KindInvalidName, Field: field, Rule: rule}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
