// Package pipeline wires identity binding, access evaluation, and token
// encoding into the single public IssueToken operation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/trelnex/accessd/internal/jwtprovider"
	"github.com/trelnex/accessd/internal/rbac"
	"github.com/trelnex/accessd/internal/telemetry"
)

// IdentityBinder maps a caller's deployment-specific identity to a
// principalId. For this service it is a pure function collaborator --
// no I/O, no context.
type IdentityBinder func(callerIdentity string) (principalID string, err error)

// AudienceMapper resolves a resourceName to the audience configured for its
// signing identity.
type AudienceMapper func(resourceName string) (audience string, err error)

// Pipeline implements IssueToken.
type Pipeline struct {
	bind      IdentityBinder
	evaluator *rbac.Evaluator
	provider  *jwtprovider.Provider
	audience  AudienceMapper
	metrics   *telemetry.TokenMetrics
}

// Option configures optional collaborators of a Pipeline, e.g. metrics.
// Zero value is a fully functional, metrics-free pipeline.
type Option func(*Pipeline)

// WithMetrics records every IssueToken call's audience, duration, and
// error status to m.
func WithMetrics(m *telemetry.TokenMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New builds a Pipeline from its three collaborators and an audience map.
func New(bind IdentityBinder, evaluator *rbac.Evaluator, provider *jwtprovider.Provider, audience AudienceMapper, opts ...Option) *Pipeline {
	p := &Pipeline{bind: bind, evaluator: evaluator, provider: provider, audience: audience}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IssueToken binds the caller identity, evaluates access, and encodes a
// token regardless of whether access turned out empty -- an empty-claims
// token is observable evidence of authentication without authorization,
// not an error.
func (p *Pipeline) IssueToken(ctx context.Context, callerIdentity, resourceName, scopeName string) (token *jwtprovider.AccessToken, err error) {
	start := time.Now()
	audience := resourceName
	defer func() {
		p.metrics.RecordIssuance(ctx, audience, float64(time.Since(start).Microseconds())/1000, err)
	}()

	principalID, err := p.bind(callerIdentity)
	if err != nil {
		return nil, fmt.Errorf("pipeline: bind caller identity: %w", err)
	}

	access, err := p.evaluator.GetPrincipalAccess(ctx, principalID, resourceName, scopeName)
	if err != nil {
		return nil, err
	}

	audience, err = p.audience(resourceName)
	if err != nil {
		return nil, fmt.Errorf("pipeline: resolve audience: %w", err)
	}

	token, err = p.provider.Encode(principalID, audience, access.Scopes, access.Roles)
	return token, err
}
