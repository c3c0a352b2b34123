package rbac

import (
	"context"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/trelnex/accessd/internal/apierr"
	"github.com/trelnex/accessd/internal/telemetry"
	"github.com/trelnex/accessd/internal/validate"
)

// Evaluator implements the access-evaluation algorithm: given
// (principalId, resourceName, scopeName?), compute the effective
// PrincipalAccess. It is deliberately kept separate from Repository so it
// can be tested with a fake Repository and so its cache does not leak
// into the write path.
type Evaluator struct {
	repo    Repository
	cache   *lru.Cache[cacheKey, cacheEntry]
	ttl     time.Duration
	now     func() time.Time
	metrics *telemetry.EvaluatorMetrics
}

// cacheEntry pairs a cached PrincipalAccess with its expiry so the only
// shared mutable state a concurrent GetPrincipalAccess touches is the
// already-synchronized lru.Cache itself.
type cacheEntry struct {
	access    PrincipalAccess
	expiresAt time.Time
}

// EvalOption configures optional collaborators of an Evaluator, e.g.
// metrics. Zero value is a fully functional, metrics-free evaluator.
type EvalOption func(*Evaluator)

// WithEvaluatorMetrics records cache hits/misses and cache-miss evaluation
// duration to m.
func WithEvaluatorMetrics(m *telemetry.EvaluatorMetrics) EvalOption {
	return func(e *Evaluator) { e.metrics = m }
}

type cacheKey struct {
	resourceName string
	principalID  string
	scopeName    string
}

// NewEvaluator returns an Evaluator backed by repo. cacheSize <= 0 disables
// caching; ttl <= 0 means entries never expire on their own (they are still
// invalidated synchronously by Invalidate).
func NewEvaluator(repo Repository, cacheSize int, ttl time.Duration, opts ...EvalOption) *Evaluator {
	e := &Evaluator{repo: repo, ttl: ttl, now: time.Now}
	if cacheSize > 0 {
		c, err := lru.New[cacheKey, cacheEntry](cacheSize)
		if err == nil {
			e.cache = c
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Invalidate drops any cached PrincipalAccess for (resourceName,
// principalID), across every scopeName variant. The administrative surface
// (internal/admin) calls this synchronously, in the same goroutine,
// immediately after the mutating repository call returns; the repository
// itself never touches the cache.
func (e *Evaluator) Invalidate(resourceName, principalID string) {
	if e.cache == nil {
		return
	}
	for _, k := range e.cache.Keys() {
		if k.resourceName == resourceName && k.principalID == principalID {
			e.cache.Remove(k)
		}
	}
}

// InvalidateResource drops every cached PrincipalAccess for resourceName,
// across every principal and scopeName variant. Used when a resource (and
// everything under it) is deleted and the set of principals affected is
// not known in advance.
func (e *Evaluator) InvalidateResource(resourceName string) {
	if e.cache == nil {
		return
	}
	for _, k := range e.cache.Keys() {
		if k.resourceName == resourceName {
			e.cache.Remove(k)
		}
	}
}

// GetPrincipalAccess computes the effective PrincipalAccess for
// (principalID, resourceName, scopeName).
func (e *Evaluator) GetPrincipalAccess(ctx context.Context, principalID, resourceName, scopeName string) (*PrincipalAccess, error) {
	if err := validate.PrincipalID(principalID); err != nil {
		return nil, err
	}
	resourceName, err := validate.ResourceName(resourceName)
	if err != nil {
		return nil, err
	}
	if scopeName != "" {
		if err := validate.QueryScopeName(scopeName); err != nil {
			return nil, err
		}
	}

	key := cacheKey{resourceName: resourceName, principalID: principalID, scopeName: scopeName}
	if e.cache != nil {
		if entry, ok := e.cache.Get(key); ok {
			if e.ttl <= 0 || e.now().Before(entry.expiresAt) {
				e.metrics.RecordCacheHit(ctx, resourceName)
				result := entry.access
				return &result, nil
			}
			e.cache.Remove(key)
		}
	}

	evalStart := time.Now()
	defer func() {
		e.metrics.RecordCacheMiss(ctx, resourceName, float64(time.Since(evalStart).Microseconds())/1000)
	}()

	resource, err := e.repo.GetResource(ctx, resourceName)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, apierr.New(apierr.KindResourceNotFound, resourceName)
	}

	if scopeName != "" && scopeName != validate.DefaultScope {
		scope, err := e.repo.GetScope(ctx, resourceName, scopeName)
		if err != nil {
			return nil, err
		}
		if scope == nil {
			return nil, apierr.New(apierr.KindScopeNotFound, scopeName)
		}
	}

	var scopeRows, roleRows []Row
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		scopeRows, err = e.repo.queryScopeAssignments(gctx, resourceName)
		return err
	})
	g.Go(func() (err error) {
		roleRows, err = e.repo.queryRoleAssignments(gctx, resourceName)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	assignedScopes := map[string]struct{}{}
	for _, row := range scopeRows {
		if row.PrincipalID == principalID {
			assignedScopes[row.Name] = struct{}{}
		}
	}
	assignedRoles := map[string]struct{}{}
	for _, row := range roleRows {
		if row.PrincipalID == principalID {
			assignedRoles[row.Name] = struct{}{}
		}
	}

	var scopes []string
	switch {
	case scopeName == "" || scopeName == validate.DefaultScope:
		for s := range assignedScopes {
			scopes = append(scopes, s)
		}
	default:
		if _, ok := assignedScopes[scopeName]; ok {
			scopes = []string{scopeName}
		}
	}
	sort.Strings(scopes)

	var roles []string
	if len(scopes) > 0 {
		for r := range assignedRoles {
			roles = append(roles, r)
		}
	}
	sort.Strings(roles)

	result := PrincipalAccess{ResourceName: resourceName, Scopes: scopes, Roles: roles}

	if e.cache != nil {
		entry := cacheEntry{access: result}
		if e.ttl > 0 {
			entry.expiresAt = e.now().Add(e.ttl)
		}
		e.cache.Add(key, entry)
	}

	cp := result
	return &cp, nil
}
