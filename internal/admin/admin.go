// Package admin is the administrative surface over the RBAC repository:
// resource/scope/role CRUD and assignment management. It is the
// collaborator the CLI (cmd/accessd) and any future control-plane API
// call into; the request-path pipeline never imports it.
package admin

import (
	"context"

	"github.com/trelnex/accessd/internal/rbac"
)

// Admin wraps an rbac.Repository and keeps the access-evaluation cache
// consistent with every mutation it performs: invalidate synchronously,
// in the same goroutine, immediately after the write returns.
type Admin struct {
	repo      rbac.Repository
	evaluator *rbac.Evaluator
}

// New builds an Admin over repo, invalidating evaluator's cache after
// every assignment mutation.
func New(repo rbac.Repository, evaluator *rbac.Evaluator) *Admin {
	return &Admin{repo: repo, evaluator: evaluator}
}

func (a *Admin) CreateResource(ctx context.Context, resourceName string) error {
	return a.repo.CreateResource(ctx, resourceName)
}

// DeleteResource cascades to every scope, role, and assignment under
// resourceName and invalidates every cached entry for the resource,
// since DeletePrincipal-style targeted invalidation isn't possible when
// the principal set affected is unknown in advance.
func (a *Admin) DeleteResource(ctx context.Context, resourceName string) error {
	if err := a.repo.DeleteResource(ctx, resourceName); err != nil {
		return err
	}
	a.evaluator.InvalidateResource(resourceName)
	return nil
}

func (a *Admin) CreateScope(ctx context.Context, resourceName, scopeName string) error {
	return a.repo.CreateScope(ctx, resourceName, scopeName)
}

func (a *Admin) DeleteScope(ctx context.Context, resourceName, scopeName string) error {
	return a.repo.DeleteScope(ctx, resourceName, scopeName)
}

func (a *Admin) CreateRole(ctx context.Context, resourceName, roleName string) error {
	return a.repo.CreateRole(ctx, resourceName, roleName)
}

// DeleteRole cascades to every assignment of roleName and invalidates
// every cached entry for the resource.
func (a *Admin) DeleteRole(ctx context.Context, resourceName, roleName string) error {
	if err := a.repo.DeleteRole(ctx, resourceName, roleName); err != nil {
		return err
	}
	a.evaluator.InvalidateResource(resourceName)
	return nil
}

// AssignScope grants scopeName on resourceName to principalID, then
// invalidates the evaluator's cache for that (resource, principal) pair.
func (a *Admin) AssignScope(ctx context.Context, resourceName, scopeName, principalID string) error {
	if err := a.repo.CreateScopeAssignment(ctx, resourceName, scopeName, principalID); err != nil {
		return err
	}
	a.evaluator.Invalidate(resourceName, principalID)
	return nil
}

func (a *Admin) RevokeScope(ctx context.Context, resourceName, scopeName, principalID string) error {
	if err := a.repo.DeleteScopeAssignment(ctx, resourceName, scopeName, principalID); err != nil {
		return err
	}
	a.evaluator.Invalidate(resourceName, principalID)
	return nil
}

func (a *Admin) AssignRole(ctx context.Context, resourceName, roleName, principalID string) error {
	if err := a.repo.CreateRoleAssignment(ctx, resourceName, roleName, principalID); err != nil {
		return err
	}
	a.evaluator.Invalidate(resourceName, principalID)
	return nil
}

func (a *Admin) RevokeRole(ctx context.Context, resourceName, roleName, principalID string) error {
	if err := a.repo.DeleteRoleAssignment(ctx, resourceName, roleName, principalID); err != nil {
		return err
	}
	a.evaluator.Invalidate(resourceName, principalID)
	return nil
}

// DeletePrincipal sweeps every scope/role assignment held by principalID
// across every resource and invalidates the cache for each resource it
// touched.
func (a *Admin) DeletePrincipal(ctx context.Context, principalID string) error {
	resources, err := a.repo.GetResources(ctx)
	if err != nil {
		return err
	}
	if err := a.repo.DeletePrincipal(ctx, principalID); err != nil {
		return err
	}
	for _, r := range resources {
		a.evaluator.Invalidate(r.Name, principalID)
	}
	return nil
}

func (a *Admin) GetResources(ctx context.Context) ([]rbac.Resource, error) {
	return a.repo.GetResources(ctx)
}

func (a *Admin) GetResource(ctx context.Context, resourceName string) (*rbac.Resource, error) {
	return a.repo.GetResource(ctx, resourceName)
}

func (a *Admin) GetScope(ctx context.Context, resourceName, scopeName string) (*rbac.Scope, error) {
	return a.repo.GetScope(ctx, resourceName, scopeName)
}

func (a *Admin) GetRole(ctx context.Context, resourceName, roleName string) (*rbac.Role, error) {
	return a.repo.GetRole(ctx, resourceName, roleName)
}

func (a *Admin) GetPrincipalsForScope(ctx context.Context, resourceName, scopeName string) ([]string, error) {
	return a.repo.GetPrincipalsForScope(ctx, resourceName, scopeName)
}

func (a *Admin) GetPrincipalsForRole(ctx context.Context, resourceName, roleName string) ([]string, error) {
	return a.repo.GetPrincipalsForRole(ctx, resourceName, roleName)
}
