// Package rbac implements the RBAC repository and the access-evaluation
// engine on top of the kv adapter.
package rbac

import "context"

// Repository is the write/read surface over the RBAC data model. It is
// kept as a narrow capability contract so it can be backed by kv/dynamo in
// production and kv/memstore in tests without any other layer noticing the
// difference.
type Repository interface {
	CreateResource(ctx context.Context, resourceName string) error
	DeleteResource(ctx context.Context, resourceName string) error

	CreateScope(ctx context.Context, resourceName, scopeName string) error
	DeleteScope(ctx context.Context, resourceName, scopeName string) error
	CreateRole(ctx context.Context, resourceName, roleName string) error
	DeleteRole(ctx context.Context, resourceName, roleName string) error

	CreateScopeAssignment(ctx context.Context, resourceName, scopeName, principalID string) error
	DeleteScopeAssignment(ctx context.Context, resourceName, scopeName, principalID string) error
	CreateRoleAssignment(ctx context.Context, resourceName, roleName, principalID string) error
	DeleteRoleAssignment(ctx context.Context, resourceName, roleName, principalID string) error

	DeletePrincipal(ctx context.Context, principalID string) error

	GetResource(ctx context.Context, resourceName string) (*Resource, error)
	GetScope(ctx context.Context, resourceName, scopeName string) (*Scope, error)
	GetRole(ctx context.Context, resourceName, roleName string) (*Role, error)
	GetResources(ctx context.Context) ([]Resource, error)

	GetPrincipalsForScope(ctx context.Context, resourceName, scopeName string) ([]string, error)
	GetPrincipalsForRole(ctx context.Context, resourceName, roleName string) ([]string, error)

	// queryScopeAssignments/queryRoleAssignments are used by Evaluator to fetch the raw scope/role
	// assignment rows for a resource without re-exposing kv.Store itself.
	queryScopeAssignments(ctx context.Context, resourceName string) ([]Row, error)
	queryRoleAssignments(ctx context.Context, resourceName string) ([]Row, error)
}

// Row is the evaluator-facing projection of an assignment: the scope/role
// name and the principal it is assigned to.
type Row struct {
	Name        string
	PrincipalID string
}
