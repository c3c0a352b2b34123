package rbac

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trelnex/accessd/internal/apierr"
	"github.com/trelnex/accessd/internal/kv"
	"github.com/trelnex/accessd/internal/telemetry"
	"github.com/trelnex/accessd/internal/validate"
)

// store is the concrete Repository implementation: validate inputs, read
// parent rows it references, compose one TransactWrite, translate
// cancellations -- the shape every write path follows.
type store struct {
	kv      kv.Store
	metrics *telemetry.RepositoryMetrics
}

// Option configures optional collaborators of the Repository returned by
// NewRepository, e.g. metrics. Zero value is a fully functional,
// metrics-free repository.
type Option func(*store)

// WithRepositoryMetrics records every repository operation's name,
// duration, and error status to m.
func WithRepositoryMetrics(m *telemetry.RepositoryMetrics) Option {
	return func(s *store) { s.metrics = m }
}

// NewRepository returns a Repository backed by the given key-value adapter.
func NewRepository(s kv.Store, opts ...Option) Repository {
	st := &store{kv: s}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// instrument times fn under operation's name and records it to s.metrics,
// returning fn's error unchanged.
func (s *store) instrument(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.RecordOperation(ctx, operation, float64(time.Since(start).Microseconds())/1000, err)
	return err
}

func (s *store) CreateResource(ctx context.Context, resourceName string) error {
	return s.instrument(ctx, "CreateResource", func() error {
		resourceName, err := validate.ResourceName(resourceName)
		if err != nil {
			return err
		}
		_, err = s.kv.PutItemIfAbsent(ctx, kv.Row{EntityName: resourceName, SubjectName: resourceSubject})
		return wrapKVErr(err)
	})
}

func (s *store) DeleteResource(ctx context.Context, resourceName string) error {
	return s.instrument(ctx, "DeleteResource", func() error {
		resourceName, err := validate.ResourceName(resourceName)
		if err != nil {
			return err
		}
		for {
			rows, err := s.kv.QueryByEntity(ctx, resourceName, "")
			if err != nil {
				return wrapKVErr(err)
			}
			if len(rows) == 0 {
				return nil
			}
			if err := deleteRowsChunked(ctx, s.kv, resourceName, rows); err != nil {
				return wrapKVErr(err)
			}
		}
	})
}

func (s *store) CreateScope(ctx context.Context, resourceName, scopeName string) error {
	return s.instrument(ctx, "CreateScope", func() error {
		return s.createChild(ctx, resourceName, scopeName, validate.ScopeName, scopeSubject)
	})
}

func (s *store) CreateRole(ctx context.Context, resourceName, roleName string) error {
	return s.instrument(ctx, "CreateRole", func() error {
		return s.createChild(ctx, resourceName, roleName, validate.RoleName, roleSubject)
	})
}

func (s *store) createChild(ctx context.Context, resourceName, name string, validateName func(string) error, subject func(string) string) error {
	resourceName, err := validate.ResourceName(resourceName)
	if err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return err
	}

	ops := []kv.WriteOp{
		{ConditionKey: kv.Key{EntityName: resourceName, SubjectName: resourceSubject}, Condition: kv.ConditionExists},
		{Put: &kv.Row{EntityName: resourceName, SubjectName: subject(name)}, Condition: kv.ConditionAbsent},
	}
	err = s.kv.TransactWrite(ctx, ops)
	if err == nil {
		return nil
	}
	var cancelled *kv.CancelledError
	if errors.As(err, &cancelled) {
		if cancelled.ConditionFailedAt(0) {
			return apierr.New(apierr.KindResourceNotFound, resourceName)
		}
		// index 1 failing means the row already existed -- idempotent no-op.
		if cancelled.ConditionFailedAt(1) && !cancelled.ConditionFailedAt(0) {
			return nil
		}
		return apierr.Wrap(err)
	}
	return wrapKVErr(err)
}

func (s *store) DeleteScope(ctx context.Context, resourceName, scopeName string) error {
	return s.instrument(ctx, "DeleteScope", func() error {
		return s.deleteChild(ctx, resourceName, scopeName, scopeAssignmentPrefix, scopeSubject)
	})
}

func (s *store) DeleteRole(ctx context.Context, resourceName, roleName string) error {
	return s.instrument(ctx, "DeleteRole", func() error {
		return s.deleteChild(ctx, resourceName, roleName, roleAssignmentPrefix, roleSubject)
	})
}

func (s *store) deleteChild(ctx context.Context, resourceName, name string, assignmentPrefix func(string) string, subject func(string) string) error {
	resourceName, err := validate.ResourceName(resourceName)
	if err != nil {
		return err
	}

	rows, err := s.kv.QueryByEntity(ctx, resourceName, assignmentPrefix(name))
	if err != nil {
		return wrapKVErr(err)
	}
	if err := deleteRowsChunked(ctx, s.kv, resourceName, rows); err != nil {
		return wrapKVErr(err)
	}

	_, err = s.kv.DeleteItem(ctx, resourceName, subject(name))
	return wrapKVErr(err)
}

func (s *store) CreateScopeAssignment(ctx context.Context, resourceName, scopeName, principalID string) error {
	return s.instrument(ctx, "CreateScopeAssignment", func() error {
		return s.createAssignment(ctx, resourceName, scopeName, principalID, validate.ScopeName, scopeSubject, scopeAssignmentSubject, apierr.KindScopeNotFound)
	})
}

func (s *store) CreateRoleAssignment(ctx context.Context, resourceName, roleName, principalID string) error {
	return s.instrument(ctx, "CreateRoleAssignment", func() error {
		return s.createAssignment(ctx, resourceName, roleName, principalID, validate.RoleName, roleSubject, roleAssignmentSubject, apierr.KindRoleNotFound)
	})
}

func (s *store) createAssignment(
	ctx context.Context,
	resourceName, name, principalID string,
	validateName func(string) error,
	subject func(string) string,
	assignmentSubject func(string, string) string,
	notFoundKind apierr.Kind,
) error {
	resourceName, err := validate.ResourceName(resourceName)
	if err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return err
	}
	if err := validate.PrincipalID(principalID); err != nil {
		return err
	}

	ops := []kv.WriteOp{
		{ConditionKey: kv.Key{EntityName: resourceName, SubjectName: resourceSubject}, Condition: kv.ConditionExists},
		{ConditionKey: kv.Key{EntityName: resourceName, SubjectName: subject(name)}, Condition: kv.ConditionExists},
		{Put: &kv.Row{EntityName: resourceName, SubjectName: assignmentSubject(name, principalID)}, Condition: kv.ConditionAbsent},
	}
	err = s.kv.TransactWrite(ctx, ops)
	if err == nil {
		return nil
	}
	var cancelled *kv.CancelledError
	if errors.As(err, &cancelled) {
		switch {
		case cancelled.ConditionFailedAt(0):
			return apierr.New(apierr.KindResourceNotFound, resourceName)
		case cancelled.ConditionFailedAt(1):
			return apierr.New(notFoundKind, name)
		case cancelled.ConditionFailedAt(2):
			return nil // idempotent: assignment already present
		}
		return apierr.Wrap(err)
	}
	return wrapKVErr(err)
}

func (s *store) DeleteScopeAssignment(ctx context.Context, resourceName, scopeName, principalID string) error {
	return s.instrument(ctx, "DeleteScopeAssignment", func() error {
		return s.deleteAssignment(ctx, resourceName, scopeAssignmentSubject(scopeName, principalID))
	})
}

func (s *store) DeleteRoleAssignment(ctx context.Context, resourceName, roleName, principalID string) error {
	return s.instrument(ctx, "DeleteRoleAssignment", func() error {
		return s.deleteAssignment(ctx, resourceName, roleAssignmentSubject(roleName, principalID))
	})
}

func (s *store) deleteAssignment(ctx context.Context, resourceName, subject string) error {
	resourceName, err := validate.ResourceName(resourceName)
	if err != nil {
		return err
	}
	_, err = s.kv.DeleteItem(ctx, resourceName, subject)
	return wrapKVErr(err)
}

func (s *store) DeletePrincipal(ctx context.Context, principalID string) error {
	return s.instrument(ctx, "DeletePrincipal", func() error {
		if err := validate.PrincipalID(principalID); err != nil {
			return err
		}

		resources, err := s.GetResources(ctx)
		if err != nil {
			return err
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, r := range resources {
			r := r
			g.Go(func() error {
				rows, err := s.kv.QueryByEntity(gctx, r.Name, "")
				if err != nil {
					return wrapKVErr(err)
				}
				var toDelete []kv.Row
				for _, row := range rows {
					if _, _, ok := parseScopeAssignment(row.SubjectName); ok && hasPrincipalSuffix(row.SubjectName, principalID) {
						toDelete = append(toDelete, row)
						continue
					}
					if _, _, ok := parseRoleAssignment(row.SubjectName); ok && hasPrincipalSuffix(row.SubjectName, principalID) {
						toDelete = append(toDelete, row)
					}
				}
				return wrapKVErr(deleteRowsChunked(gctx, s.kv, r.Name, toDelete))
			})
		}
		return g.Wait()
	})
}

func (s *store) GetResource(ctx context.Context, resourceName string) (*Resource, error) {
	resourceName, err := validate.ResourceName(resourceName)
	if err != nil {
		return nil, err
	}
	row, err := s.kv.GetItem(ctx, resourceName, resourceSubject)
	if err != nil {
		return nil, wrapKVErr(err)
	}
	if row == nil {
		return nil, nil
	}
	return &Resource{Name: resourceName}, nil
}

func (s *store) GetScope(ctx context.Context, resourceName, scopeName string) (*Scope, error) {
	resourceName, err := validate.ResourceName(resourceName)
	if err != nil {
		return nil, err
	}
	if err := validate.ScopeName(scopeName); err != nil {
		return nil, err
	}
	row, err := s.kv.GetItem(ctx, resourceName, scopeSubject(scopeName))
	if err != nil {
		return nil, wrapKVErr(err)
	}
	if row == nil {
		return nil, nil
	}
	return &Scope{ResourceName: resourceName, Name: scopeName}, nil
}

func (s *store) GetRole(ctx context.Context, resourceName, roleName string) (*Role, error) {
	resourceName, err := validate.ResourceName(resourceName)
	if err != nil {
		return nil, err
	}
	if err := validate.RoleName(roleName); err != nil {
		return nil, err
	}
	row, err := s.kv.GetItem(ctx, resourceName, roleSubject(roleName))
	if err != nil {
		return nil, wrapKVErr(err)
	}
	if row == nil {
		return nil, nil
	}
	return &Role{ResourceName: resourceName, Name: roleName}, nil
}

func (s *store) GetResources(ctx context.Context) ([]Resource, error) {
	rows, err := s.kv.ScanAll(ctx)
	if err != nil {
		return nil, wrapKVErr(err)
	}
	out := make([]Resource, 0, len(rows))
	for _, row := range rows {
		if row.SubjectName == resourceSubject {
			out = append(out, Resource{Name: row.EntityName})
		}
	}
	return out, nil
}

func (s *store) GetPrincipalsForScope(ctx context.Context, resourceName, scopeName string) ([]string, error) {
	return s.principalsFor(ctx, resourceName, scopeName, validate.ScopeName, s.getScopeExists, apierr.KindScopeNotFound, scopeAssignmentPrefix, parseScopeAssignment)
}

func (s *store) GetPrincipalsForRole(ctx context.Context, resourceName, roleName string) ([]string, error) {
	return s.principalsFor(ctx, resourceName, roleName, validate.RoleName, s.getRoleExists, apierr.KindRoleNotFound, roleAssignmentPrefix, parseRoleAssignment)
}

// getScopeExists/getRoleExists adapt GetScope/GetRole to a presence-only signature for
// principalsFor's generic parent check.
func (s *store) getScopeExists(ctx context.Context, resourceName, name string) (bool, error) {
	scope, err := s.GetScope(ctx, resourceName, name)
	return scope != nil, err
}

func (s *store) getRoleExists(ctx context.Context, resourceName, name string) (bool, error) {
	role, err := s.GetRole(ctx, resourceName, name)
	return role != nil, err
}

func (s *store) principalsFor(
	ctx context.Context,
	resourceName, name string,
	validateName func(string) error,
	parentExists func(context.Context, string, string) (bool, error),
	notFoundKind apierr.Kind,
	assignmentPrefix func(string) string,
	parse func(string) (string, string, bool),
) ([]string, error) {
	resourceName, err := validate.ResourceName(resourceName)
	if err != nil {
		return nil, err
	}
	if err := validateName(name); err != nil {
		return nil, err
	}
	resource, err := s.GetResource(ctx, resourceName)
	if err != nil {
		return nil, err
	}
	if resource == nil {
		return nil, apierr.New(apierr.KindResourceNotFound, resourceName)
	}
	exists, err := parentExists(ctx, resourceName, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apierr.New(notFoundKind, name)
	}

	rows, err := s.kv.QueryByEntity(ctx, resourceName, assignmentPrefix(name))
	if err != nil {
		return nil, wrapKVErr(err)
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if _, principalID, ok := parse(row.SubjectName); ok {
			out = append(out, principalID)
		}
	}
	return out, nil
}

func (s *store) queryScopeAssignments(ctx context.Context, resourceName string) ([]Row, error) {
	return s.queryAssignments(ctx, resourceName, scopePrefix, parseScopeAssignment)
}

func (s *store) queryRoleAssignments(ctx context.Context, resourceName string) ([]Row, error) {
	return s.queryAssignments(ctx, resourceName, rolePrefix, parseRoleAssignment)
}

func (s *store) queryAssignments(ctx context.Context, resourceName, prefix string, parse func(string) (string, string, bool)) ([]Row, error) {
	rows, err := s.kv.QueryByEntity(ctx, resourceName, prefix)
	if err != nil {
		return nil, wrapKVErr(err)
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if name, principalID, ok := parse(row.SubjectName); ok {
			out = append(out, Row{Name: name, PrincipalID: principalID})
		}
	}
	return out, nil
}

func wrapKVErr(err error) error {
	if err == nil {
		return nil
	}
	var throttled *kv.ThrottledError
	if errors.As(err, &throttled) {
		return apierr.New(apierr.KindThrottled, throttled.Error())
	}
	var timeout *kv.TimeoutError
	if errors.As(err, &timeout) {
		return apierr.New(apierr.KindTimeout, timeout.Error())
	}
	if errors.Is(err, context.Canceled) {
		return apierr.New(apierr.KindCancelled, "cancelled")
	}
	return apierr.Wrap(err)
}

func deleteRowsChunked(ctx context.Context, s kv.Store, resourceName string, rows []kv.Row) error {
	const chunkSize = kv.MaxTransactItems
	for i := 0; i < len(rows); i += chunkSize {
		end := i + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		ops := make([]kv.WriteOp, 0, end-i)
		for _, row := range rows[i:end] {
			k := kv.Key{EntityName: resourceName, SubjectName: row.SubjectName}
			ops = append(ops, kv.WriteOp{Delete: &k})
		}
		if err := s.TransactWrite(ctx, ops); err != nil {
			return err
		}
	}
	return nil
}
