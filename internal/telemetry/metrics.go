package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RepositoryMetrics holds metric instruments for the RBAC repository's
// write/read surface. Initialize once at startup and share across every
// request.
type RepositoryMetrics struct {
	OperationCounter  metric.Int64Counter     // Total repository operations
	OperationDuration metric.Float64Histogram // Repository operation latency
	ErrorCounter      metric.Int64Counter     // Total repository operation errors
}

// NewRepositoryMetrics creates the repository's metric instruments.
func NewRepositoryMetrics() (*RepositoryMetrics, error) {
	meter := otel.Meter("accessd/rbac")

	operationCounter, err := meter.Int64Counter(
		"rbac.repository.operation.count",
		metric.WithDescription("Total number of RBAC repository operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, err
	}

	operationDuration, err := meter.Float64Histogram(
		"rbac.repository.operation.duration",
		metric.WithDescription("RBAC repository operation duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2000),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"rbac.repository.error.count",
		metric.WithDescription("Total number of RBAC repository operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &RepositoryMetrics{
		OperationCounter:  operationCounter,
		OperationDuration: operationDuration,
		ErrorCounter:      errorCounter,
	}, nil
}

// RecordOperation records one repository call: its name, duration, and
// whether it failed.
func (m *RepositoryMetrics) RecordOperation(ctx context.Context, operation string, durationMs float64, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrRBACOperation, operation))

	m.OperationCounter.Add(ctx, 1, attrs)
	m.OperationDuration.Record(ctx, durationMs, attrs)

	if err != nil {
		m.ErrorCounter.Add(ctx, 1, attrs)
	}
}

// EvaluatorMetrics holds metric instruments for the access-evaluation
// engine's cache and evaluation cost.
type EvaluatorMetrics struct {
	CacheHits          metric.Int64Counter     // PrincipalAccess cache hits
	CacheMisses        metric.Int64Counter     // PrincipalAccess cache misses
	EvaluationDuration metric.Float64Histogram // Cache-miss evaluation latency
}

// NewEvaluatorMetrics creates the access-evaluation engine's metric
// instruments.
func NewEvaluatorMetrics() (*EvaluatorMetrics, error) {
	meter := otel.Meter("accessd/evaluator")

	cacheHits, err := meter.Int64Counter(
		"rbac.evaluator.cache.hit.count",
		metric.WithDescription("Total number of PrincipalAccess cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"rbac.evaluator.cache.miss.count",
		metric.WithDescription("Total number of PrincipalAccess cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	evaluationDuration, err := meter.Float64Histogram(
		"rbac.evaluator.evaluation.duration",
		metric.WithDescription("GetPrincipalAccess evaluation duration on a cache miss"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return nil, err
	}

	return &EvaluatorMetrics{
		CacheHits:          cacheHits,
		CacheMisses:        cacheMisses,
		EvaluationDuration: evaluationDuration,
	}, nil
}

// RecordCacheHit increments the cache-hit counter for resourceName.
func (m *EvaluatorMetrics) RecordCacheHit(ctx context.Context, resourceName string) {
	if m == nil {
		return
	}
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrResourceName, resourceName)))
}

// RecordCacheMiss increments the cache-miss counter and records the
// evaluation duration that followed it.
func (m *EvaluatorMetrics) RecordCacheMiss(ctx context.Context, resourceName string, durationMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrResourceName, resourceName))
	m.CacheMisses.Add(ctx, 1, attrs)
	m.EvaluationDuration.Record(ctx, durationMs, attrs)
}

// TokenMetrics holds metric instruments for token issuance.
type TokenMetrics struct {
	IssuedCounter metric.Int64Counter     // Total tokens issued
	IssueDuration metric.Float64Histogram // IssueToken latency
	IssueErrors   metric.Int64Counter     // Total IssueToken failures
}

// NewTokenMetrics creates the request pipeline's metric instruments.
func NewTokenMetrics() (*TokenMetrics, error) {
	meter := otel.Meter("accessd/pipeline")

	issuedCounter, err := meter.Int64Counter(
		"pipeline.token.issued.count",
		metric.WithDescription("Total number of access tokens issued"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	issueDuration, err := meter.Float64Histogram(
		"pipeline.token.issue.duration",
		metric.WithDescription("IssueToken end-to-end duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000),
	)
	if err != nil {
		return nil, err
	}

	issueErrors, err := meter.Int64Counter(
		"pipeline.token.issue.error.count",
		metric.WithDescription("Total number of IssueToken failures"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &TokenMetrics{
		IssuedCounter: issuedCounter,
		IssueDuration: issueDuration,
		IssueErrors:   issueErrors,
	}, nil
}

// RecordIssuance records one IssueToken call: audience, duration, and
// whether it failed.
func (m *TokenMetrics) RecordIssuance(ctx context.Context, audience string, durationMs float64, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrAudience, audience))

	m.IssueDuration.Record(ctx, durationMs, attrs)
	if err != nil {
		m.IssueErrors.Add(ctx, 1, attrs)
		return
	}
	m.IssuedCounter.Add(ctx, 1, attrs)
}

// Common metric attribute keys shared by the RBAC repository, the
// access-evaluation engine, and the request pipeline.
const (
	AttrRBACOperation = "rbac.operation"
	AttrResourceName  = "rbac.resource_name"
	AttrPrincipalID   = "rbac.principal_id"
	AttrAudience      = "jwt.audience"
	AttrKeyID         = "jwt.kid"
)
