// Package cmdutil assembles the core's collaborators from a loaded
// config.Config, shared by every cmd/accessd subcommand so "serve" and
// "iam" wire the RBAC repository identically.
package cmdutil

import (
	"context"
	"fmt"
	"log"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/trelnex/accessd/internal/admin"
	"github.com/trelnex/accessd/internal/config"
	"github.com/trelnex/accessd/internal/jwtprovider"
	"github.com/trelnex/accessd/internal/kv"
	"github.com/trelnex/accessd/internal/kv/dynamo"
	"github.com/trelnex/accessd/internal/rbac"
	"github.com/trelnex/accessd/internal/telemetry"
)

// evaluatorCacheSize and evaluatorCacheTTL bound the access-evaluation
// cache; they are fixed here rather than exposed as configuration, since
// they are an implementation detail of the cache and not a recognized
// configuration option.
const (
	evaluatorCacheSize = 4096
	evaluatorCacheTTL  = 30 * time.Second
)

// Core bundles the collaborators every subcommand needs.
type Core struct {
	Store        kv.Store
	Repo         rbac.Repository
	Evaluator    *rbac.Evaluator
	Admin        *admin.Admin
	Provider     *jwtprovider.Provider
	TokenMetrics *telemetry.TokenMetrics
}

// BuildStore constructs the DynamoDB-backed kv.Store named by cfg.RBAC,
// resolving credentials from the deployment's default chain -- the store
// never reads credentials from configuration directly.
func BuildStore(ctx context.Context, cfg config.RBACConfig) (kv.Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("cmdutil: load AWS config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg)
	return dynamo.New(client, cfg.TableName), nil
}

// BuildProvider loads every configured signing identity into a
// jwtprovider.Provider.
func BuildProvider(cfg config.JWTConfig, clock jwtprovider.Clock) (*jwtprovider.Provider, error) {
	identities := make([]*jwtprovider.SigningIdentity, 0, len(cfg.Identities))
	for _, src := range cfg.Identities {
		expiration := cfg.ExpirationMinutes
		identity, err := jwtprovider.LoadIdentity(jwtprovider.IdentitySource{
			Audience:    src.Audience,
			Issuer:      src.Issuer,
			KeyID:       src.KeyID,
			Algorithm:   src.Algorithm,
			KeyMaterial: src.KeyMaterial,
		})
		if err != nil {
			return nil, fmt.Errorf("cmdutil: load signing identity %q: %w", src.KeyID, err)
		}
		identity.ExpirationMinutes = expiration
		identities = append(identities, identity)
		log.Printf("cmdutil: loaded signing identity kid=%s alg=%s fingerprint=%s", identity.KeyID, identity.Algorithm, identity.Fingerprint())
	}
	return jwtprovider.NewProvider(identities, clock)
}

// Build assembles a Core from cfg: the kv.Store, RBAC repository,
// access-evaluation engine, administrative surface, and JWT provider.
func Build(ctx context.Context, cfg *config.Config) (*Core, error) {
	store, err := BuildStore(ctx, cfg.RBAC)
	if err != nil {
		return nil, err
	}

	// Metric instrument creation only fails on a malformed instrument
	// definition, never on a collector being unreachable; each New*Metrics
	// call already returns nil on error, and a nil *Metrics value
	// downgrades every Record call to a no-op, so the core still builds if
	// telemetry wiring itself is the thing that's broken.
	repoMetrics, _ := telemetry.NewRepositoryMetrics()
	evalMetrics, _ := telemetry.NewEvaluatorMetrics()
	tokenMetrics, _ := telemetry.NewTokenMetrics()

	repo := rbac.NewRepository(store, rbac.WithRepositoryMetrics(repoMetrics))
	evaluator := rbac.NewEvaluator(repo, evaluatorCacheSize, evaluatorCacheTTL, rbac.WithEvaluatorMetrics(evalMetrics))
	provider, err := BuildProvider(cfg.JWT, jwtprovider.RealClock{})
	if err != nil {
		return nil, err
	}
	return &Core{
		Store:        store,
		Repo:         repo,
		Evaluator:    evaluator,
		Admin:        admin.New(repo, evaluator),
		Provider:     provider,
		TokenMetrics: tokenMetrics,
	}, nil
}
