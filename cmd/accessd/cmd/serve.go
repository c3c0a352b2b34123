package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/trelnex/accessd/cmd/accessd/cmd/cmdutil"
	"github.com/trelnex/accessd/internal/config"
	"github.com/trelnex/accessd/internal/pipeline"
	"github.com/trelnex/accessd/internal/telemetry"
)

// audienceMapper builds the resourceName -> audience function from
// cfg.JWT.Identities: when only one identity is configured its audience is
// used for every resource; otherwise the identity whose Issuer is exactly
// equal to resourceName is the match.
func audienceMapper(cfg config.JWTConfig) pipeline.AudienceMapper {
	return func(resourceName string) (string, error) {
		if len(cfg.Identities) == 1 {
			return cfg.Identities[0].Audience, nil
		}
		for _, id := range cfg.Identities {
			if id.Issuer == resourceName {
				return id.Audience, nil
			}
		}
		return "", fmt.Errorf("serve: no audience configured for resource %q", resourceName)
	}
}

// identityBinder maps a deployment-obtained caller identity straight to a
// principalId -- a pure function supplied by the deployment environment,
// not the core.
func identityBinder(callerIdentity string) (string, error) {
	if callerIdentity == "" {
		return "", fmt.Errorf("serve: empty caller identity")
	}
	return callerIdentity, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the token-issuance pipeline until a shutdown signal is received",
	Long: `serve wires the RBAC repository, access-evaluation engine, and JWT
provider and blocks until SIGINT/SIGTERM. The HTTP/RPC transport that
exposes IssueToken to callers is wired in by the hosting deployment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.Load(cfgFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Observability)
		if err != nil {
			return fmt.Errorf("serve: init telemetry: %w", err)
		}
		defer shutdownTelemetry(ctx)

		core, err := cmdutil.Build(ctx, cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}

		// Probe the table at startup: GetResources scans the whole table,
		// which fails fast if the table is unreachable or misconfigured.
		if _, err := core.Repo.GetResources(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "serve: key-value store unreachable: %v\n", err)
			os.Exit(2)
		}

		// p.IssueToken is the one operation a hosting transport calls into;
		// this runner only proves the wiring is sound and then blocks.
		_ = pipeline.New(identityBinder, core.Evaluator, core.Provider, audienceMapper(cfg.JWT), pipeline.WithMetrics(core.TokenMetrics))

		log.Printf("accessd: ready (table=%s region=%s)", cfg.RBAC.TableName, cfg.RBAC.Region)

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		<-shutdown

		log.Printf("accessd: shutting down")
		return nil
	},
}
