package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/trelnex/accessd/cmd/accessd/cmd/iam"
)

var (
	cfgFile string
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the Cobra entry point. Configuration is loaded per-subcommand
// (see serveCmd and cmd/iam's loadConfig) rather than once here, since
// "version" and "iam ... --help" must work without a valid config.Config
// present.
var rootCmd = &cobra.Command{
	Use:   "accessd",
	Short: "RBAC repository and JWT issuance service",
	Long: `accessd maintains an RBAC database over a key-value store and mints
signed JWTs carrying the scopes and roles a principal effectively holds
on a resource.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (overrides default search locations)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(iam.IamCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("accessd version %s (commit %s, built %s)\n", version, commit, date)
	},
}

// SetVersion records build metadata injected by the build system.
func SetVersion(v, c, d string) {
	version, commit, date = v, c, d
}

// Execute runs the root command. serveCmd exits 1/2 directly for
// configuration and store-connectivity failures; any other command error
// (including iam subcommand errors) exits 1 here.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
