// Package iam implements the "iam" command group: CLI subcommands over the
// administrative surface (internal/admin) for managing resources, scopes,
// roles, and assignments.
package iam

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/trelnex/accessd/cmd/accessd/cmd/cmdutil"
	"github.com/trelnex/accessd/internal/admin"
	"github.com/trelnex/accessd/internal/config"
)

// IamCmd is the parent command for resource/scope/role/assignment
// management.
var IamCmd = &cobra.Command{
	Use:   "iam",
	Short: "Manage resources, scopes, roles, and assignments",
}

func init() {
	IamCmd.AddCommand(resourceCmd)
	IamCmd.AddCommand(scopeCmd)
	IamCmd.AddCommand(roleCmd)
	IamCmd.AddCommand(assignmentCmd)
	IamCmd.AddCommand(principalCmd)
}

// buildAdmin loads cfg and wires an *admin.Admin, shared by every
// subcommand in this package.
func buildAdmin(ctx context.Context, cfg *config.Config) (*admin.Admin, error) {
	core, err := cmdutil.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return core.Admin, nil
}
