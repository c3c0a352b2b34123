package iam

import (
	"fmt"

	"github.com/spf13/cobra"
)

var assignmentCmd = &cobra.Command{
	Use:   "assignment",
	Short: "Grant and revoke scope/role assignments",
}

func init() {
	assignmentCmd.AddCommand(assignmentCreateCmd)
	assignmentCmd.AddCommand(assignmentDeleteCmd)
	assignmentCreateCmd.Flags().StringVar(&assignScope, "scope", "", "scope name to assign (mutually exclusive with --role)")
	assignmentCreateCmd.Flags().StringVar(&assignRole, "role", "", "role name to assign (mutually exclusive with --scope)")
	assignmentDeleteCmd.Flags().StringVar(&assignScope, "scope", "", "scope name to revoke (mutually exclusive with --role)")
	assignmentDeleteCmd.Flags().StringVar(&assignRole, "role", "", "role name to revoke (mutually exclusive with --scope)")
}

var (
	assignScope string
	assignRole  string
)

var assignmentCreateCmd = &cobra.Command{
	Use:   "create [resourceName] [principalId]",
	Short: "Assign a scope or role to a principal on a resource",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resourceName, principalID := args[0], args[1]
		if (assignScope == "") == (assignRole == "") {
			return fmt.Errorf("assignment create: exactly one of --scope or --role is required")
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := buildAdmin(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if assignScope != "" {
			if err := a.AssignScope(cmd.Context(), resourceName, assignScope, principalID); err != nil {
				return err
			}
			fmt.Printf("scope %q assigned to %q on %q\n", assignScope, principalID, resourceName)
			return nil
		}
		if err := a.AssignRole(cmd.Context(), resourceName, assignRole, principalID); err != nil {
			return err
		}
		fmt.Printf("role %q assigned to %q on %q\n", assignRole, principalID, resourceName)
		return nil
	},
}

var assignmentDeleteCmd = &cobra.Command{
	Use:   "delete [resourceName] [principalId]",
	Short: "Revoke a scope or role assignment from a principal on a resource",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		resourceName, principalID := args[0], args[1]
		if (assignScope == "") == (assignRole == "") {
			return fmt.Errorf("assignment delete: exactly one of --scope or --role is required")
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := buildAdmin(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if assignScope != "" {
			if err := a.RevokeScope(cmd.Context(), resourceName, assignScope, principalID); err != nil {
				return err
			}
			fmt.Printf("scope %q revoked from %q on %q\n", assignScope, principalID, resourceName)
			return nil
		}
		if err := a.RevokeRole(cmd.Context(), resourceName, assignRole, principalID); err != nil {
			return err
		}
		fmt.Printf("role %q revoked from %q on %q\n", assignRole, principalID, resourceName)
		return nil
	},
}
