package iam

import (
	"fmt"

	"github.com/spf13/cobra"
)

var principalCmd = &cobra.Command{
	Use:   "principal",
	Short: "Manage principals",
}

func init() {
	principalCmd.AddCommand(principalDeleteCmd)
}

var principalDeleteCmd = &cobra.Command{
	Use:   "delete [principalId]",
	Short: "Remove every scope and role assignment held by a principal, across every resource",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := buildAdmin(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if err := a.DeletePrincipal(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("principal %q deleted\n", args[0])
		return nil
	},
}
