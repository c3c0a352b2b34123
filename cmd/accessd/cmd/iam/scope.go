package iam

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scopeCmd = &cobra.Command{
	Use:   "scope",
	Short: "Manage scopes within a resource",
}

func init() {
	scopeCmd.AddCommand(scopeCreateCmd)
	scopeCmd.AddCommand(scopeDeleteCmd)
	scopeCmd.AddCommand(scopePrincipalsCmd)
}

var scopeCreateCmd = &cobra.Command{
	Use:   "create [resourceName] [scopeName]",
	Short: "Create a scope within a resource",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := buildAdmin(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if err := a.CreateScope(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("scope %q created on resource %q\n", args[1], args[0])
		return nil
	},
}

var scopeDeleteCmd = &cobra.Command{
	Use:   "delete [resourceName] [scopeName]",
	Short: "Delete a scope and every assignment against it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := buildAdmin(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		if err := a.DeleteScope(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("scope %q deleted from resource %q\n", args[1], args[0])
		return nil
	},
}

var scopePrincipalsCmd = &cobra.Command{
	Use:   "principals [resourceName] [scopeName]",
	Short: "List principals holding a scope assignment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := buildAdmin(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		principals, err := a.GetPrincipalsForScope(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		for _, p := range principals {
			fmt.Println(p)
		}
		return nil
	},
}
