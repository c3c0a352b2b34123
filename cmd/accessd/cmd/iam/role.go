package iam

import (
	"fmt"

	"github.com/spf13/cobra"
)

var roleCmd = &cobra.Command{
	Use:   "role",
	Short: "Manage roles within a resource",
}

func init() {
	roleCmd.AddCommand(roleCreateCmd)
	roleCmd.AddCommand(roleDeleteCmd)
	roleCmd.AddCommand(rolePrincipalsCmd)
}

var roleCreateCmd = &cobra.Command{
	Use:   "create [resourceName] [roleName]",
	Short: "Create a role within a resource",
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
		if err := a.CreateRole(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("role %q created on resource %q\n", args[1], args[0])
		return nil
	},
}

var roleDeleteCmd = &cobra.Command{
	Use:   "delete [resourceName] [roleName]",
	Short: "Delete a role and every assignment against it",
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
		if err := a.DeleteRole(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("role %q deleted from resource %q\n", args[1], args[0])
		return nil
	},
}

var rolePrincipalsCmd = &cobra.Command{
	Use:   "principals [resourceName] [roleName]",
	Short: "List principals holding a role assignment",
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
		principals, err := a.GetPrincipalsForRole(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		for _, p := range principals {
			fmt.Println(p)
		}
		return nil
	},
}
