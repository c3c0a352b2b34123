package iam

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trelnex/accessd/internal/config"
)

var resourceCmd = &cobra.Command{
	Use:   "resource",
	Short: "Manage resources",
}

func init() {
	resourceCmd.AddCommand(resourceCreateCmd)
	resourceCmd.AddCommand(resourceDeleteCmd)
	resourceCmd.AddCommand(resourceListCmd)
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

var resourceCreateCmd = &cobra.Command{
	Use:   "create [resourceName]",
	Short: "Create a resource",
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
		if err := a.CreateResource(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("resource %q created\n", args[0])
		return nil
	},
}

var resourceDeleteCmd = &cobra.Command{
	Use:   "delete [resourceName]",
	Short: "Delete a resource and every scope, role, and assignment under it",
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
		if err := a.DeleteResource(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("resource %q deleted\n", args[0])
		return nil
	},
}

var resourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := buildAdmin(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		resources, err := a.GetResources(cmd.Context())
		if err != nil {
			return err
		}
		for _, r := range resources {
			fmt.Println(r.Name)
		}
		return nil
	},
}
