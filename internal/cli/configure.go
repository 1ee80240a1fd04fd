package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Manage CLI profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		serverURL, _ := cmd.Flags().GetString("server-url")

		if err := cfg.SaveProfile(name, serverURL); err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}

		printSuccess("Profile '%s' saved", name)
		printInfo("Server URL: %s", serverURL)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the API server health",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := apiClient(cmd)
		if err != nil {
			return err
		}

		health, err := client.Health()
		if err != nil {
			return fmt.Errorf("server unreachable: %w", err)
		}

		printSuccess("Server is %s", health["status"])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(statusCmd)

	configureCmd.Flags().String("name", "default", "Profile name")
	configureCmd.Flags().String("server-url", "http://localhost:8080", "Store API base URL")
}
