package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *ProfileConfig
)

var rootCmd = &cobra.Command{
	Use:   "fakestorectl",
	Short: "Fakestore API CLI",
	Long: `fakestorectl is the command-line interface for the fakestore API.

Manage products, orders and webhook subscriptions, inspect the dead
letter queue and read operational metrics from your terminal.`,
	Version: "0.1.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.fakestore/config.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "profile to use")
	rootCmd.PersistentFlags().String("output", "table", "output format: table, json")
}

func initConfig() {
	var err error
	cfg, err = LoadProfileConfig(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = DefaultProfileConfig()
	}
}

// apiClient resolves the profile selected on the command line.
func apiClient(cmd *cobra.Command) (*Client, error) {
	profile, _ := cmd.Flags().GetString("profile")
	p, err := cfg.GetProfile(profile)
	if err != nil {
		return nil, err
	}
	return NewClient(p.ServerURL), nil
}
