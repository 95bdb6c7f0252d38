package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redraskal/gateway/internal/config"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect gateway configuration",
	Long: `Inspect the configuration gateway resolves from flags, GATEWAY_
environment variables and .gateway.yml.

Examples:
  gateway config show            # Print the resolved configuration
  gateway config show -f json    # As JSON
  gateway config validate        # Check the configuration`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configValidateCmd)
	configShowCmd.Flags().StringVarP(&configFormat, "format", "f", formatYAML, "Output format (yaml, json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	return writeFormatted(cmd.OutOrStdout(), configFormat, cfg)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Configuration is valid (env: %s, listening on %s)\n", cfg.Env, cfg.Addr())
	return nil
}
