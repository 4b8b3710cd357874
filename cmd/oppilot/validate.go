package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oppilot/oppilot/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Load the configuration, apply environment overrides, and report
every validation problem instead of stopping at the first one.

Examples:
  oppilot validate
  oppilot validate --config /etc/oppilot/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			fmt.Printf("✗ Configuration invalid (%d problem(s)):\n", len(verr.Errors))
			for _, fe := range verr.Errors {
				fmt.Printf("  - %s: %s\n", fe.Field, fe.Message)
			}
			return fmt.Errorf("validation failed")
		}
		return err
	}

	credentialed := 0
	for _, p := range cfg.Providers {
		if len(p.APIKeys) > 0 {
			credentialed++
		}
	}

	fmt.Println("✓ Configuration valid")
	fmt.Printf("  Providers:   %d (%d with credentials)\n", len(cfg.Providers), credentialed)
	fmt.Printf("  Pools:       %d primary, %d secondary, %d emergency\n",
		len(cfg.Pools.Primary), len(cfg.Pools.Secondary), len(cfg.Pools.Emergency))
	fmt.Printf("  State dir:   %s\n", cfg.State.Dir)
	fmt.Printf("  Listen addr: %s\n", cfg.Server.ListenAddress)
	return nil
}
