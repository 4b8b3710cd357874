package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oppilot/oppilot/pkg/catalog"
	"github.com/oppilot/oppilot/pkg/cli"
)

var overrideSetFlags struct {
	ttl time.Duration
}

var overrideStatusFlags struct {
	format string
}

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Manage the manual model override",
	Long: `Pin every dispatch to one model, bypassing classification.

An override expires after its TTL, or earlier when the pinned model
fails three dispatches in a row. Passing an explicit --profile to
dispatch also cancels it.`,
}

var overrideSetCmd = &cobra.Command{
	Use:   "set <provider/model>",
	Short: "Pin all dispatches to one model",
	Long: `Pin all dispatches to the given model until the TTL lapses.

Examples:
  # Pin for the default 24 hours
  oppilot override set anthropic/claude-sonnet-4-5

  # Pin for one hour
  oppilot override set openai/gpt-4o --ttl 1h`,
	Args: cobra.ExactArgs(1),
	RunE: runOverrideSet,
}

var overrideClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the active override",
	Args:  cobra.NoArgs,
	RunE:  runOverrideClear,
}

var overrideStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active override",
	Args:  cobra.NoArgs,
	RunE:  runOverrideStatus,
}

func init() {
	rootCmd.AddCommand(overrideCmd)
	overrideCmd.AddCommand(overrideSetCmd, overrideClearCmd, overrideStatusCmd)

	overrideSetCmd.Flags().DurationVar(&overrideSetFlags.ttl, "ttl", 0, "override lifetime (0 = configured default)")
	overrideStatusCmd.Flags().StringVarP(&overrideStatusFlags.format, "output", "o", "text", "output format: text, json")
}

func runOverrideSet(cmd *cobra.Command, args []string) error {
	ref, err := catalog.ParseRef(args[0])
	if err != nil {
		return err
	}

	a, err := buildApp(cfgFile, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.engine.SetOverride(ref, overrideSetFlags.ttl); err != nil {
		return cli.NewCommandError("override set", err)
	}

	status, _ := a.engine.OverrideStatus()
	fmt.Printf("Override set: %s (expires %s)\n",
		ref, status.ExpiresAt().Format(time.RFC3339))
	return nil
}

func runOverrideClear(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile, false)
	if err != nil {
		return err
	}
	defer a.Close()

	a.engine.ClearOverride()
	fmt.Println("Override cleared")
	return nil
}

// overrideStatusOutput is the --output json shape.
type overrideStatusOutput struct {
	Active              bool   `json:"active"`
	Model               string `json:"model,omitempty"`
	SpecifiedAt         string `json:"specified_at,omitempty"`
	ExpiresAt           string `json:"expires_at,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures,omitempty"`
}

func runOverrideStatus(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile, false)
	if err != nil {
		return err
	}
	defer a.Close()

	status, active := a.engine.OverrideStatus()

	if cli.OutputFormat(overrideStatusFlags.format) == cli.FormatJSON {
		out := overrideStatusOutput{Active: active}
		if active {
			out.Model = status.Model.String()
			out.SpecifiedAt = status.SpecifiedAt.Format(time.RFC3339)
			out.ExpiresAt = status.ExpiresAt().Format(time.RFC3339)
			out.ConsecutiveFailures = status.ConsecutiveFailures
		}
		formatter := &cli.JSONFormatter{Indent: true}
		return formatter.FormatTo(os.Stdout, out)
	}

	if !active {
		fmt.Println("No active override")
		return nil
	}

	fmt.Printf("Model:                %s\n", status.Model)
	fmt.Printf("Set at:               %s\n", status.SpecifiedAt.Format(time.RFC3339))
	fmt.Printf("Expires at:           %s\n", status.ExpiresAt().Format(time.RFC3339))
	fmt.Printf("Consecutive failures: %d\n", status.ConsecutiveFailures)
	return nil
}
