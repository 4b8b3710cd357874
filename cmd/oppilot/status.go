package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/oppilot/oppilot/pkg/cli"
)

var statusFlags struct {
	format string
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show credential health and dispatch history",
	Long: `Show the persisted per-credential health records, the active
override, and journal aggregates.

Examples:
  oppilot status
  oppilot status --output json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusFlags.format, "output", "o", "text", "output format: text, json")
}

// credentialStatus is one health record in the status output.
type credentialStatus struct {
	Key                 string  `json:"key"`
	SuccessCount        int     `json:"success_count"`
	FailureCount        int     `json:"failure_count"`
	ConsecutiveFailures int     `json:"consecutive_failures"`
	AvgLatencyMs        float64 `json:"avg_latency_ms"`
	CooldownUntil       string  `json:"cooldown_until,omitempty"`
}

type statusOutput struct {
	Override    *overrideStatusOutput `json:"override,omitempty"`
	Credentials []credentialStatus    `json:"credentials"`
	Journal     *journalStatusOutput  `json:"journal,omitempty"`
}

type journalStatusOutput struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	ByModel   map[string]int `json:"by_model"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile, true)
	if err != nil {
		return err
	}
	defer a.Close()

	out := statusOutput{}
	now := time.Now()

	if status, active := a.engine.OverrideStatus(); active {
		out.Override = &overrideStatusOutput{
			Active:              true,
			Model:               status.Model.String(),
			SpecifiedAt:         status.SpecifiedAt.Format(time.RFC3339),
			ExpiresAt:           status.ExpiresAt().Format(time.RFC3339),
			ConsecutiveFailures: status.ConsecutiveFailures,
		}
	}

	snapshot := a.engine.HealthSnapshot()
	keys := make([]string, 0, len(snapshot))
	for key := range snapshot {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		rec := snapshot[key]
		cs := credentialStatus{
			Key:                 key,
			SuccessCount:        rec.SuccessCount,
			FailureCount:        rec.FailureCount,
			ConsecutiveFailures: rec.ConsecutiveFailures,
			AvgLatencyMs:        rec.AvgLatencyMs,
		}
		if rec.CooldownUntil.After(now) {
			cs.CooldownUntil = rec.CooldownUntil.Format(time.RFC3339)
		}
		out.Credentials = append(out.Credentials, cs)
	}

	if a.journal != nil {
		stats, err := a.journal.Stats(cmd.Context())
		if err != nil {
			a.logger.Warn("journal stats unavailable", "error", err)
		} else {
			out.Journal = &journalStatusOutput{
				Total:     stats.Total,
				Succeeded: stats.Succeeded,
				ByModel:   stats.ByModel,
			}
		}
	}

	if cli.OutputFormat(statusFlags.format) == cli.FormatJSON {
		formatter := &cli.JSONFormatter{Indent: true}
		return formatter.FormatTo(os.Stdout, out)
	}

	printStatusText(out)
	return nil
}

func printStatusText(out statusOutput) {
	if out.Override != nil {
		fmt.Printf("Override: %s (expires %s, failures %d)\n",
			out.Override.Model, out.Override.ExpiresAt, out.Override.ConsecutiveFailures)
	} else {
		fmt.Println("Override: none")
	}

	fmt.Println()
	if len(out.Credentials) == 0 {
		fmt.Println("No credential health recorded yet")
	} else {
		fmt.Printf("%-40s %8s %8s %10s %s\n", "CREDENTIAL", "OK", "FAIL", "AVG MS", "COOLDOWN")
		for _, cs := range out.Credentials {
			cooldown := "-"
			if cs.CooldownUntil != "" {
				cooldown = cs.CooldownUntil
			}
			fmt.Printf("%-40s %8d %8d %10.0f %s\n",
				cs.Key, cs.SuccessCount, cs.FailureCount, cs.AvgLatencyMs, cooldown)
		}
	}

	if out.Journal != nil {
		fmt.Println()
		fmt.Printf("Dispatches: %d total, %d succeeded\n", out.Journal.Total, out.Journal.Succeeded)
		models := make([]string, 0, len(out.Journal.ByModel))
		for model := range out.Journal.ByModel {
			models = append(models, model)
		}
		sort.Strings(models)
		for _, model := range models {
			fmt.Printf("  %-38s %d\n", model, out.Journal.ByModel[model])
		}
	}
}
