package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/oppilot/oppilot/pkg/classify"
	"github.com/oppilot/oppilot/pkg/cli"
	"github.com/oppilot/oppilot/pkg/dispatch"
)

var dispatchFlags struct {
	profile     string
	format      string
	maxTokens   int
	temperature float64
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch [task text]",
	Short: "Dispatch a task to the best-suited model",
	Long: `Classify the task text, resolve the target model, and invoke it with
automatic failover across the configured provider pools.

The task profile is normally inferred from the text. Use --profile to
force one (coding, research, writing, fast, throughput, chinese,
multimodal); a forced profile also cancels any active override.

Examples:
  # Let the classifier pick the profile
  oppilot dispatch "write a quicksort in rust"

  # Force the fast profile
  oppilot dispatch --profile fast "what time is it in UTC"

  # Machine-readable output with the attempt log
  oppilot dispatch --output json "summarize this paper"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDispatch,
}

func init() {
	rootCmd.AddCommand(dispatchCmd)

	dispatchCmd.Flags().StringVarP(&dispatchFlags.profile, "profile", "p", "", "force a task profile instead of classifying")
	dispatchCmd.Flags().StringVarP(&dispatchFlags.format, "output", "o", "text", "output format: text, json")
	dispatchCmd.Flags().IntVar(&dispatchFlags.maxTokens, "max-tokens", 0, "completion token limit (0 = provider default)")
	dispatchCmd.Flags().Float64Var(&dispatchFlags.temperature, "temperature", 0, "sampling temperature (0 = provider default)")
}

// dispatchOutput is the --output json shape.
type dispatchOutput struct {
	ID       string             `json:"id"`
	Model    string             `json:"model"`
	Reason   dispatch.Reason    `json:"reason"`
	Category string             `json:"category,omitempty"`
	Attempts []dispatch.Attempt `json:"attempts"`
	Content  string             `json:"content"`
	Latency  string             `json:"latency"`
}

func runDispatch(cmd *cobra.Command, args []string) error {
	req := &dispatch.Request{
		Task:        strings.Join(args, " "),
		MaxTokens:   dispatchFlags.maxTokens,
		Temperature: dispatchFlags.temperature,
	}

	if dispatchFlags.profile != "" {
		category := classify.Category(dispatchFlags.profile)
		if !category.IsValid() {
			return fmt.Errorf("unknown profile %q (valid: %s)",
				dispatchFlags.profile, joinCategories())
		}
		req.Category = category
	}

	a, err := buildApp(cfgFile, true)
	if err != nil {
		return err
	}
	defer a.Close()

	started := time.Now()
	decision, err := a.engine.Dispatch(cmd.Context(), req)
	if err != nil {
		return cli.NewCommandError("dispatch", err)
	}

	switch cli.OutputFormat(dispatchFlags.format) {
	case cli.FormatJSON:
		formatter := &cli.JSONFormatter{Indent: true}
		return formatter.FormatTo(os.Stdout, dispatchOutput{
			ID:       decision.ID,
			Model:    decision.Model.String(),
			Reason:   decision.Reason,
			Category: string(decision.Category),
			Attempts: decision.Attempts,
			Content:  decision.Response.Content,
			Latency:  time.Since(started).Round(time.Millisecond).String(),
		})
	case cli.FormatText, "":
		fmt.Println(decision.Response.Content)
		fmt.Fprintf(os.Stderr, "\n[%s via %s, %d attempt(s)]\n",
			decision.Reason, decision.Model, len(decision.Attempts))
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", dispatchFlags.format)
	}
}

func joinCategories() string {
	names := make([]string, 0, len(classify.Categories))
	for _, c := range classify.Categories {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}
