package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/oppilot/oppilot/pkg/cli"
	"github.com/oppilot/oppilot/pkg/credentials"
	"github.com/oppilot/oppilot/pkg/server"
	"github.com/oppilot/oppilot/pkg/supervisor"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the oppilot daemon",
	Long: `Start the HTTP daemon: the completions endpoint, status and health
endpoints, scheduled credential warm probes, and journal pruning.

Examples:
  # Start with default config
  oppilot run

  # Start with custom config
  oppilot run --config /etc/oppilot/config.yaml

  # Override listen address
  oppilot run --listen 0.0.0.0:8787

  # Validate config without starting
  oppilot run --dry-run`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the daemon")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	a, err := buildApp(cfgFile, true)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	ctx := cli.SetupSignalHandler()

	// Live credential reload: rotate keys without restarting the daemon.
	if cfg.State.CredentialFile != "" {
		watcher, err := credentials.NewWatcher(cfg.State.CredentialFile, a.pool, a.logger)
		if err != nil {
			a.logger.Warn("credential watcher unavailable", "error", err)
		} else {
			go func() {
				if err := watcher.Watch(ctx); err != nil {
					a.logger.Warn("credential watcher stopped", "error", err)
				}
			}()
		}
	}

	supDeps := supervisor.Deps{
		Catalog:      a.catalog,
		Pool:         a.pool,
		Health:       a.health,
		Invokers:     a.invokers,
		ProbeTimeout: cfg.Dispatch.PreflightTimeout,
		Logger:       a.logger,
	}
	if a.journal != nil {
		supDeps.Journal = a.journal
	}
	sup := supervisor.New(cfg.Supervisor, supDeps)
	if err := sup.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	defer sup.Stop()

	var metricsHandler http.Handler
	if a.metrics != nil {
		metricsHandler = a.metrics.Handler()
	}

	srvOpts := server.Options{
		Metrics:     metricsHandler,
		MetricsPath: cfg.Telemetry.Metrics.Path,
		Logger:      a.logger,
	}
	if a.journal != nil {
		srvOpts.Journal = a.journal
	}
	srv := server.New(cfg.Server, a.engine, srvOpts)

	fmt.Printf("✓ Listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Completions: http://%s/v1/chat/completions\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Status:      http://%s/v1/status\n", cfg.Server.ListenAddress)
	if metricsHandler != nil {
		fmt.Printf("✓ Metrics:     http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	fmt.Println("✓ Daemon stopped")
	return nil
}
