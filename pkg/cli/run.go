package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/wisp-engine/wisp/internal/engine"
	"github.com/wisp-engine/wisp/pkg/config"
	"github.com/wisp-engine/wisp/pkg/logger"
	"github.com/wisp-engine/wisp/pkg/types"
)

func newRunCmd() *cobra.Command {
	var maxFrames int
	var scenePath string
	var workers int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine frame loop",
		Long: `Start the Wisp engine. Each frame it rebuilds the broad phase, dispatches
collision slices to the worker pool, merges contacts back on the driving
thread, and integrates body motion.

The run ends when the configured frame limit is reached or on interrupt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(maxFrames, scenePath, workers)
		},
	}

	cmd.Flags().IntVar(&maxFrames, "frames", 0, "stop after this many frames (0 = run until interrupted)")
	cmd.Flags().StringVar(&scenePath, "scene", "", "scene file to load (overrides config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "worker pool size (overrides config)")

	return cmd
}

func runEngine(maxFrames int, scenePath string, workers int) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	configPath := getConfigPath()
	cfg, err := config.NewManager().LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyRunOverrides(cfg, maxFrames, scenePath, workers)

	logFile := ""
	logLevel := verbosity
	if cfg.Logging != nil {
		logFile = cfg.Logging.File
		if verbosity == "info" && cfg.Logging.Level != "" {
			logLevel = string(cfg.Logging.Level)
		}
	}
	log := logger.CreateLogger(logFile, logLevel)

	factory := engine.NewDependencyFactory(projectRoot, log, cfg)
	deps := factory.CreateDefaults()

	e := engine.New(cfg, projectRoot, log, deps, configPath)

	printInfo(fmt.Sprintf("Starting Wisp v%s", version))
	printInfo(fmt.Sprintf("%d workers, %dms frame budget",
		cfg.Scheduling.Workers, cfg.Frame.BudgetMillis))

	if err := e.StartWithContext(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	// Watch the config file; frame budget and worker count apply between
	// frames, everything else needs a fresh run.
	reload := config.NewReloadManager(configPath, log)
	reload.AddCallback(func(newCfg *types.WispConfig, err error) {
		if err != nil {
			printWarning(fmt.Sprintf("Config reload failed: %v", err))
			return
		}
		if applied := e.ApplyConfig(newCfg); len(applied) > 0 {
			printInfo(fmt.Sprintf("Configuration reloaded: %s", strings.Join(applied, ", ")))
			return
		}
		printInfo("Configuration changed; restart the run to apply it")
	})
	if err := reload.StartWatching(); err != nil {
		log.Debug("Config watching unavailable", logger.WithField("error", err))
	}
	defer reload.StopWatching()

	// Run until the frame loop ends on its own or a signal arrives.
	waitErr := make(chan error, 1)
	go func() { waitErr <- e.Wait() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigChan)

	select {
	case err := <-waitErr:
		if err != nil {
			return fmt.Errorf("engine run failed: %w", err)
		}
	case sig := <-sigChan:
		printInfo(fmt.Sprintf("Received signal: %s", sig))
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		printInfo("Shutting down gracefully...")
		e.StopWithContext(shutdownCtx)
		<-waitErr
	}

	if err := e.Cleanup(); err != nil {
		printWarning(fmt.Sprintf("Cleanup error: %v", err))
	}

	stats := e.Stats()
	printSuccess(fmt.Sprintf("Run finished: %d frames, %d contacts, %d stalls",
		stats.Frames, stats.Contacts, stats.Stalls))
	return nil
}

func applyRunOverrides(cfg *types.WispConfig, maxFrames int, scenePath string, workers int) {
	if maxFrames > 0 {
		cfg.Frame.MaxFrames = maxFrames
	}
	if scenePath != "" {
		cfg.ScenePath = scenePath
	}
	if workers > 0 {
		cfg.Scheduling.Workers = workers
	}
}
