package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"resultexport/internal/config"
)

var (
	// Global flags
	verbose       bool
	configPath    string
	deliveriesDir string
	resultsDB     string
	exportDir     string

	// Shared run state, set up by PersistentPreRunE
	cfg    *config.ExportConfig
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "resultexport",
	Short: "Flatten assessment results into CSV artifacts",
	Long: `resultexport turns recorded test executions into flat CSV artifacts.

It derives a single column schema across the selected deliveries (fixed
columns, one column per declared item variable, per-choice expansions for
pairwise interactions) and then streams one row per execution, filling
unanswered and non-applicable cells with configurable missing-data codes.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if configPath != "" {
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
		} else {
			cfg = config.DefaultConfig()
		}
		if deliveriesDir != "" {
			cfg.DeliveriesDir = deliveriesDir
		}
		if resultsDB != "" {
			cfg.ResultsDB = resultsDB
		}
		if exportDir != "" {
			cfg.ExportDir = exportDir
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: built-in defaults)")
	rootCmd.PersistentFlags().StringVar(&deliveriesDir, "deliveries-dir", "", "Deliveries root directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&resultsDB, "results-db", "", "SQLite result store path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&exportDir, "export-dir", "", "Export artifact base directory (overrides config)")

	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(loginsCmd)
	rootCmd.AddCommand(deliveriesCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
