// patrol observes completed automated-workflow records, detects
// recurring operation patterns, and routes matching input to cheap
// deterministic tools instead of the generic execution path.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"patrol/internal/config"
	"patrol/internal/detector"
	"patrol/internal/logging"
	"patrol/internal/matcher"
	"patrol/internal/pipeline"
	"patrol/internal/router"
	"patrol/internal/signature"
	"patrol/internal/store"
)

var (
	// Global flags
	configPath string
	dbPath     string
	verbose    bool

	// Logger, initialized in PersistentPreRunE
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "patrol",
	Short: "patrol - operation pattern detection and tool routing",
	Long: `patrol watches completed automated-workflow records, classifies
recurring operation types, tracks how often and how expensively each
occurs, and routes future occurrences of trusted patterns to cheap
deterministic tools instead of the generic execution path.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err = logging.New(verbose || cfg.Debug)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
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
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "override database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadConfig resolves the effective configuration: file + env, then
// command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	return cfg, nil
}

// openStore builds the store from the effective configuration.
func openStore(cfg config.Config) (*store.Store, error) {
	return store.Open(cfg.DatabasePath, store.Options{
		ToolCostDiscount: cfg.ToolCostDiscount,
		Logger:           logger.Named("store"),
	})
}

// buildProcessor wires the detection flow.
func buildProcessor(st *store.Store) *pipeline.Processor {
	gen := signature.NewGenerator(logger.Named("signature"))
	det := detector.NewDetector(gen, logger.Named("detector"))
	return pipeline.NewProcessor(st, det, logger.Named("pipeline"))
}

// buildRouter wires the routing flow.
func buildRouter(st *store.Store, cfg config.Config) *router.Router {
	m := matcher.NewMatcher(st, logger.Named("matcher"))
	return router.NewRouter(st, m, router.Options{
		MinConfidence: cfg.MinMatchConfidence,
		ToolTimeout:   cfg.ToolTimeout,
		Invoker:       router.NewSubprocessInvoker(cfg.MaxToolOutputBytes, logger.Named("invoker")),
		Logger:        logger.Named("router"),
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
