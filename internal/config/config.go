// Package config holds the runtime configuration: file-based defaults
// from YAML with PATROL_* environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envPrefix namespaces environment overrides (PATROL_DATABASE_PATH, ...).
const envPrefix = "PATROL"

// Config is the full runtime configuration.
type Config struct {
	// DatabasePath locates the SQLite pattern store.
	DatabasePath string `yaml:"database_path" envconfig:"DATABASE_PATH"`

	// ToolTimeout is the hard per-invocation subprocess timeout.
	ToolTimeout time.Duration `yaml:"tool_timeout" envconfig:"TOOL_TIMEOUT"`

	// ToolCostDiscount estimates the tool path's cost as a fraction of
	// the generic path average. Empirical placeholder pending real tool
	// telemetry.
	ToolCostDiscount float64 `yaml:"tool_cost_discount" envconfig:"TOOL_COST_DISCOUNT"`

	// MinMatchConfidence gates routing eligibility.
	MinMatchConfidence float64 `yaml:"min_match_confidence" envconfig:"MIN_MATCH_CONFIDENCE"`

	// MaxToolOutputBytes bounds captured tool output.
	MaxToolOutputBytes int64 `yaml:"max_tool_output_bytes" envconfig:"MAX_TOOL_OUTPUT_BYTES"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" envconfig:"DEBUG"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		DatabasePath:       ".patrol/patterns.db",
		ToolTimeout:        600 * time.Second,
		ToolCostDiscount:   0.05,
		MinMatchConfidence: 70,
		MaxToolOutputBytes: 1 << 20,
	}
}

// Load builds the configuration: defaults, then the YAML file at path
// (skipped when path is empty or the file does not exist), then
// PATROL_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.ToolCostDiscount <= 0 || c.ToolCostDiscount >= 1 {
		return fmt.Errorf("tool_cost_discount must be in (0, 1), got %g", c.ToolCostDiscount)
	}
	if c.MinMatchConfidence < 0 || c.MinMatchConfidence > 100 {
		return fmt.Errorf("min_match_confidence must be in [0, 100], got %g", c.MinMatchConfidence)
	}
	if c.ToolTimeout <= 0 {
		return fmt.Errorf("tool_timeout must be positive, got %s", c.ToolTimeout)
	}
	return nil
}
