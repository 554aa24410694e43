package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ".patrol/patterns.db", cfg.DatabasePath)
	assert.Equal(t, 600*time.Second, cfg.ToolTimeout)
	assert.Equal(t, 0.05, cfg.ToolCostDiscount)
	assert.Equal(t, 70.0, cfg.MinMatchConfidence)
	assert.EqualValues(t, 1<<20, cfg.MaxToolOutputBytes)
	assert.False(t, cfg.Debug)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patrol.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database_path: /var/lib/patrol/patterns.db
tool_timeout: 30s
min_match_confidence: 80
debug: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/patrol/patterns.db", cfg.DatabasePath)
	assert.Equal(t, 30*time.Second, cfg.ToolTimeout)
	assert.Equal(t, 80.0, cfg.MinMatchConfidence)
	assert.True(t, cfg.Debug)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.05, cfg.ToolCostDiscount)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database_path: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patrol.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database_path: from-file.db\n"), 0o644))

	t.Setenv("PATROL_DATABASE_PATH", "from-env.db")
	t.Setenv("PATROL_TOOL_TIMEOUT", "45s")
	t.Setenv("PATROL_DEBUG", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env.db", cfg.DatabasePath)
	assert.Equal(t, 45*time.Second, cfg.ToolTimeout)
	assert.True(t, cfg.Debug)
}

func TestValidation(t *testing.T) {
	t.Setenv("PATROL_TOOL_COST_DISCOUNT", "1.5")
	_, err := Load("")
	assert.ErrorContains(t, err, "tool_cost_discount")
}

func TestValidationConfidenceRange(t *testing.T) {
	t.Setenv("PATROL_MIN_MATCH_CONFIDENCE", "150")
	_, err := Load("")
	assert.ErrorContains(t, err, "min_match_confidence")
}
