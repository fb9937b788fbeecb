// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.InDelta(t, 100, cfg.Estimation.Calories, 1e-9)
	assert.Equal(t, "serving", cfg.Estimation.Unit)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
db_path = "/data/ledger.db"

[llm]
model = "some/other-model"

[estimation]
calories = 250.0
unit = "plate"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/ledger.db", cfg.DBPath)
	assert.Equal(t, "some/other-model", cfg.LLM.Model)
	assert.InDelta(t, 250, cfg.Estimation.Calories, 1e-9)
	assert.Equal(t, "plate", cfg.Estimation.Unit)
	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Lookup.BaseURL, cfg.Lookup.BaseURL)
	assert.InDelta(t, Default().Estimation.ProteinG, cfg.Estimation.ProteinG, 1e-9)
}

func TestLoadEnvOverridesKeys(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "env-llm-key")
	t.Setenv("FDC_API_KEY", "env-fdc-key")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "env-llm-key", cfg.LLM.APIKey)
	assert.Equal(t, "env-fdc-key", cfg.Lookup.APIKey)
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("db_path = ["), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
