package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	root := t.TempDir()

	cfg, err := Load(root)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Compile.TokenBudget, cfg.Compile.TokenBudget)
	require.Contains(t, cfg.Index.Excludes, "node_modules")
}

func TestLoadReadsConfigFile(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".miow")
	require.NoError(t, os.MkdirAll(dir, 0755))

	content := `{
		"compile": {"tokenBudget": 4000, "selectedFilesSoft": true},
		"retry": {"maxAttempts": 5}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(content), 0644))

	cfg, err := Load(root)
	require.NoError(t, err)
	require.Equal(t, 4000, cfg.Compile.TokenBudget)
	require.True(t, cfg.Compile.SelectedFilesSoft)
	require.Equal(t, 5, cfg.Retry.MaxAttempts)
	// Untouched sections keep defaults.
	require.Equal(t, "text-embedding-3-small", cfg.Providers.Embedding.Model)
}

func TestLoadClampsInvalidValues(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".miow")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"compile": {"tokenBudget": -1}, "retry": {"maxAttempts": 0}}`), 0644))

	cfg, err := Load(root)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig().Compile.TokenBudget, cfg.Compile.TokenBudget)
	require.Equal(t, DefaultConfig().Retry.MaxAttempts, cfg.Retry.MaxAttempts)
}

func TestSaveRoundTrip(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Compile.TokenBudget = 1234

	require.NoError(t, Save(root, cfg))

	loaded, err := Load(root)
	require.NoError(t, err)
	require.Equal(t, 1234, loaded.Compile.TokenBudget)
}
