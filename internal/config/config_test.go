package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Database.RedbPath)
	assert.Equal(t, "human", cfg.CLI.DefaultFormat)
	assert.True(t, cfg.CLI.ProgressBars)
	assert.Equal(t, 1000, cfg.Storage.MaxEpisodesCache)
}

func TestLoadAppliesOptionsLast(t *testing.T) {
	cfg, err := Load("", Cloud, func(c *Config) { c.CLI.DefaultFormat = "human" })
	require.NoError(t, err)
	// Cloud sets json, but the explicit option after it wins.
	assert.Equal(t, "human", cfg.CLI.DefaultFormat)
	assert.False(t, cfg.CLI.ProgressBars)
}

func TestTursoEnvOverridesTakePrecedence(t *testing.T) {
	t.Setenv("TURSO_URL", "libsql://example.turso.io")
	t.Setenv("TURSO_TOKEN", "secret-token")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "libsql://example.turso.io", cfg.Database.TursoURL)
	assert.Equal(t, "secret-token", cfg.Database.TursoToken)
}

func TestCIEnvSelectsMemoryPreset(t *testing.T) {
	t.Setenv("CI", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Database.RedbPath)
	assert.False(t, cfg.CLI.ProgressBars)
}

func TestCloudPlatformEnvSelectsCloudPreset(t *testing.T) {
	t.Setenv("RENDER", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.CLI.DefaultFormat)
	assert.False(t, cfg.CLI.ProgressBars)
}

func TestCIPrecedesCloudPlatformDetection(t *testing.T) {
	t.Setenv("CI", "true")
	t.Setenv("RENDER", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.Database.RedbPath)
}

func TestLocalPresetSetsFileBackedDatabase(t *testing.T) {
	cfg, err := Load("", Local)
	require.NoError(t, err)
	assert.Equal(t, "memex.db", cfg.Database.RedbPath)
	assert.Equal(t, "text", cfg.Logging.Format)
}
