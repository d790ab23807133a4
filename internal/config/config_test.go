package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[engine]
tick_rate = "50ms"
headless = true
max_ticks = 10

[console]
log_size = 4

[database]
enabled = true
`), "inline")
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, cfg.Engine.TickRate)
	assert.True(t, cfg.Engine.Headless)
	assert.Equal(t, uint64(10), cfg.Engine.MaxTicks)
	assert.Equal(t, 4, cfg.Console.LogSize)
	assert.True(t, cfg.Database.Enabled)

	// Untouched sections keep their defaults.
	assert.Equal(t, Defaults().Window, cfg.Window)
	assert.Equal(t, Defaults().Database.DSN, cfg.Database.DSN)
}

func TestParseRejectsBadValues(t *testing.T) {
	_, err := Parse([]byte("[engine]\ntick_rate = \"0s\"\n"), "zero")
	require.Error(t, err)
	_, err = Parse([]byte("[console]\nlog_size = 0\n"), "console")
	require.Error(t, err)
	_, err = Parse([]byte("not toml ["), "broken")
	require.ErrorContains(t, err, "parse config broken")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tickworld.toml")
	require.NoError(t, os.WriteFile(path, []byte("[window]\ntitle = \"demo\"\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Window.Title)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
