package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fieldnotes/springfield/internal/config"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })
}

func TestDefaultsApplyWithNoConfigFile(t *testing.T) {
	chdir(t, t.TempDir())
	require.NoError(t, config.Initialize())

	require.Equal(t, 7533, config.Port())
	require.Equal(t, "127.0.0.1", config.Host())
	require.Equal(t, "ralph", config.RalphBinary())
	require.Equal(t, 30, config.RalphMaxIterations())
	require.True(t, config.RalphAutoPushDefault())
}

func TestEnvOverridesDefault(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("PN_PORT", "9001")
	require.NoError(t, config.Initialize())

	require.Equal(t, 9001, config.Port())
}

func TestProjectConfigFileOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".pensa"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, ".pensa", "config.toml"),
		[]byte("port = 8100\nactor = \"configured-actor\"\n"),
		0o644,
	))

	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	chdir(t, sub)

	require.NoError(t, config.Initialize())
	require.Equal(t, 8100, config.Port())
	require.Equal(t, "configured-actor", config.DefaultActor())
}
