package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearModkitEnv pins the MODKIT_* variables to empty so ambient process
// environment cannot leak into a test.
func clearModkitEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MODKIT_ENV", "")
	t.Setenv("MODKIT_LOG_LEVEL", "")
	t.Setenv("MODKIT_LOG_FORMAT", "")
}

func TestParseHelpExitsCleanly(t *testing.T) {
	clearModkitEnv(t)
	var out bytes.Buffer

	opts, shouldExit, err := Parse([]string{"-h"}, &out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, opts)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseNoPathPrintsUsage(t *testing.T) {
	clearModkitEnv(t)
	t.Chdir(t.TempDir())
	var out bytes.Buffer

	opts, shouldExit, err := Parse([]string{}, &out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, opts)
	assert.Contains(t, out.String(), "APP_PATH")
}

func TestParsePositionalPathAndDefaults(t *testing.T) {
	clearModkitEnv(t)
	t.Chdir(t.TempDir())
	var out bytes.Buffer

	opts, shouldExit, err := Parse([]string{"app.hcl"}, &out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, "app.hcl", opts.App.AppPath)
	assert.Equal(t, "text", opts.App.LogFormat)
	assert.Equal(t, "info", opts.App.LogLevel)
	assert.Equal(t, 0, opts.App.HealthcheckPort)
	assert.False(t, opts.App.Once)
	assert.False(t, opts.Check)
	assert.False(t, opts.ListModules)
}

func TestParseFlagForms(t *testing.T) {
	clearModkitEnv(t)
	t.Chdir(t.TempDir())
	var out bytes.Buffer

	opts, shouldExit, err := Parse([]string{
		"-a", "short.hcl",
		"-modules-path", "modules",
		"-log-format", "json",
		"-log-level", "DEBUG",
		"-healthcheck-port", "8090",
		"-once",
		"-check",
		"-list-modules",
	}, &out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, "short.hcl", opts.App.AppPath)
	assert.Equal(t, "modules", opts.App.ModulesPath)
	assert.Equal(t, "json", opts.App.LogFormat)
	assert.Equal(t, "debug", opts.App.LogLevel)
	assert.Equal(t, 8090, opts.App.HealthcheckPort)
	assert.True(t, opts.App.Once)
	assert.True(t, opts.Check)
	assert.True(t, opts.ListModules)
}

func TestParseRejectsBadValues(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{name: "bad log format", args: []string{"-log-format", "yaml", "app.hcl"}},
		{name: "bad log level", args: []string{"-log-level", "loud", "app.hcl"}},
		{name: "unknown flag", args: []string{"-frobnicate"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			clearModkitEnv(t)
			t.Chdir(t.TempDir())
			var out bytes.Buffer

			_, _, err := Parse(tc.args, &out)

			require.Error(t, err)
			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}

func TestParseRCFileSuppliesDefaults(t *testing.T) {
	clearModkitEnv(t)
	dir := t.TempDir()
	rcPath := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(rcPath, []byte(`
app = "from-rc.hcl"
modules_path = "rc-modules"
log_level = "warn"
healthcheck_port = 9000
`), 0o644))
	var out bytes.Buffer

	opts, shouldExit, err := Parse([]string{"-rc", rcPath}, &out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, "from-rc.hcl", opts.App.AppPath)
	assert.Equal(t, "rc-modules", opts.App.ModulesPath)
	assert.Equal(t, "warn", opts.App.LogLevel)
	assert.Equal(t, 9000, opts.App.HealthcheckPort)
}

func TestParseFlagsOverrideRCFile(t *testing.T) {
	clearModkitEnv(t)
	dir := t.TempDir()
	rcPath := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(rcPath, []byte(`
app = "from-rc.hcl"
log_level = "warn"
healthcheck_port = 9000
`), 0o644))
	var out bytes.Buffer

	opts, _, err := Parse([]string{
		"-rc", rcPath,
		"-app", "from-flag.hcl",
		"-log-level", "error",
		"-healthcheck-port", "0",
	}, &out)

	require.NoError(t, err)
	assert.Equal(t, "from-flag.hcl", opts.App.AppPath)
	assert.Equal(t, "error", opts.App.LogLevel)
	assert.Equal(t, 0, opts.App.HealthcheckPort, "an explicit flag wins even at its zero value")
}

func TestParseEnvBeatsRCButLosesToFlags(t *testing.T) {
	clearModkitEnv(t)
	t.Setenv("MODKIT_LOG_LEVEL", "debug")
	t.Setenv("MODKIT_ENV", "development")
	dir := t.TempDir()
	rcPath := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(rcPath, []byte(`log_level = "warn"`), 0o644))
	var out bytes.Buffer

	opts, _, err := Parse([]string{"-rc", rcPath, "app.hcl"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "debug", opts.App.LogLevel)
	assert.Equal(t, "development", opts.App.EnvOverride)

	opts, _, err = Parse([]string{"-rc", rcPath, "-log-level", "error", "app.hcl"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "error", opts.App.LogLevel)
}

func TestParseFindsDefaultRCInWorkingDirectory(t *testing.T) {
	clearModkitEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "modkit.toml"), []byte(`app = "implicit.hcl"`), 0o644))
	t.Chdir(dir)
	var out bytes.Buffer

	opts, shouldExit, err := Parse([]string{}, &out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	assert.Equal(t, "implicit.hcl", opts.App.AppPath)
}

func TestParseBadRCFileFailsWithUsageError(t *testing.T) {
	clearModkitEnv(t)
	dir := t.TempDir()
	rcPath := filepath.Join(dir, "custom.toml")
	require.NoError(t, os.WriteFile(rcPath, []byte(`log_level = "silly"`), 0o644))
	var out bytes.Buffer

	_, _, err := Parse([]string{"-rc", rcPath, "app.hcl"}, &out)

	require.Error(t, err)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 2, exitErr.Code)
}
