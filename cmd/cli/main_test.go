package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun_PanicRecovery(t *testing.T) {
	// --- Arrange ---
	// An HCL file with a syntax error is guaranteed to panic during the
	// loading phase inside app.NewApp().
	invalidHCL := `
		app {
			name = "broken"
		// Missing closing brace here
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "app.hcl")
	err := os.WriteFile(filePath, []byte(invalidHCL), 0600)
	require.NoError(t, err, "failed to set up test file")

	t.Chdir(tempDir)
	args := []string{filePath}
	out := &bytes.Buffer{}

	// --- Act ---
	// The run function should recover the panic and return it as an error.
	runErr := run(out, args)

	// --- Assert ---
	require.Error(t, runErr, "run() should have returned an error after recovering from a panic")

	errStr := runErr.Error()
	require.True(t, strings.Contains(errStr, "application startup panicked"), "The error message should indicate that a panic was recovered.")
	require.True(t, strings.Contains(errStr, "failed to parse"), "The error message should contain the underlying reason for the panic.")
}

func TestRun_ShouldExit(t *testing.T) {
	// --- Arrange ---
	// The "-h" (help) flag should cause cli.Parse to return `shouldExit=true`.
	args := []string{"-h"}
	out := &bytes.Buffer{}

	// --- Act ---
	// The run function should see `shouldExit=true` and return a nil error.
	err := run(out, args)

	// --- Assert ---
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	// --- Arrange ---
	// Providing an unknown flag will cause cli.Parse to return an error.
	args := []string{"--this-is-not-a-valid-flag"}
	out := &bytes.Buffer{}

	// --- Act ---
	// The run function should propagate the error from cli.Parse.
	err := run(out, args)

	// --- Assert ---
	require.Error(t, err, "run() should return an error when argument parsing fails")
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

func TestRun_CheckMode(t *testing.T) {
	// --- Arrange ---
	// A minimal valid app file referencing only built-in modules.
	appHCL := `
		app {
			name = "demo"
		}

		module "banner" {}
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "app.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(appHCL), 0600))

	t.Chdir(tempDir)
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, []string{"-check", filePath})

	// --- Assert ---
	require.NoError(t, err)
	require.Contains(t, out.String(), "configuration OK")
}

func TestRun_ListModulesMode(t *testing.T) {
	// --- Arrange ---
	appHCL := `
		app {
			name = "demo"
		}

		module "banner" {}
		module "env_vars" {}
	`
	tempDir := t.TempDir()
	filePath := filepath.Join(tempDir, "app.hcl")
	require.NoError(t, os.WriteFile(filePath, []byte(appHCL), 0600))

	t.Chdir(tempDir)
	out := &bytes.Buffer{}

	// --- Act ---
	err := run(out, []string{"-list-modules", filePath})

	// --- Assert ---
	require.NoError(t, err)
	require.Contains(t, out.String(), "banner")
	require.Contains(t, out.String(), "env_vars")
}
