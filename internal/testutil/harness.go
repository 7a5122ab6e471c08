// Package testutil provides the shared harness for integration tests: it
// writes HCL and Lua fixtures to a temp directory, boots an App against a
// captured log sink, and drives one full run-once lifecycle.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/modkit/internal/app"
	"github.com/vk/modkit/internal/hcl"
	"github.com/vk/modkit/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
}

// RunHarness writes the fixture files, boots the app and runs one full
// lifecycle in once mode. File keys are paths relative to the fixture root;
// keys under "app/" form the application config, keys under "mods/" the
// conventional module directory. Startup panics and run errors both land in
// the result instead of failing the test, so error-path tests can assert on
// them.
func RunHarness(t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()
	return RunHarnessWithContext(context.Background(), t, files, modules...)
}

// RunHarnessWithContext is RunHarness with a caller-supplied context, for
// tests that exercise cancellation.
func RunHarnessWithContext(ctx context.Context, t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()

	appConfig, logBuffer := writeFixtures(t, files)

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.NewApp(logBuffer, appConfig, hcl.NewLoader(), modules...)
	}()

	if panicErr != nil {
		return &HarnessResult{
			LogOutput: logBuffer.String(),
			Err:       fmt.Errorf("application startup panicked | %v", panicErr),
		}
	}

	runErr := testApp.Run(ctx, appConfig)

	if os.Getenv("MODKIT_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
	}
}

// BootHarness writes the fixtures and constructs the app without running the
// lifecycle, for tests that only exercise loading and validation.
func BootHarness(t *testing.T, files map[string]string, modules ...registry.Module) *HarnessResult {
	t.Helper()

	appConfig, logBuffer := writeFixtures(t, files)

	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.NewApp(logBuffer, appConfig, hcl.NewLoader(), modules...)
	}()

	result := &HarnessResult{LogOutput: logBuffer.String(), App: testApp}
	if panicErr != nil {
		result.App = nil
		result.Err = fmt.Errorf("application startup panicked | %v", panicErr)
	}
	return result
}

func writeFixtures(t *testing.T, files map[string]string) (*app.Config, *SafeBuffer) {
	t.Helper()

	tmpDir := t.TempDir()
	appDir := filepath.Join(tmpDir, "app")
	modsDir := filepath.Join(tmpDir, "mods")
	require.NoError(t, os.Mkdir(appDir, 0o755))
	require.NoError(t, os.Mkdir(modsDir, 0o755))

	hasMods := false
	for name, content := range files {
		path := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		if strings.HasPrefix(name, "mods/") {
			hasMods = true
		}
	}

	appConfig, err := app.NewConfig(app.Config{
		AppPath:   appDir,
		LogLevel:  "debug",
		LogFormat: "text",
		Once:      true,
	})
	require.NoError(t, err)
	if hasMods {
		appConfig.ModulesPath = modsDir
	}

	return appConfig, &SafeBuffer{}
}
