package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/modkit/internal/compat"
	"github.com/vk/modkit/internal/hooks"
	"github.com/vk/modkit/internal/kit"
	"github.com/zclconf/go-cty/cty"
)

// recordTo builds hook functions that append a label to a shared trace.
// Installs and hook chains run sequentially, so a plain slice is enough.
func recordTo(trace *[]string, label string) kit.HookFunc {
	return func(ctx context.Context, host kit.Host) error {
		*trace = append(*trace, label)
		return nil
	}
}

func setupTo(trace *[]string, label string) kit.SetupFunc {
	return func(ctx context.Context, host kit.Host, opts cty.Value) error {
		*trace = append(*trace, label)
		return nil
	}
}

func TestRunOnceLifecycleOrder(t *testing.T) {
	// --- Arrange ---
	var trace []string
	alpha := &definedModule{def: kit.Definition{
		Name:  "alpha",
		Setup: setupTo(&trace, "setup:alpha"),
		Hooks: []kit.HookBinding{
			{Event: hooks.EventModulesDone, Fn: recordTo(&trace, "alpha:modules:done")},
			{Event: hooks.EventAppReady, Fn: recordTo(&trace, "alpha:app:ready")},
			{Event: hooks.EventAppClose, Fn: recordTo(&trace, "alpha:app:close")},
		},
	}}
	beta := &definedModule{def: kit.Definition{
		Name:  "beta",
		Setup: setupTo(&trace, "setup:beta"),
		Hooks: []kit.HookBinding{
			{Event: hooks.EventModulesDone, Fn: recordTo(&trace, "beta:modules:done")},
		},
	}}
	appConfig := writeAppFile(t, `
		app {
			name    = "demo"
			version = "1.0.0"
		}

		module "alpha" {}
		module "beta" {}
	`)
	testApp, _ := SetupAppTest(t, appConfig, alpha, beta)

	// --- Act ---
	err := testApp.Run(context.Background(), appConfig)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{
		"setup:alpha",
		"setup:beta",
		"alpha:modules:done",
		"beta:modules:done",
		"alpha:app:ready",
		"alpha:app:close",
	}, trace)

	installed := testApp.Host().InstalledModules()
	require.Len(t, installed, 2)
	assert.Equal(t, "alpha", installed[0].Name)
	assert.Equal(t, "beta", installed[1].Name)
}

func TestRunOnceOptionsPrecedence(t *testing.T) {
	// --- Arrange ---
	var seen cty.Value
	defaultGreeting := cty.StringVal("hi")
	defaultColor := cty.StringVal("blue")
	greeter := &definedModule{def: kit.Definition{
		Name:      "greeter",
		ConfigKey: "greet",
		Options: []kit.OptionSpec{
			{Name: "greeting", Type: cty.String, Default: &defaultGreeting},
			{Name: "target", Type: cty.String, Required: true},
			{Name: "color", Type: cty.String, Default: &defaultColor},
		},
		Setup: func(ctx context.Context, host kit.Host, opts cty.Value) error {
			seen = opts
			return nil
		},
	}}
	appConfig := writeAppFile(t, `
		app {
			name = "demo"
		}

		settings "greet" {
			greeting = "hello"
			target   = "world"
		}

		module "greeter" {
			options {
				target = "modkit"
			}
		}
	`)
	testApp, _ := SetupAppTest(t, appConfig, greeter)

	// --- Act ---
	err := testApp.Run(context.Background(), appConfig)

	// --- Assert ---
	require.NoError(t, err)
	want := cty.ObjectVal(map[string]cty.Value{
		"greeting": cty.StringVal("hello"),  // settings override the default
		"target":   cty.StringVal("modkit"), // inline options override settings
		"color":    cty.StringVal("blue"),   // untouched default survives
	})
	assert.True(t, seen.RawEquals(want), "got %#v", seen)
}

func TestRunRepeatedReferenceInstallsOnce(t *testing.T) {
	// --- Arrange ---
	setups := 0
	dup := &definedModule{def: kit.Definition{
		Name: "dup",
		Setup: func(ctx context.Context, host kit.Host, opts cty.Value) error {
			setups++
			return nil
		},
	}}
	appConfig := writeAppFile(t, `
		app {
			name = "demo"
		}

		module "dup" {}
		module "dup" {}
	`)
	testApp, logBuffer := SetupAppTest(t, appConfig, dup)

	// --- Act ---
	err := testApp.Run(context.Background(), appConfig)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 1, setups)
	assert.Contains(t, logBuffer.String(), "already installed")
	assert.Len(t, testApp.Host().InstalledModules(), 1)
}

func TestRunCompatGateAbortsInstall(t *testing.T) {
	// --- Arrange ---
	var trace []string
	gamma := &definedModule{def: kit.Definition{
		Name:          "gamma",
		Compatibility: ">=2.0.0",
		Setup:         setupTo(&trace, "setup:gamma"),
	}}
	delta := &definedModule{def: kit.Definition{
		Name:  "delta",
		Setup: setupTo(&trace, "setup:delta"),
	}}
	appConfig := writeAppFile(t, `
		app {
			name    = "demo"
			version = "1.0.0"
		}

		module "gamma" {}
		module "delta" {}
	`)
	testApp, _ := SetupAppTest(t, appConfig, gamma, delta)

	// --- Act ---
	err := testApp.Run(context.Background(), appConfig)

	// --- Assert ---
	require.Error(t, err)
	assert.ErrorIs(t, err, compat.ErrIncompatible)
	assert.Contains(t, err.Error(), `module "gamma"`)
	assert.Empty(t, trace, "no setup should have run")
	assert.True(t, testApp.bus.Closed(), "teardown should seal the bus even on failure")
}

func TestRunSetupErrorAbortsInstall(t *testing.T) {
	// --- Arrange ---
	var trace []string
	good := &definedModule{def: kit.Definition{
		Name:  "good",
		Setup: setupTo(&trace, "setup:good"),
		Hooks: []kit.HookBinding{
			{Event: hooks.EventAppClose, Fn: recordTo(&trace, "good:app:close")},
		},
	}}
	bad := &definedModule{def: kit.Definition{
		Name: "bad",
		Setup: func(ctx context.Context, host kit.Host, opts cty.Value) error {
			return errors.New("boom")
		},
	}}
	appConfig := writeAppFile(t, `
		app {
			name = "demo"
		}

		module "good" {}
		module "bad" {}
	`)
	testApp, _ := SetupAppTest(t, appConfig, good, bad)

	// --- Act ---
	err := testApp.Run(context.Background(), appConfig)

	// --- Assert ---
	require.Error(t, err)
	assert.Contains(t, err.Error(), `module "bad" (`)
	assert.Contains(t, err.Error(), "app.hcl): setup failed: boom")
	// The module installed before the failure still gets its teardown.
	assert.Equal(t, []string{"setup:good", "good:app:close"}, trace)
	assert.Len(t, testApp.Host().InstalledModules(), 1)
}

func TestRunProvideAndLookupAcrossModules(t *testing.T) {
	// --- Arrange ---
	producer := &definedModule{def: kit.Definition{
		Name: "producer",
		Setup: func(ctx context.Context, host kit.Host, opts cty.Value) error {
			host.Provide("db", "conn-42")
			return nil
		},
	}}
	var got any
	var sawProducer bool
	consumer := &definedModule{def: kit.Definition{
		Name: "consumer",
		Setup: func(ctx context.Context, host kit.Host, opts cty.Value) error {
			got, _ = host.Lookup("db")
			for _, rec := range host.InstalledModules() {
				if rec.Name == "producer" {
					sawProducer = true
				}
			}
			return nil
		},
	}}
	appConfig := writeAppFile(t, `
		app {
			name = "demo"
		}

		module "producer" {}
		module "consumer" {}
	`)
	testApp, _ := SetupAppTest(t, appConfig, producer, consumer)

	// --- Act ---
	err := testApp.Run(context.Background(), appConfig)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "conn-42", got)
	assert.True(t, sawProducer, "consumer should see producer as installed")
}

func TestRunSetupEmitsCustomEvent(t *testing.T) {
	// --- Arrange ---
	var trace []string
	migrations := &definedModule{def: kit.Definition{
		Name: "migrations",
		Hooks: []kit.HookBinding{
			{Event: "db:migrate", Fn: recordTo(&trace, "migrate")},
		},
	}}
	database := &definedModule{def: kit.Definition{
		Name: "database",
		Setup: func(ctx context.Context, host kit.Host, opts cty.Value) error {
			trace = append(trace, "db:setup")
			return host.HookBus().Call(ctx, "db:migrate")
		},
	}}
	appConfig := writeAppFile(t, `
		app {
			name = "demo"
		}

		module "migrations" {}
		module "database" {}
	`)
	testApp, _ := SetupAppTest(t, appConfig, migrations, database)

	// --- Act ---
	err := testApp.Run(context.Background(), appConfig)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"db:setup", "migrate"}, trace)
}

func TestCloseIsIdempotent(t *testing.T) {
	// --- Arrange ---
	closes := 0
	mod := &definedModule{def: kit.Definition{
		Name: "counter",
		Hooks: []kit.HookBinding{
			{Event: hooks.EventAppClose, Fn: func(ctx context.Context, host kit.Host) error {
				closes++
				return nil
			}},
		},
	}}
	appConfig := writeAppFile(t, `
		app {
			name = "demo"
		}

		module "counter" {}
	`)
	testApp, _ := SetupAppTest(t, appConfig, mod)
	require.NoError(t, testApp.Run(context.Background(), appConfig))

	// --- Act ---
	err := testApp.Close(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 1, closes)
}

func TestRunInstallAbortsWhenContextCanceledBetweenModules(t *testing.T) {
	// --- Arrange ---
	var trace []string
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	canceler := &definedModule{def: kit.Definition{
		Name: "canceler",
		Setup: func(ctx context.Context, host kit.Host, opts cty.Value) error {
			trace = append(trace, "setup:canceler")
			cancel()
			return nil
		},
	}}
	after := &definedModule{def: kit.Definition{
		Name:  "after",
		Setup: setupTo(&trace, "setup:after"),
	}}
	appConfig := writeAppFile(t, `
		app {
			name = "demo"
		}

		module "canceler" {}
		module "after" {}
	`)
	testApp, _ := SetupAppTest(t, appConfig, canceler, after)

	// --- Act ---
	err := testApp.Run(ctx, appConfig)

	// --- Assert ---
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), `install pass aborted before module "after"`)
	assert.Equal(t, []string{"setup:canceler"}, trace, "no setup may run after cancellation")
	assert.Len(t, testApp.Host().InstalledModules(), 1, "only the first module installs")
}

func TestModulesBeforeFiresBeforeFirstSetup(t *testing.T) {
	// --- Arrange ---
	var trace []string
	worker := &definedModule{def: kit.Definition{
		Name:  "worker",
		Setup: setupTo(&trace, "setup:worker"),
	}}
	appConfig := writeAppFile(t, `
		app {
			name = "demo"
		}

		module "worker" {}
	`)
	testApp, _ := SetupAppTest(t, appConfig, worker)

	_, err := testApp.Host().HookBus().Hook(hooks.EventModulesBefore, func(ctx context.Context) error {
		trace = append(trace, "modules:before")
		return nil
	})
	require.NoError(t, err)

	// --- Act ---
	err = testApp.Run(context.Background(), appConfig)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"modules:before", "setup:worker"}, trace)
}
