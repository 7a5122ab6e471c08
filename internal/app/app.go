package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/vk/modkit/internal/compat"
	"github.com/vk/modkit/internal/config"
	"github.com/vk/modkit/internal/ctxlog"
	"github.com/vk/modkit/internal/hooks"
	"github.com/vk/modkit/internal/kit"
	"github.com/vk/modkit/internal/options"
	"github.com/vk/modkit/internal/registry"
	"github.com/vk/modkit/internal/script"
	"github.com/zclconf/go-cty/cty"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	registry  *registry.Registry
	config    *config.Model
	converter config.Converter
	scripts   *script.Loader
	bus       *hooks.Bus
	host      *runtimeHost

	ready      atomic.Bool
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry,
// with every referenced module resolved and validated but not yet installed.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, modules ...registry.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	// Merge all configuration paths into a single collection for the loader.
	configPaths := []string{appConfig.AppPath}
	if appConfig.ModulesPath != "" {
		configPaths = append(configPaths, appConfig.ModulesPath)
	}

	// Load all configuration into the format-agnostic model first.
	cfgModel, converter, err := loader.Load(ctx, configPaths...)
	if err != nil {
		// A failure to load config is a fatal startup error.
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Configuration loaded and translated into unified model.")

	if appConfig.EnvOverride != "" {
		cfgModel.App.Env = appConfig.EnvOverride
	}
	env, err := kit.ParseEnvironment(cfgModel.App.Env)
	if err != nil {
		panic(fmt.Errorf("invalid app environment: %w", err))
	}

	// Create and populate the registry with Go-defined modules.
	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	// Populate the registry's definitions from the loaded config model.
	if err := reg.PopulateFromModel(cfgModel); err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Registry definitions populated from config model.")

	// Execute referenced scripts so their definitions join the registry too.
	scripts := script.NewLoader()
	if err := defineScriptModules(ctx, scripts, reg, cfgModel); err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}

	// Validate the integrity of the registry.
	if err := reg.Validate(ctx); err != nil {
		// This is a programmer error (mismatch between code and config), so we panic.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	bus := hooks.NewBus()
	host := newRuntimeHost(cfgModel.App, env, cfgModel.Settings, bus)

	return &App{
		outW:      outW,
		logger:    logger,
		registry:  reg,
		config:    cfgModel,
		converter: converter,
		scripts:   scripts,
		bus:       bus,
		host:      host,
	}
}

// defineScriptModules runs every script-sourced module reference and
// registers the resulting definition under the reference's name. Scripts
// either stay anonymous (the file name becomes their working name) or must
// declare the same name the reference uses.
func defineScriptModules(ctx context.Context, scripts *script.Loader, reg *registry.Registry, model *config.Model) error {
	for _, ref := range model.Modules {
		if !ref.IsScript() {
			continue
		}
		if existing, ok := reg.Defined(ref.Name); ok {
			if existing.Source == "script:"+ref.Source {
				continue // the same script referenced again
			}
			return fmt.Errorf("module %q: name already taken by %s", ref.Name, existing.Source)
		}

		def, err := scripts.LoadScript(ctx, ref.Source)
		if err != nil {
			return fmt.Errorf("module %q: %w", ref.Name, err)
		}
		if def.Name != ref.Name && def.Name != script.AnonymousName(ref.Source) {
			return fmt.Errorf("module %q: script at %s declares name %q", ref.Name, ref.Source, def.Name)
		}
		def.Name = ref.Name
		reg.Define(*def)
	}
	return nil
}

// Check resolves every configured module reference and runs the
// install-time gates (compatibility, option finalizing) without executing
// any setup code. The CLI check command uses it to validate an app file
// ahead of a real run.
func (a *App) Check() error {
	for _, ref := range a.config.Modules {
		def, err := a.registry.Resolve(ref)
		if err != nil {
			return fmt.Errorf("module %q: %w", ref.Name, err)
		}
		if err := compat.Check(def.Compatibility, a.config.App.Version); err != nil {
			return fmt.Errorf("module %q: %w", ref.Name, err)
		}

		settings := cty.NilVal
		if block, ok := a.config.Settings[def.EffectiveConfigKey()]; ok {
			settings = block.Value
		}
		if _, err := options.Finalize(def, settings, ref.Options); err != nil {
			return fmt.Errorf("module %q: %w", ref.Name, err)
		}
	}
	return nil
}

// Resolved returns the definition behind every module reference in
// declaration order, repeated references included, without installing
// anything.
func (a *App) Resolved() ([]*kit.Definition, error) {
	defs := make([]*kit.Definition, 0, len(a.config.Modules))
	for _, ref := range a.config.Modules {
		def, err := a.registry.Resolve(ref)
		if err != nil {
			return nil, fmt.Errorf("module %q: %w", ref.Name, err)
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Model returns the loaded configuration model. This is primarily for
// introspection commands and testing.
func (a *App) Model() *config.Model {
	return a.config
}

// Host returns the shared module context. This is primarily for testing.
func (a *App) Host() kit.Host {
	return a.host
}
