package app

import (
	"context"
	"fmt"

	"github.com/vk/modkit/internal/compat"
	"github.com/vk/modkit/internal/config"
	"github.com/vk/modkit/internal/ctxlog"
	"github.com/vk/modkit/internal/hooks"
	"github.com/vk/modkit/internal/kit"
	"github.com/vk/modkit/internal/options"
	"github.com/zclconf/go-cty/cty"
)

// installModules runs the install phase: modules:before, then every module
// reference in declaration order, then modules:done. The first failing
// module aborts the phase.
func (a *App) installModules(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("🚀 Installing modules...", "count", len(a.config.Modules))

	if err := a.bus.Call(ctx, hooks.EventModulesBefore); err != nil {
		return fmt.Errorf("%s hooks failed: %w", hooks.EventModulesBefore, err)
	}

	for _, ref := range a.config.Modules {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("install pass aborted before module %q: %w", ref.Name, err)
		}
		if err := a.installOne(ctx, ref); err != nil {
			if ref.SourceFile != "" {
				return fmt.Errorf("module %q (%s): %w", ref.Name, ref.SourceFile, err)
			}
			return fmt.Errorf("module %q: %w", ref.Name, err)
		}
	}

	if err := a.bus.Call(ctx, hooks.EventModulesDone); err != nil {
		return fmt.Errorf("%s hooks failed: %w", hooks.EventModulesDone, err)
	}

	logger.Info("✅ All modules installed.", "installed", len(a.host.InstalledModules()))
	return nil
}

// installOne installs a single module reference: resolve, gate on host
// compatibility, finalize options, bind declared hooks, run setup, record.
// A reference whose module is already installed is skipped.
func (a *App) installOne(ctx context.Context, ref *config.ModuleRef) error {
	logger := ctxlog.FromContext(ctx)

	def, err := a.registry.Resolve(ref)
	if err != nil {
		return err
	}
	identity := def.Identity()

	if a.host.isInstalled(identity) {
		logger.Debug("Module already installed, skipping.", "module", identity)
		return nil
	}

	if err := compat.Check(def.Compatibility, a.host.Version()); err != nil {
		return err
	}

	settings := cty.NilVal
	if value, ok := a.host.Setting(def.EffectiveConfigKey()); ok {
		settings = value
	}
	opts, err := options.Finalize(def, settings, ref.Options)
	if err != nil {
		return err
	}

	if err := a.bindHooks(def); err != nil {
		return err
	}

	if err := a.runSetup(ctx, def, opts); err != nil {
		return fmt.Errorf("setup failed: %w", err)
	}

	a.host.recordInstall(kit.Installed{
		Name:      identity,
		ConfigKey: def.EffectiveConfigKey(),
		Version:   def.Version,
		Source:    def.Source,
	})
	logger.Debug("Module installed.", "module", identity, "source", def.Source)
	return nil
}

// bindHooks registers a definition's declared hook bindings on the bus.
// Bindings run before the module's setup so that setup-emitted events
// already see them.
func (a *App) bindHooks(def *kit.Definition) error {
	for _, binding := range def.Hooks {
		fn := binding.Fn
		if fn == nil {
			fn = a.registry.HookHandlerRegistry[binding.Handler]
		}
		if fn == nil {
			return fmt.Errorf("hook %q names unregistered handler %q", binding.Event, binding.Handler)
		}

		hookFn := fn
		_, err := a.bus.Hook(binding.Event, func(hookCtx context.Context) error {
			return hookFn(hookCtx, a.host)
		})
		if err != nil {
			return fmt.Errorf("binding hook %q: %w", binding.Event, err)
		}
	}
	return nil
}

// runSetup executes a module's setup routine, favoring a direct Go function
// over a named handler. A module with neither installs without running any
// code.
func (a *App) runSetup(ctx context.Context, def *kit.Definition, opts cty.Value) error {
	if def.Setup != nil {
		return def.Setup(ctx, a.host, opts)
	}
	if def.SetupHandler != "" {
		handler, ok := a.registry.SetupHandlerRegistry[def.SetupHandler]
		if !ok {
			return fmt.Errorf("setup handler %q is not registered", def.SetupHandler)
		}
		return handler.Invoke(ctx, a.host, opts, a.converter)
	}
	return nil
}
