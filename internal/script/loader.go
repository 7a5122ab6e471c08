package script

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
	"github.com/vk/modkit/internal/ctxlog"
	"github.com/vk/modkit/internal/kit"
	"github.com/zclconf/go-cty/cty"
)

const (
	moduleTypeName  = "modkit_module"
	callbacksGlobal = "__modkit_callbacks"
)

// scriptModule collects what a script declares about itself before the
// loader turns it into a kit.Definition. Callbacks stay on the Lua side,
// filed under the module's name in the callbacks global: "setup" for the
// setup function and ascending integer keys for hooks.
type scriptModule struct {
	name          string
	version       string
	configKey     string
	compatibility string
	description   string
	options       []kit.OptionSpec
	hasSetup      bool
	hookEvents    []string
}

// Loader owns the shared interpreter state and translates script files into
// module definitions.
type Loader struct {
	state *lua.State

	// currentCtx carries the context of the callback currently executing,
	// for the script-side log functions. Installs run sequentially, so a
	// single slot is enough.
	currentCtx context.Context
}

// AnonymousName derives the working name of a script module that never
// called the name setter: the file name without its extension, or the
// directory name for a conventional module.lua.
func AnonymousName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if name == "module" {
		return filepath.Base(filepath.Dir(path))
	}
	return name
}

// NewLoader creates a script loader with a fresh interpreter.
func NewLoader() *Loader {
	l := &Loader{state: lua.NewState()}
	lua.OpenLibraries(l.state)
	l.registerModuleType()
	l.registerLogAPI()
	return l
}

// LoadScript runs a script file and returns the module it declares. The
// returned definition's callbacks call back into the interpreter when the
// module is installed.
func (l *Loader) LoadScript(ctx context.Context, path string) (*kit.Definition, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading script module.", "path", path)

	state := l.state
	top := state.Top()
	defer state.SetTop(top)

	l.currentCtx = ctx
	defer func() { l.currentCtx = nil }()

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("failed to parse script %s: %w", path, err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("failed to run script %s: %w", path, err)
	}

	if state.TypeOf(-1) != lua.TypeUserData {
		return nil, fmt.Errorf("script %s must return a module built with Module.new", path)
	}
	mod, ok := state.ToUserData(-1).(*scriptModule)
	if !ok || mod == nil {
		return nil, fmt.Errorf("script %s returned a foreign value instead of a module", path)
	}

	if strings.TrimSpace(mod.name) == "" {
		mod.name = AnonymousName(path)
	}

	def := &kit.Definition{
		Name:          mod.name,
		ConfigKey:     mod.configKey,
		Version:       mod.version,
		Compatibility: mod.compatibility,
		Description:   mod.description,
		Options:       mod.options,
		Source:        "script:" + path,
	}
	key := mod.callbackKey()
	if mod.hasSetup {
		def.Setup = l.setupFunc(key, mod.name)
	}
	for i, event := range mod.hookEvents {
		def.Hooks = append(def.Hooks, kit.HookBinding{Event: event, Fn: l.hookFunc(key, mod.name, event, i+1)})
	}

	logger.Debug("Loaded script module.",
		"module", mod.name,
		"options", len(mod.options),
		"hooks", len(mod.hookEvents),
	)
	return def, nil
}

// setupFunc returns the Go-side wrapper for a script's setup callback. The
// script function receives the resolved options and an app snapshot as plain
// tables.
func (l *Loader) setupFunc(key, name string) kit.SetupFunc {
	return func(ctx context.Context, host kit.Host, opts cty.Value) error {
		state := l.state
		top := state.Top()
		defer state.SetTop(top)

		l.currentCtx = ctx
		defer func() { l.currentCtx = nil }()

		l.pushCallbacks(key)
		state.Field(-1, "setup")
		if state.TypeOf(-1) != lua.TypeFunction {
			return fmt.Errorf("script module %q lost its setup callback", name)
		}

		goOpts, err := ctyToGo(opts)
		if err != nil {
			return fmt.Errorf("script module %q: options not representable in a script: %w", name, err)
		}
		pushGoValue(state, goOpts)
		pushGoValue(state, hostSnapshot(host))

		if err := state.ProtectedCall(2, 0, 0); err != nil {
			return fmt.Errorf("script module %q setup failed: %w", name, err)
		}
		return nil
	}
}

// hookFunc returns the Go-side wrapper for the script's idx-th hook.
func (l *Loader) hookFunc(key, name, event string, idx int) kit.HookFunc {
	return func(ctx context.Context, host kit.Host) error {
		state := l.state
		top := state.Top()
		defer state.SetTop(top)

		l.currentCtx = ctx
		defer func() { l.currentCtx = nil }()

		l.pushCallbacks(key)
		state.RawGetInt(-1, idx)
		if state.TypeOf(-1) != lua.TypeFunction {
			return fmt.Errorf("script module %q lost its %q hook callback", name, event)
		}

		pushGoValue(state, hostSnapshot(host))
		if err := state.ProtectedCall(1, 0, 0); err != nil {
			return fmt.Errorf("script module %q hook %q failed: %w", name, event, err)
		}
		return nil
	}
}

// hostSnapshot flattens the host surface scripts may read into a plain
// table.
func hostSnapshot(host kit.Host) map[string]any {
	if host == nil {
		return map[string]any{}
	}
	return map[string]any{
		"name":    host.Name(),
		"version": host.Version(),
		"env":     string(host.Environment()),
		"dev":     host.Dev(),
	}
}

// pushCallbacks leaves the per-module callbacks table on top of the stack,
// creating the global and per-module tables on first use.
func (l *Loader) pushCallbacks(name string) {
	state := l.state

	state.Global(callbacksGlobal)
	if state.TypeOf(-1) != lua.TypeTable {
		state.Pop(1)
		state.NewTable()
		state.PushValue(-1)
		state.SetGlobal(callbacksGlobal)
	}

	state.Field(-1, name)
	if state.TypeOf(-1) != lua.TypeTable {
		state.Pop(1)
		state.NewTable()
		state.PushValue(-1)
		state.SetField(-3, name)
	}
	state.Remove(-2)
}
