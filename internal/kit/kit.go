package kit

import (
	"context"
	"strings"

	"github.com/vk/modkit/internal/hooks"
	"github.com/zclconf/go-cty/cty"
)

// SetupFunc is a module's install entry point. It runs exactly once per
// application run, receives the shared host and the module's fully merged
// options, and must complete before the next module's setup begins.
type SetupFunc func(ctx context.Context, host Host, opts cty.Value) error

// HookFunc is a lifecycle callback bound on behalf of a module. It receives
// the shared host; per-module state is captured by closure at install time.
type HookFunc func(ctx context.Context, host Host) error

// Default wraps a literal value for OptionSpec.Default.
func Default(v cty.Value) *cty.Value { return &v }

// OptionSpec declares a single module option: its wire name, declared cty
// type, and optional default. A nil Default makes the option required.
type OptionSpec struct {
	Name        string
	Type        cty.Type
	Default     *cty.Value
	Required    bool
	Description string
}

// HookBinding attaches a module callback to a named lifecycle event. Exactly
// one of Handler (a registered Go handler name, used by manifests and
// built-ins) or Fn (a direct callback, used by inline and script modules)
// is set.
type HookBinding struct {
	Event   string
	Handler string
	Fn      HookFunc
}

// Definition is the module descriptor. Descriptors are built once at
// configuration-load time — from a manifest, a script, or Go registration —
// consumed by the single install pass, and not consulted afterwards.
type Definition struct {
	// Name uniquely identifies the module within one application run.
	Name string

	// ConfigKey names the settings section the module reads options from.
	// Empty means Name.
	ConfigKey string

	// Version is the module's own semantic version, informational only.
	Version string

	// Compatibility is a host version constraint such as ">= 1.2.0". Empty
	// means the module installs against any host.
	Compatibility string

	Description string

	// Options declares the module's option surface; defaults recorded here
	// form the base layer of the merge.
	Options []OptionSpec

	// SetupHandler names a registered Go setup handler. Mutually exclusive
	// with Setup.
	SetupHandler string

	// Setup is a direct setup callback for inline and script modules.
	Setup SetupFunc

	// Hooks are bound on the bus, in order, immediately before Setup runs.
	Hooks []HookBinding

	// Source records where the descriptor came from, for logs and the
	// installed-module table: "registry", "inline", "manifest:<path>" or
	// "script:<path>".
	Source string
}

// Identity returns the install identity: Name, falling back to ConfigKey.
// Two references with the same identity install at most once.
func (d *Definition) Identity() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ConfigKey
}

// EffectiveConfigKey returns ConfigKey, falling back to Name.
func (d *Definition) EffectiveConfigKey() string {
	if d.ConfigKey != "" {
		return d.ConfigKey
	}
	return d.Name
}

// Option looks up an option spec by name.
func (d *Definition) Option(name string) (OptionSpec, bool) {
	for _, spec := range d.Options {
		if spec.Name == name {
			return spec, true
		}
	}
	return OptionSpec{}, false
}

// Validate rejects descriptors that could never install.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Identity()) == "" {
		return errNoIdentity
	}
	if d.SetupHandler != "" && d.Setup != nil {
		return errAmbiguousSetup(d.Identity())
	}
	for _, b := range d.Hooks {
		if b.Event == "" {
			return errUnnamedHook(d.Identity())
		}
		if b.Handler == "" && b.Fn == nil {
			return errEmptyHook(d.Identity(), b.Event)
		}
	}
	return nil
}

// Installed records one installed module for introspection.
type Installed struct {
	Name      string
	ConfigKey string
	Version   string
	Source    string
}

// Host is the shared application context handed to every module. It is
// shared by reference across all modules; no single module owns it.
type Host interface {
	// Name is the application name from the app file.
	Name() string

	// Version is the host application version modules are gated against.
	Version() string

	// Environment reports the runtime mode.
	Environment() Environment

	// Dev is shorthand for Environment() == EnvDevelopment.
	Dev() bool

	// HookBus exposes the lifecycle hook bus.
	HookBus() *hooks.Bus

	// Setting returns the raw merged value of a settings section by config
	// key. The second result is false when no section with that key exists.
	Setting(key string) (cty.Value, bool)

	// Provide publishes a named value for modules installed later.
	Provide(name string, value any)

	// Lookup retrieves a value published by an earlier module.
	Lookup(name string) (any, bool)

	// InstalledModules lists modules installed so far, in install order.
	InstalledModules() []Installed
}
