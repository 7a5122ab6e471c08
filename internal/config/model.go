package config

import (
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Model is the unified, format-agnostic representation of the entire
// application configuration: the app profile, the ordered module list, the
// raw settings sections, and the definitions gathered from module manifests.
type Model struct {
	App      *AppProfile
	Modules  []*ModuleRef
	Settings map[string]*SettingsBlock

	// Definitions holds manifest-backed module definitions keyed by module
	// name, populated while resolving path references.
	Definitions map[string]*ModuleDefinition
}

// NewModel returns an empty model with all maps initialized.
func NewModel() *Model {
	return &Model{
		App:         &AppProfile{},
		Settings:    make(map[string]*SettingsBlock),
		Definitions: make(map[string]*ModuleDefinition),
	}
}

// AppProfile is the format-agnostic representation of the `app` block.
type AppProfile struct {
	Name    string
	Version string
	Env     string
}

// ModuleRef is one entry of the ordered module list. Name alone references a
// registered module; Source points at a module directory or script instead.
// Options carries the evaluated inline options, cty.NilVal when none were
// given.
type ModuleRef struct {
	Name    string
	Source  string
	Options cty.Value

	// SourceFile names the config file the reference came from, for error
	// messages.
	SourceFile string
}

// IsScript reports whether the reference points at a script module rather
// than a manifest directory.
func (r *ModuleRef) IsScript() bool {
	return strings.HasSuffix(r.Source, ".lua")
}

// SettingsBlock is the format-agnostic representation of one `settings`
// section, addressed by module config key.
type SettingsBlock struct {
	Key   string
	Value cty.Value
}

// ModuleDefinition is the format-agnostic representation of a module
// manifest.
type ModuleDefinition struct {
	Name          string
	Version       string
	ConfigKey     string
	Compatibility string
	Description   string
	Options       map[string]*OptionDefinition

	// Setup names the Go setup handler; Hooks binds lifecycle event names to
	// Go hook handler names, in manifest order.
	Setup string
	Hooks []*HookDefinition

	// Dir is the directory the manifest was loaded from.
	Dir string
}

// HookDefinition binds one lifecycle event to a named Go handler.
type HookDefinition struct {
	Event   string
	Handler string
}

// OptionDefinition declares a single module option in a manifest.
type OptionDefinition struct {
	Name        string
	Type        cty.Type
	Description string
	Default     *cty.Value
	Required    bool
}
