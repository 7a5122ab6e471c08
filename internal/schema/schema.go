package schema

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// --- Application File Structures ---

// InlineOptions represents the content of the 'options' block within a
// module reference. The body is kept raw so it can be evaluated against the
// app's eval context after all blocks are decoded.
type InlineOptions struct {
	Body hcl.Body `hcl:",remain"`
}

// ModuleRef represents a `module` block from an app file: one entry of the
// ordered module list.
type ModuleRef struct {
	Name    string         `hcl:"name,label"`
	Source  string         `hcl:"source,optional"`
	Options *InlineOptions `hcl:"options,block"`
}

// SettingsBlock represents a `settings` block, addressed by module config
// key. Shape is module-specific, so the body stays raw here.
type SettingsBlock struct {
	Key  string   `hcl:"config_key,label"`
	Body hcl.Body `hcl:",remain"`
}

// AppBlock represents the `app` block describing the host application.
type AppBlock struct {
	Name    string `hcl:"name"`
	Version string `hcl:"version,optional"`
	Env     string `hcl:"env,optional"`
}

// AppConfig represents the top-level structure of an application file.
type AppConfig struct {
	App      *AppBlock        `hcl:"app,block"`
	Modules  []*ModuleRef     `hcl:"module,block"`
	Settings []*SettingsBlock `hcl:"settings,block"`
	Body     hcl.Body         `hcl:",remain"`
}

// --- Module Manifest Schemas ---

// OptionDefinition declares a single option a module accepts.
type OptionDefinition struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type"`
	Description string         `hcl:"description,optional"`
	Default     *cty.Value     `hcl:"default,optional"`
	Required    bool           `hcl:"required,optional"`
}

// HookBinding maps one lifecycle event to a registered Go handler function.
type HookBinding struct {
	Event   string `hcl:"event,label"`
	Handler string `hcl:"handler"`
}

// Lifecycle groups a manifest's setup handler and hook bindings.
type Lifecycle struct {
	Setup string         `hcl:"setup,optional"`
	Hooks []*HookBinding `hcl:"hook,block"`
}

// ModuleManifest represents the HCL manifest of a path-referenced module.
type ModuleManifest struct {
	Name          string              `hcl:"name,label"`
	Version       string              `hcl:"version,optional"`
	ConfigKey     string              `hcl:"config_key,optional"`
	Compatibility string              `hcl:"compatibility,optional"`
	Description   string              `hcl:"description,optional"`
	Lifecycle     *Lifecycle          `hcl:"lifecycle,block"`
	Options       []*OptionDefinition `hcl:"option,block"`
}

// ManifestConfig represents the top-level structure of a module manifest
// file.
type ManifestConfig struct {
	Module *ModuleManifest `hcl:"module,block"`
	Body   hcl.Body        `hcl:",remain"`
}
