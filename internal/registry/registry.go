package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vk/modkit/internal/config"
	"github.com/vk/modkit/internal/kit"
)

// ErrUnknownModule is returned when a module reference names neither a
// Go-defined module nor a loaded manifest.
var ErrUnknownModule = errors.New("unknown module")

// Module is the interface that all core modules must implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds all the registered handlers and definitions for a single
// application instance.
type Registry struct {
	SetupHandlerRegistry map[string]*RegisteredSetup
	HookHandlerRegistry  map[string]kit.HookFunc
	DefinitionRegistry   map[string]*config.ModuleDefinition

	modules     map[string]*kit.Definition
	moduleOrder []string
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		SetupHandlerRegistry: make(map[string]*RegisteredSetup),
		HookHandlerRegistry:  make(map[string]kit.HookFunc),
		DefinitionRegistry:   make(map[string]*config.ModuleDefinition),
		modules:              make(map[string]*kit.Definition),
	}
}

// Define registers a module described directly in Go, the form built-in and
// script modules use. Registering two definitions with the same identity is
// a programmer error and panics; referencing the same module twice in config
// is handled later by the installer, which skips repeat installs.
func (r *Registry) Define(def kit.Definition) {
	if err := def.Validate(); err != nil {
		panic(fmt.Sprintf("invalid module definition: %v", err))
	}
	identity := def.Identity()
	if _, exists := r.modules[identity]; exists {
		panic(fmt.Sprintf("module with name '%s' already defined", identity))
	}
	if def.Source == "" {
		def.Source = "registry"
	}
	r.modules[identity] = &def
	r.moduleOrder = append(r.moduleOrder, identity)
}

// Defined returns the Go-defined module with the given identity.
func (r *Registry) Defined(identity string) (*kit.Definition, bool) {
	def, ok := r.modules[identity]
	return def, ok
}

// DefinedModules lists every Go-defined module in registration order.
func (r *Registry) DefinedModules() []*kit.Definition {
	out := make([]*kit.Definition, 0, len(r.moduleOrder))
	for _, identity := range r.moduleOrder {
		out = append(out, r.modules[identity])
	}
	return out
}

// PopulateFromModel copies the manifest definitions gathered by the config
// loader into the registry for resolution and validation. A sourced
// reference whose name is already taken by a Go-defined module is an error,
// so a user's manifest never gets silently shadowed.
func (r *Registry) PopulateFromModel(model *config.Model) error {
	for _, ref := range model.Modules {
		if ref.Source == "" || ref.IsScript() {
			continue
		}
		if def, ok := r.modules[ref.Name]; ok {
			return fmt.Errorf("module %q: source %s collides with the %s definition of the same name",
				ref.Name, ref.Source, def.Source)
		}
	}
	for key, def := range model.Definitions {
		r.DefinitionRegistry[key] = def
	}
	return nil
}

// Resolve turns a module reference into the definition the installer will
// run: Go-defined modules take priority, then manifest-backed definitions
// bound to their named handlers.
func (r *Registry) Resolve(ref *config.ModuleRef) (*kit.Definition, error) {
	if def, ok := r.modules[ref.Name]; ok {
		return def, nil
	}
	if manifest, ok := r.DefinitionRegistry[ref.Name]; ok {
		return r.bindManifest(manifest)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownModule, ref.Name)
}

// bindManifest converts a manifest definition into a runnable one. Handler
// names stay symbolic here; the installer resolves them against the handler
// registries at install time, after validation has proven they exist.
func (r *Registry) bindManifest(m *config.ModuleDefinition) (*kit.Definition, error) {
	def := &kit.Definition{
		Name:          m.Name,
		ConfigKey:     m.ConfigKey,
		Version:       m.Version,
		Compatibility: m.Compatibility,
		Description:   m.Description,
		SetupHandler:  m.Setup,
		Source:        "manifest:" + m.Dir,
	}

	names := make([]string, 0, len(m.Options))
	for name := range m.Options {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		opt := m.Options[name]
		def.Options = append(def.Options, kit.OptionSpec{
			Name:        opt.Name,
			Type:        opt.Type,
			Default:     opt.Default,
			Required:    opt.Required,
			Description: opt.Description,
		})
	}

	for _, h := range m.Hooks {
		def.Hooks = append(def.Hooks, kit.HookBinding{Event: h.Event, Handler: h.Handler})
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}
