package app

import (
	"sync"

	"github.com/vk/modkit/internal/config"
	"github.com/vk/modkit/internal/hooks"
	"github.com/vk/modkit/internal/kit"
	"github.com/zclconf/go-cty/cty"
)

// runtimeHost is the concrete kit.Host shared by every installed module. A
// single instance is created per App and handed around by reference.
type runtimeHost struct {
	name    string
	version string
	env     kit.Environment
	bus     *hooks.Bus

	settings map[string]*config.SettingsBlock

	mu        sync.RWMutex
	services  map[string]any
	installed []kit.Installed
	byName    map[string]int
}

func newRuntimeHost(profile *config.AppProfile, env kit.Environment, settings map[string]*config.SettingsBlock, bus *hooks.Bus) *runtimeHost {
	return &runtimeHost{
		name:     profile.Name,
		version:  profile.Version,
		env:      env,
		bus:      bus,
		settings: settings,
		services: make(map[string]any),
		byName:   make(map[string]int),
	}
}

func (h *runtimeHost) Name() string    { return h.name }
func (h *runtimeHost) Version() string { return h.version }

func (h *runtimeHost) Environment() kit.Environment { return h.env }

func (h *runtimeHost) Dev() bool { return h.env == kit.EnvDevelopment }

func (h *runtimeHost) HookBus() *hooks.Bus { return h.bus }

// Setting returns the raw value of a settings section by config key.
func (h *runtimeHost) Setting(key string) (cty.Value, bool) {
	block, ok := h.settings[key]
	if !ok {
		return cty.NilVal, false
	}
	return block.Value, true
}

// Provide publishes a named value for modules installed later. Providing
// under an existing name replaces the earlier value; modules that need
// exclusivity should Lookup first.
func (h *runtimeHost) Provide(name string, value any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.services[name] = value
}

func (h *runtimeHost) Lookup(name string) (any, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	value, ok := h.services[name]
	return value, ok
}

// InstalledModules lists modules installed so far, in install order.
func (h *runtimeHost) InstalledModules() []kit.Installed {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]kit.Installed, len(h.installed))
	copy(out, h.installed)
	return out
}

func (h *runtimeHost) recordInstall(rec kit.Installed) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byName[rec.Name] = len(h.installed)
	h.installed = append(h.installed, rec)
}

func (h *runtimeHost) isInstalled(name string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.byName[name]
	return ok
}
