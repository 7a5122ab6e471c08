package testutil

import (
	"sync"

	"github.com/vk/modkit/internal/hooks"
	"github.com/vk/modkit/internal/kit"
	"github.com/zclconf/go-cty/cty"
)

// Host is a minimal kit.Host for unit-testing modules outside a full App.
type Host struct {
	AppName    string
	AppVersion string
	Env        kit.Environment
	Bus        *hooks.Bus
	Settings   map[string]cty.Value
	Modules    []kit.Installed

	mu       sync.Mutex
	services map[string]any
}

// NewHost returns a development-mode host with a fresh bus.
func NewHost() *Host {
	return &Host{
		AppName:    "test-app",
		AppVersion: "1.0.0",
		Env:        kit.EnvDevelopment,
		Bus:        hooks.NewBus(),
		services:   make(map[string]any),
	}
}

func (h *Host) Name() string                 { return h.AppName }
func (h *Host) Version() string              { return h.AppVersion }
func (h *Host) Environment() kit.Environment { return h.Env }
func (h *Host) Dev() bool                    { return h.Env == kit.EnvDevelopment }
func (h *Host) HookBus() *hooks.Bus          { return h.Bus }

func (h *Host) Setting(key string) (cty.Value, bool) {
	value, ok := h.Settings[key]
	return value, ok
}

func (h *Host) Provide(name string, value any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.services == nil {
		h.services = make(map[string]any)
	}
	h.services[name] = value
}

func (h *Host) Lookup(name string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	value, ok := h.services[name]
	return value, ok
}

func (h *Host) InstalledModules() []kit.Installed {
	out := make([]kit.Installed, len(h.Modules))
	copy(out, h.Modules)
	return out
}
