package testutil

import (
	"context"
	"sync"

	"github.com/vk/modkit/internal/hooks"
	"github.com/vk/modkit/internal/kit"
	"github.com/vk/modkit/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Recorder collects labeled lifecycle observations. Hook chains run
// sequentially, but the healthcheck server shares the process, so access is
// still guarded.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

// Record appends one observation.
func (r *Recorder) Record(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, label)
}

// Events returns the observations in the order they were recorded.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// RecorderModule is a test module that records its setup and every reserved
// lifecycle event, prefixed with the module name.
type RecorderModule struct {
	Name     string
	Recorder *Recorder

	// Def overrides parts of the generated definition when set, letting
	// tests add options or a compatibility constraint.
	Compatibility string
	Options       []kit.OptionSpec
}

// Register implements registry.Module.
func (m *RecorderModule) Register(r *registry.Registry) {
	name := m.Name
	rec := m.Recorder

	record := func(label string) kit.HookFunc {
		return func(ctx context.Context, host kit.Host) error {
			rec.Record(name + ":" + label)
			return nil
		}
	}

	r.Define(kit.Definition{
		Name:          name,
		Compatibility: m.Compatibility,
		Options:       m.Options,
		Setup: func(ctx context.Context, host kit.Host, opts cty.Value) error {
			rec.Record(name + ":setup")
			return nil
		},
		Hooks: []kit.HookBinding{
			{Event: hooks.EventModulesDone, Fn: record("modules:done")},
			{Event: hooks.EventAppReady, Fn: record("ready")},
			{Event: hooks.EventAppClose, Fn: record("close")},
		},
	})
}
