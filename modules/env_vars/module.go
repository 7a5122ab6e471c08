// Package env_vars snapshots process environment variables at install time
// and publishes them on the host, so modules installed later can read the
// environment without reaching for os.Environ themselves.
package env_vars

import (
	"context"
	"os"
	"strings"

	"github.com/vk/modkit/internal/ctxlog"
	"github.com/vk/modkit/internal/kit"
	"github.com/vk/modkit/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Service is the host service name the snapshot is published under.
const Service = "env_vars.all"

// Options defines the module's option surface.
type Options struct {
	// Prefix filters the snapshot; empty captures every variable. The
	// prefix is stripped from the published keys.
	Prefix string `modkit:"prefix"`
}

// Setup captures the environment and publishes the snapshot.
func Setup(ctx context.Context, host kit.Host, opts *Options) error {
	snapshot := make(map[string]string)
	for _, entry := range os.Environ() {
		pair := strings.SplitN(entry, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key := pair[0]
		if opts.Prefix != "" {
			if !strings.HasPrefix(key, opts.Prefix) {
				continue
			}
			key = strings.TrimPrefix(key, opts.Prefix)
		}
		snapshot[key] = pair[1]
	}

	host.Provide(Service, snapshot)
	ctxlog.FromContext(ctx).Debug("Environment snapshot published.", "prefix", opts.Prefix, "count", len(snapshot))
	return nil
}

// Register registers the module's setup handler and definition.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterSetupHandler("SetupEnvVars", &registry.RegisteredSetup{
		NewOptions: func() any { return new(Options) },
		Fn:         Setup,
	})
	r.Define(kit.Definition{
		Name:        "env_vars",
		Version:     "1.0.0",
		Description: "Publishes a process environment snapshot for later modules.",
		Options: []kit.OptionSpec{
			{Name: "prefix", Type: cty.String, Default: kit.Default(cty.StringVal("")), Description: "Only capture variables with this prefix."},
		},
		SetupHandler: "SetupEnvVars",
	})
}
