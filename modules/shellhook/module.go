// Package shellhook runs configured shell snippets at lifecycle events. The
// snippets execute in an embedded POSIX shell interpreter, so no /bin/sh is
// required and scripts behave the same on every platform the binary runs on.
package shellhook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vk/modkit/internal/ctxlog"
	"github.com/vk/modkit/internal/hooks"
	"github.com/vk/modkit/internal/kit"
	"github.com/vk/modkit/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Options defines the module's option surface. Empty snippets bind nothing.
type Options struct {
	OnReady string            `modkit:"on_ready"`
	OnClose string            `modkit:"on_close"`
	Dir     string            `modkit:"dir"`
	Env     map[string]string `modkit:"env"`
	Timeout string            `modkit:"timeout"`
}

// snippet is one parsed shell program bound to a lifecycle event.
type snippet struct {
	event   string
	prog    *syntax.File
	dir     string
	env     []string
	timeout time.Duration
}

// Setup parses the configured snippets and binds them to their events. A
// snippet that does not parse fails the install, so shell syntax errors
// surface at startup rather than mid-lifecycle.
func Setup(ctx context.Context, host kit.Host, opts *Options) error {
	timeout, err := time.ParseDuration(opts.Timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: %w", opts.Timeout, err)
	}

	env := os.Environ()
	for key, value := range opts.Env {
		env = append(env, key+"="+value)
	}
	env = append(env,
		"MODKIT_APP="+host.Name(),
		"MODKIT_APP_VERSION="+host.Version(),
		"MODKIT_APP_ENV="+string(host.Environment()),
	)

	parser := syntax.NewParser()
	sources := []struct {
		event  string
		script string
	}{
		{hooks.EventAppReady, opts.OnReady},
		{hooks.EventAppClose, opts.OnClose},
	}

	for _, src := range sources {
		if strings.TrimSpace(src.script) == "" {
			continue
		}
		prog, err := parser.Parse(strings.NewReader(src.script), src.event)
		if err != nil {
			return fmt.Errorf("snippet for %s: %w", src.event, err)
		}

		sn := &snippet{event: src.event, prog: prog, dir: opts.Dir, env: env, timeout: timeout}
		if _, err := host.HookBus().Hook(src.event, sn.run); err != nil {
			return fmt.Errorf("binding %s: %w", src.event, err)
		}
	}
	return nil
}

// run executes the snippet. A non-zero exit fails the hook chain, the way a
// failing ready check should; callers see the exit status in the error.
func (s *snippet) run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("module", "shellhook", "event", s.event)
	logger.Debug("Running shell snippet.")

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	runOpts := []interp.RunnerOption{
		interp.StdIO(nil, os.Stdout, os.Stderr),
		interp.Env(expand.ListEnviron(s.env...)),
	}
	if s.dir != "" {
		runOpts = append(runOpts, interp.Dir(s.dir))
	}
	runner, err := interp.New(runOpts...)
	if err != nil {
		return fmt.Errorf("shell interpreter: %w", err)
	}

	if err := runner.Run(runCtx, s.prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return fmt.Errorf("snippet for %s exited with status %d", s.event, uint8(exitStatus))
		}
		return fmt.Errorf("snippet for %s: %w", s.event, err)
	}
	logger.Debug("Shell snippet finished.")
	return nil
}

// Register registers the module's setup handler and definition.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterSetupHandler("SetupShellhook", &registry.RegisteredSetup{
		NewOptions: func() any { return new(Options) },
		Fn:         Setup,
	})
	r.Define(kit.Definition{
		Name:        "shellhook",
		Version:     "1.1.0",
		Description: "Runs shell snippets at lifecycle events.",
		Options: []kit.OptionSpec{
			{Name: "on_ready", Type: cty.String, Default: kit.Default(cty.StringVal("")), Description: "Snippet run at app:ready."},
			{Name: "on_close", Type: cty.String, Default: kit.Default(cty.StringVal("")), Description: "Snippet run at app:close."},
			{Name: "dir", Type: cty.String, Default: kit.Default(cty.StringVal("")), Description: "Working directory for the snippets."},
			{Name: "env", Type: cty.Map(cty.String), Default: kit.Default(cty.MapValEmpty(cty.String)), Description: "Extra environment variables."},
			{Name: "timeout", Type: cty.String, Default: kit.Default(cty.StringVal("30s")), Description: "Per-snippet execution timeout."},
		},
		SetupHandler: "SetupShellhook",
	})
}
