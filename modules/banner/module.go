// Package banner prints the application identity and the installed-module
// table once the application is ready. It is mostly useful in development
// and as the smallest example of a compiled-in module.
package banner

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/vk/modkit/internal/ctxlog"
	"github.com/vk/modkit/internal/hooks"
	"github.com/vk/modkit/internal/kit"
	"github.com/vk/modkit/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// WriterService is the host service name an earlier module (or a test) may
// publish an io.Writer under to redirect the banner away from stdout.
const WriterService = "banner.out"

// Options defines the module's option surface.
type Options struct {
	ShowModules bool `modkit:"show_modules"`
}

// Setup binds the banner to app:ready. Nothing is printed at install time;
// the installed-module table is only complete once the install pass is done.
func Setup(ctx context.Context, host kit.Host, opts *Options) error {
	showModules := opts.ShowModules

	_, err := host.HookBus().Hook(hooks.EventAppReady, func(hookCtx context.Context) error {
		ctxlog.FromContext(hookCtx).Debug("Printing application banner.")
		printBanner(host, showModules)
		return nil
	})
	return err
}

func printBanner(host kit.Host, showModules bool) {
	out := io.Writer(os.Stdout)
	if v, ok := host.Lookup(WriterService); ok {
		if w, isWriter := v.(io.Writer); isWriter {
			out = w
		}
	}

	fmt.Fprintf(out, "%s %s (%s)\n", host.Name(), host.Version(), host.Environment())
	if !showModules {
		return
	}

	tw := tabwriter.NewWriter(out, 2, 2, 2, ' ', 0)
	for _, rec := range host.InstalledModules() {
		version := rec.Version
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", rec.Name, version, rec.Source)
	}
	tw.Flush()
}

// Register registers the module's setup handler and definition.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterSetupHandler("SetupBanner", &registry.RegisteredSetup{
		NewOptions: func() any { return new(Options) },
		Fn:         Setup,
	})
	r.Define(kit.Definition{
		Name:        "banner",
		Version:     "1.0.0",
		Description: "Prints the application identity and module table on app:ready.",
		Options: []kit.OptionSpec{
			{Name: "show_modules", Type: cty.Bool, Default: kit.Default(cty.True), Description: "Include the installed-module table."},
		},
		SetupHandler: "SetupBanner",
	})
}
