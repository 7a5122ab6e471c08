// Package socketio announces the application lifecycle over a Socket.IO
// connection. At app:ready it connects, emits a configurable event carrying
// the app profile and optionally waits for an acknowledging event; at
// app:close it says goodbye and disconnects.
package socketio

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/vk/modkit/internal/ctxlog"
	"github.com/vk/modkit/internal/hooks"
	"github.com/vk/modkit/internal/kit"
	"github.com/vk/modkit/internal/registry"
	"github.com/zclconf/go-cty/cty"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Options defines the module's option surface.
type Options struct {
	URL                string `modkit:"url"`
	Namespace          string `modkit:"namespace"`
	EmitEvent          string `modkit:"emit_event"`
	AckEvent           string `modkit:"ack_event"`
	Timeout            string `modkit:"timeout"`
	InsecureSkipVerify bool   `modkit:"insecure_skip_verify"`
}

// announcer owns the Socket.IO connection across the ready and close hooks.
type announcer struct {
	baseURL   string
	path      string
	namespace string
	emitEvent string
	ackEvent  string
	timeout   time.Duration
	insecure  bool

	io *socket.Socket
}

// Setup validates the options and binds the announcer to the lifecycle.
// No network traffic happens at install time.
func Setup(ctx context.Context, host kit.Host, opts *Options) error {
	parsed, err := url.Parse(opts.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid socket.io url %q", opts.URL)
	}

	timeout, err := time.ParseDuration(opts.Timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: %w", opts.Timeout, err)
	}

	a := &announcer{
		baseURL:   fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host),
		path:      parsed.Path,
		namespace: opts.Namespace,
		emitEvent: opts.EmitEvent,
		ackEvent:  opts.AckEvent,
		timeout:   timeout,
		insecure:  opts.InsecureSkipVerify,
	}

	if _, err := host.HookBus().Hook(hooks.EventAppReady, func(hookCtx context.Context) error {
		return a.announce(hookCtx, host)
	}); err != nil {
		return err
	}

	_, err = host.HookBus().Hook(hooks.EventAppClose, func(hookCtx context.Context) error {
		a.disconnect(hookCtx)
		return nil
	})
	return err
}

// announce connects, emits the lifecycle event and, when an ack event is
// configured, blocks until it arrives or the timeout fires. The connection
// stays open for the life of the application.
func (a *announcer) announce(ctx context.Context, host kit.Host) error {
	logger := ctxlog.FromContext(ctx).With("module", "socketio", "url", a.baseURL, "namespace", a.namespace)
	logger.Debug("Connecting lifecycle announcer.")

	var isConnected atomic.Bool

	opts := socket.DefaultOptions()
	if a.path != "" {
		opts.SetPath(a.path)
	}
	if a.insecure {
		logger.Warn("Skipping TLS certificate verification")
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(a.baseURL, opts)
	a.io = manager.Socket(a.namespace, opts)

	done := make(chan error, 1)
	opCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	a.io.On(types.EventName("connect"), func(...any) {
		isConnected.Store(true)
		logger.Info("Lifecycle announcer connected.", "sid", a.io.Id())
		a.io.Emit(a.emitEvent, map[string]any{
			"app":     host.Name(),
			"version": host.Version(),
			"env":     string(host.Environment()),
			"event":   hooks.EventAppReady,
		})
		if a.ackEvent == "" {
			done <- nil
		}
	})

	a.io.On(types.EventName("connect_error"), func(errs ...any) {
		if len(errs) > 0 {
			if err, ok := errs[0].(error); ok {
				done <- fmt.Errorf("socket.io connect: %w", err)
				return
			}
		}
		done <- fmt.Errorf("socket.io connect failed")
	})

	if a.ackEvent != "" {
		a.io.On(types.EventName(a.ackEvent), func(...any) {
			logger.Debug("Acknowledgement received.", "event", a.ackEvent)
			done <- nil
		})
	}

	a.io.Connect()

	select {
	case <-opCtx.Done():
		a.disconnect(ctx)
		if isConnected.Load() {
			return fmt.Errorf("timed out after connecting while waiting for event %q", a.ackEvent)
		}
		return fmt.Errorf("timed out while waiting for initial connection to %s", a.baseURL)
	case err := <-done:
		if err != nil {
			a.disconnect(ctx)
		}
		return err
	}
}

func (a *announcer) disconnect(ctx context.Context) {
	if a.io == nil {
		return
	}
	ctxlog.FromContext(ctx).Debug("Disconnecting lifecycle announcer.", "url", a.baseURL)
	a.io.Emit(a.emitEvent, map[string]any{"event": hooks.EventAppClose})
	a.io.Disconnect()
	a.io = nil
}

// Register registers the module's setup handler and definition.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterSetupHandler("SetupSocketIO", &registry.RegisteredSetup{
		NewOptions: func() any { return new(Options) },
		Fn:         Setup,
	})
	r.Define(kit.Definition{
		Name:        "socketio",
		Version:     "1.2.0",
		Description: "Announces lifecycle events over a Socket.IO connection.",
		Options: []kit.OptionSpec{
			{Name: "url", Type: cty.String, Required: true, Description: "Socket.IO server URL."},
			{Name: "namespace", Type: cty.String, Default: kit.Default(cty.StringVal("/")), Description: "Namespace to join."},
			{Name: "emit_event", Type: cty.String, Default: kit.Default(cty.StringVal("modkit:lifecycle")), Description: "Event name announcements are emitted under."},
			{Name: "ack_event", Type: cty.String, Default: kit.Default(cty.StringVal("")), Description: "Event to wait for after announcing; empty skips the wait."},
			{Name: "timeout", Type: cty.String, Default: kit.Default(cty.StringVal("10s")), Description: "Connect-and-announce deadline."},
			{Name: "insecure_skip_verify", Type: cty.Bool, Default: kit.Default(cty.False), Description: "Disable TLS certificate verification."},
		},
		SetupHandler: "SetupSocketIO",
	})
}
