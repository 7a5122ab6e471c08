// Package webhook delivers lifecycle notifications to an HTTP endpoint: one
// JSON POST when the application becomes ready and one when it closes. A
// failed ready delivery aborts startup; a failed close delivery is only
// logged, because the application is going away either way.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/vk/modkit/internal/ctxlog"
	"github.com/vk/modkit/internal/hooks"
	"github.com/vk/modkit/internal/kit"
	"github.com/vk/modkit/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Options defines the module's option surface.
type Options struct {
	URL     string            `modkit:"url"`
	Timeout string            `modkit:"timeout"`
	Headers map[string]string `modkit:"headers"`
}

// payload is the JSON body of every notification.
type payload struct {
	App       string `json:"app"`
	Version   string `json:"version"`
	Env       string `json:"env"`
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
}

// notifier holds the delivery configuration shared by both hooks.
type notifier struct {
	url     string
	headers map[string]string
	client  *http.Client
}

// Setup validates the endpoint and binds the ready and close notifications.
func Setup(ctx context.Context, host kit.Host, opts *Options) error {
	parsed, err := url.Parse(opts.URL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid webhook url %q", opts.URL)
	}

	timeout, err := time.ParseDuration(opts.Timeout)
	if err != nil {
		return fmt.Errorf("invalid timeout %q: %w", opts.Timeout, err)
	}

	n := &notifier{
		url:     opts.URL,
		headers: opts.Headers,
		client:  &http.Client{Timeout: timeout},
	}

	if _, err := host.HookBus().Hook(hooks.EventAppReady, func(hookCtx context.Context) error {
		return n.deliver(hookCtx, host, hooks.EventAppReady)
	}); err != nil {
		return err
	}

	_, err = host.HookBus().Hook(hooks.EventAppClose, func(hookCtx context.Context) error {
		if err := n.deliver(hookCtx, host, hooks.EventAppClose); err != nil {
			// The process is shutting down; losing the goodbye ping must not
			// fail the teardown chain.
			ctxlog.FromContext(hookCtx).Warn("Webhook close notification failed.", "url", n.url, "error", err)
		}
		return nil
	})
	return err
}

func (n *notifier) deliver(ctx context.Context, host kit.Host, event string) error {
	body, err := json.Marshal(payload{
		App:       host.Name(),
		Version:   host.Version(),
		Env:       string(host.Environment()),
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range n.headers {
		req.Header.Set(key, value)
	}

	logger := ctxlog.FromContext(ctx).With("module", "webhook", "event", event)
	logger.Debug("Delivering lifecycle notification.", "url", n.url)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering %s notification: %w", event, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s notification rejected with status %s", event, resp.Status)
	}
	logger.Debug("Notification delivered.", "status", resp.Status)
	return nil
}

// Register registers the module's setup handler and definition.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterSetupHandler("SetupWebhook", &registry.RegisteredSetup{
		NewOptions: func() any { return new(Options) },
		Fn:         Setup,
	})
	r.Define(kit.Definition{
		Name:        "webhook",
		Version:     "1.0.0",
		Description: "POSTs JSON lifecycle notifications to an HTTP endpoint.",
		Options: []kit.OptionSpec{
			{Name: "url", Type: cty.String, Required: true, Description: "Endpoint the notifications are POSTed to."},
			{Name: "timeout", Type: cty.String, Default: kit.Default(cty.StringVal("5s")), Description: "Per-delivery HTTP timeout."},
			{Name: "headers", Type: cty.Map(cty.String), Default: kit.Default(cty.MapValEmpty(cty.String)), Description: "Extra request headers."},
		},
		SetupHandler: "SetupWebhook",
	})
}
