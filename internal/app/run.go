package app

import (
	"context"
	"fmt"

	"github.com/vk/modkit/internal/ctxlog"
	"github.com/vk/modkit/internal/hooks"
)

// Run executes the application lifecycle: install every configured module,
// announce readiness, then hold until ctx is cancelled (or return right
// away in once mode). Teardown hooks run in all cases, on a context that
// survives the cancellation that triggered them.
func (a *App) Run(ctx context.Context, appConfig *Config) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if appConfig.HealthcheckPort > 0 {
		a.startHealthcheckServer(appConfig.HealthcheckPort)
		defer a.closeHealthcheckServer(context.WithoutCancel(ctx))
	}

	if err := a.installModules(ctx); err != nil {
		// Modules installed before the failure may hold resources, so the
		// teardown chain still runs.
		if closeErr := a.Close(context.WithoutCancel(ctx)); closeErr != nil {
			a.logger.Error("Teardown after failed install also failed.", "error", closeErr)
		}
		return err
	}

	a.ready.Store(true)
	if err := a.bus.Call(ctx, hooks.EventAppReady); err != nil {
		if closeErr := a.Close(context.WithoutCancel(ctx)); closeErr != nil {
			a.logger.Error("Teardown after failed startup also failed.", "error", closeErr)
		}
		return fmt.Errorf("%s hooks failed: %w", hooks.EventAppReady, err)
	}
	a.logger.Info("✨ Application ready.", "app", a.host.Name(), "modules", len(a.host.InstalledModules()))

	if !appConfig.Once {
		<-ctx.Done()
		a.logger.Debug("Run context finished, starting teardown.")
	}

	return a.Close(context.WithoutCancel(ctx))
}

// Close fires the terminal app:close event and seals the bus. Calling it
// again after the bus is closed is a no-op.
func (a *App) Close(ctx context.Context) error {
	a.ready.Store(false)
	if a.bus.Closed() {
		return nil
	}

	a.logger.Info("🏁 Shutting down.", "app", a.host.Name())
	if err := a.bus.CallClose(ctx); err != nil {
		return fmt.Errorf("%s hooks failed: %w", hooks.EventAppClose, err)
	}
	a.logger.Debug("Teardown complete.")
	return nil
}
