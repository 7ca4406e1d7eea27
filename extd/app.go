package extd

import (
	"context"
	"fmt"

	"github.com/yusufsyaifudin/emailer/backend"
	"github.com/yusufsyaifudin/emailer/container"
	"github.com/yusufsyaifudin/ylog"
	"go.uber.org/multierr"
)

// App is every dependency a command needs, built from one config file.
type App struct {
	Config   container.Config
	Storage  *container.Storage
	Services *container.ServicesImpl
	Mux      *backend.SenderMultiplexer

	closers []container.Closer
}

// NewApp connects storage, registers backends and prepares services.
// Storage-only command can pass withSender false, so no backend credential is needed.
func NewApp(ctx context.Context, cfg container.Config, withSender bool) (app *App, err error) {
	app = &App{
		Config:  cfg,
		Mux:     backend.NewMux(),
		closers: make([]container.Closer, 0),
	}

	defer func() {
		if err == nil {
			return
		}

		if _err := app.Close(); _err != nil {
			err = multierr.Append(err, _err)
		}

		app = nil
	}()

	ylog.Info(ctx, "storage preparation: starting")
	app.Storage, err = container.SetupStorage(ctx, cfg.Storage)
	if err != nil {
		err = fmt.Errorf("storage preparation failed: %w", err)
		return
	}

	app.closers = append(app.closers, container.NewNamedCloser("storage", app.Storage))

	var sender backend.Sender = backend.NewNoopSender(backend.Identity{})
	if withSender {
		ylog.Info(ctx, "backend preparation: starting")
		closers, _err := RegisterBackends(ctx, app.Mux, cfg.Backends)
		for _, c := range closers {
			app.closers = append(app.closers, container.NewNamedCloser("backend", c))
		}

		if _err != nil {
			err = _err
			return
		}

		sender, err = app.Mux.Use(cfg.Backends.Active)
		if err != nil {
			err = fmt.Errorf("active backend '%s' is not configured: %w", cfg.Backends.Active, err)
			return
		}
	}

	ylog.Info(ctx, "services preparation: starting")
	app.Services, err = container.SetupServices(ctx, cfg, app.Storage.RecipientRepo(), sender)
	if err != nil {
		err = fmt.Errorf("services preparation failed: %w", err)
		return
	}

	ylog.Info(ctx, "app ready")
	return
}

// Close releases resources in reverse order of creation. It is safe to call twice.
func (a *App) Close() error {
	if a == nil {
		return nil
	}

	reversed := make([]container.Closer, 0, len(a.closers))
	for i := len(a.closers) - 1; i >= 0; i-- {
		reversed = append(reversed, a.closers[i])
	}

	return container.CloseAll(reversed...)
}
