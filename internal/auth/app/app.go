// Package app wires configuration, the bridge, the user service and the
// HTTP server into one runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/tokengate/tokengate/internal/auth/bridge"
	httpapi "github.com/tokengate/tokengate/internal/auth/http"
	"github.com/tokengate/tokengate/internal/auth/service"
	"github.com/tokengate/tokengate/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the auth service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     bridge.Bridge
	users  *service.UserService
	router *httpapi.Router
	server *http.Server
}

// New creates an Application with all dependencies initialized. The user
// table is bootstrapped here, before the server accepts any request.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "tokengate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	flavor := bridge.Flavor(cfg.DatabaseDriver)
	db, err := bridge.Open(flavor, cfg.DatabaseDSN, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database bridge: %w", err)
	}
	app.db = db

	users, err := service.NewUserService(context.Background(), db, cfg.UserTable,
		service.WithTokenLength(cfg.TokenLength),
		service.WithTokenTTL(cfg.TokenTTL),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize user service: %w", err)
	}
	app.users = users

	app.router = httpapi.NewRouter(users, db, app.logger)
	app.router.ApplyRoutes()
	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: app.router,
	}

	return app, nil
}

// Run starts the HTTP server and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"driver", app.cfg.DatabaseDriver,
		"version", BuildVersion,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig.String())
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests within the grace period, then closes
// the bridge.
func (app *Application) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		_ = app.db.Close()
		return err
	}
	return app.db.Close()
}
