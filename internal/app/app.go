// Package app wires the engine together: logger, configuration, transformer
// registry, host connection and one update orchestrator per configured
// transformer instance.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/tableflow/internal/config"
	"github.com/vk/tableflow/internal/ctxlog"
	"github.com/vk/tableflow/internal/host"
	"github.com/vk/tableflow/internal/host/socketio"
	"github.com/vk/tableflow/internal/orchestrator"
	"github.com/vk/tableflow/internal/registry"
)

// Dialer opens a host connection; tests substitute an in-memory fake.
type Dialer func(ctx context.Context, url, plugin string) (host.Connection, error)

// App encapsulates the application's dependencies, configuration and
// lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	registry *registry.Registry
	model    *config.Model
	config   *Config
	dial     Dialer

	httpServer *http.Server
	instances  []*orchestrator.Instance
}

// Option adjusts how the App is constructed.
type Option func(*App)

// WithDialer overrides how the host connection is opened.
func WithDialer(dial Dialer) Option {
	return func(a *App) {
		a.dial = dial
	}
}

// NewApp constructs the application: it builds an isolated logger, loads the
// configuration file, and populates and validates the transformer registry.
// A failure to load or validate configuration is a fatal startup error and
// panics; main recovers it into a clean exit message.
func NewApp(outW io.Writer, appConfig *Config, modules []registry.Module, opts ...Option) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := config.Load(ctx, appConfig.ConfigPath)
	if err != nil {
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Configuration loaded.", "transformers", len(model.Transformers))

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All transformer modules registered.", "kinds", reg.Kinds())

	if err := reg.Validate(ctx); err != nil {
		// A mismatch between code and registration is a programmer error.
		panic(err)
	}

	a := &App{
		outW:     outW,
		logger:   logger,
		registry: reg,
		model:    model,
		config:   appConfig,
		dial: func(ctx context.Context, url, plugin string) (host.Connection, error) {
			return socketio.Dial(ctx, url, plugin)
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}
