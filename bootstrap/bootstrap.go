// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/printforge/genmeter/adapters/clock"
	meterhttp "github.com/printforge/genmeter/adapters/http"
	"github.com/printforge/genmeter/adapters/idgen"
	"github.com/printforge/genmeter/adapters/memory"
	"github.com/printforge/genmeter/adapters/metrics"
	"github.com/printforge/genmeter/adapters/sqlite"
	"github.com/printforge/genmeter/app"
	"github.com/printforge/genmeter/config"
	"github.com/printforge/genmeter/domain/quota"
	"github.com/printforge/genmeter/ports"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	DB         *sqlite.DB // nil for the memory driver
	HTTPServer *http.Server
	Metrics    *metrics.Collector
	Meter      *app.MeterService

	holder *config.Holder
}

// New creates and initializes the application from a config file path.
// The file is optional; environment variables fill in when it is absent.
// A file that exists but fails to load is an error, never silently
// replaced by environment defaults.
func New(configPath string) (*App, error) {
	if _, err := os.Stat(configPath); err != nil {
		cfg, envErr := config.LoadFromEnv()
		if envErr != nil {
			return nil, fmt.Errorf("load config: %w", envErr)
		}
		return newWithConfig(cfg, nil)
	}

	holder, err := config.NewHolder(configPath, bootLogger())
	if err != nil {
		return nil, err
	}

	return newWithConfig(holder.Get(), holder)
}

// NewFromConfig creates the application from an already-loaded config.
// Used by administrative commands that wire the service without a server.
func NewFromConfig(cfg *config.Config) (*App, error) {
	return newWithConfig(cfg, nil)
}

func newWithConfig(cfg *config.Config, holder *config.Holder) (*App, error) {
	logger := setupLogger(cfg.Logging)
	logger.Info().Str("version", Version).Msg("initializing genmeter")

	a := &App{
		Logger: logger,
		holder: holder,
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New(prometheus.DefaultRegisterer)
		logger.Info().Str("path", cfg.Metrics.Path).Msg("prometheus metrics enabled")
	}

	store, events, err := a.buildStores(cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	a.Meter = app.NewMeterService(app.MeterDeps{
		Store:   store,
		Events:  events,
		Clock:   clock.Real{},
		IDGen:   idgen.UUID{},
		Logger:  logger,
		Metrics: a.Metrics,
	}, app.MeterConfig{
		Limits: quota.Config{
			HourlyLimit: cfg.Quota.HourlyLimit,
			DailyLimit:  cfg.Quota.DailyLimit,
		},
		RetentionDays:    cfg.Retention.Days,
		SweepMinInterval: cfg.Retention.SweepMinInterval,
		StoreTimeout:     cfg.Store.Timeout,
	})

	// Quota limits follow config file changes without a restart.
	if holder != nil {
		holder.OnChange(func(c *config.Config) {
			a.Meter.UpdateLimits(quota.Config{
				HourlyLimit: c.Quota.HourlyLimit,
				DailyLimit:  c.Quota.DailyLimit,
			})
		})
	}

	a.initHTTPServer(cfg)
	return a, nil
}

func (a *App) buildStores(cfg *config.Config) (ports.UsageStore, ports.EventStore, error) {
	switch cfg.Database.Driver {
	case "memory":
		a.Logger.Info().Msg("using in-memory store")
		return memory.NewUsageStore(), memory.NewEventStore(), nil
	default:
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		a.DB = db
		a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("database initialized")
		return sqlite.NewUsageStore(db), sqlite.NewEventStore(db), nil
	}
}

func (a *App) initHTTPServer(cfg *config.Config) {
	handler := meterhttp.NewHandler(a.Meter, a.Logger, Version)
	router := handler.Routes()

	if a.Metrics != nil {
		router.Handle(cfg.Metrics.Path, promhttp.Handler())
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	a.HTTPServer = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	a.Logger.Info().Str("addr", addr).Msg("http server configured")
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	if a.holder != nil {
		if err := a.holder.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch unavailable")
		}
		a.holder.WatchSignals()
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// Close releases resources without the server shutdown path.
// Used by one-shot administrative commands.
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// bootLogger is used before the config is loaded.
func bootLogger() zerolog.Logger {
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
