package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"meetinghost/internal/acceptor"
	"meetinghost/internal/api"
	"meetinghost/internal/config"
	"meetinghost/internal/directory"
	"meetinghost/internal/hub"
	"meetinghost/internal/lifecycle"
	"meetinghost/internal/meeting"
	"meetinghost/internal/metrics"
	"meetinghost/internal/validation"
	"meetinghost/internal/websocket"
	dbconfig "meetinghost/pkg/database"
	"meetinghost/pkg/interfaces"
)

// Application wires every component from a Config.
// Initialization order: directory, metrics, meetings, validation, hub,
// acceptors, HTTP.
type Application struct {
	config     *config.Config
	directory  interfaces.Directory
	closeDir   func() error
	metricsReg *prometheus.Registry
	hub        *hub.Hub
	tcp        *acceptor.Acceptor
	httpServer *http.Server
	httpAddr   net.Addr
	logger     *slog.Logger
}

// NewApplication builds the component tree without opening listeners.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dir, closeDir, err := OpenDirectory(cfg.Directory)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mt := metrics.New(metrics.WithRegistry(reg))

	registry := meeting.NewRegistry(meeting.Config{
		EventPollInterval:      cfg.Meeting.EventPollInterval,
		HeartbeatCheckInterval: cfg.Meeting.HeartbeatCheckInterval,
		HeartbeatTimeout:       cfg.Meeting.HeartbeatTimeout,
		CloseCheckInterval:     cfg.Meeting.CloseCheckInterval,
		PipelinePollInterval:   cfg.Meeting.PipelinePollInterval,
	}, mt)

	validator := validation.NewValidator(dir, validation.Config{
		ResponseTimeout:  cfg.Validation.ResponseTimeout,
		PollInterval:     cfg.Validation.PollInterval,
		DirectoryTimeout: cfg.Directory.Timeout,
	})

	h := hub.New(hub.DefaultConfig(), registry, validator, hub.NewRateLimiter(cfg.RateLimit.ConnectionsPerMinute, 0), mt)
	tcp := acceptor.New(cfg.ServerAddr(), cfg.Server.AcceptTimeout, mt)
	h.AddAcceptor(tcp)

	app := &Application{
		config:     cfg,
		directory:  dir,
		closeDir:   closeDir,
		metricsReg: reg,
		hub:        h,
		tcp:        tcp,
		logger:     slog.Default().With("component", "app"),
	}

	if cfg.HTTP.Enabled {
		opts := []api.Option{
			api.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		}
		if cfg.WebSocket.Enabled {
			ws := websocket.NewHandler(websocket.Settings{
				WriteTimeout: cfg.WebSocket.WriteTimeout,
				PongWait:     cfg.WebSocket.PongWait,
				PingInterval: cfg.WebSocket.PingInterval,
				InboxSize:    cfg.WebSocket.BufferSize,
			}, cfg.WebSocket.AllowedOrigins, mt)
			h.Attach(ws)
			opts = append(opts, api.WithWebSocket(cfg.WebSocket.Path, ws))
		}
		app.httpServer = &http.Server{
			Addr:         cfg.HTTPAddr(),
			Handler:      api.NewServer(registry, dir, opts...),
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		}
	}

	return app, nil
}

// OpenDirectory builds the configured directory and its closer.
func OpenDirectory(cfg *config.DirectoryConfig) (interfaces.Directory, func() error, error) {
	switch cfg.Driver {
	case config.DirectorySQLite:
		dbCfg := dbconfig.DefaultConfig()
		dbCfg.DatabasePath = cfg.DatabasePath
		store, err := directory.OpenStore(dbCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open directory store: %w", err)
		}
		return store, store.Close, nil
	case config.DirectoryHTTP:
		return directory.NewHTTPClient(cfg.URL, cfg.Timeout), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown directory driver %q", cfg.Driver)
	}
}

// Start opens the TCP listener through the hub, then the HTTP listener.
func (app *Application) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := app.hub.Start(); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}
	if !app.directory.IsAvailable(ctx) {
		app.logger.Warn("directory is not reachable yet, clients will be refused until it is", "driver", app.config.Directory.Driver)
	}

	if app.httpServer != nil {
		listener, err := net.Listen("tcp", app.httpServer.Addr)
		if err != nil {
			app.stopHub(ctx)
			return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
		}
		app.httpAddr = listener.Addr()
		go func() {
			if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.logger.Error("HTTP server error", "error", err)
			}
		}()
		app.logger.Info("HTTP server listening", "address", app.httpAddr.String())
	}

	app.logger.Info("meeting host started", "tcp", app.GetAddr())
	return nil
}

// Stop closes the HTTP server, stops the component tree and waits for it
// within ctx, then closes the directory.
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("shutting down")

	var errs []error
	if app.httpServer != nil {
		if err := app.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
		}
	}
	if err := app.stopHub(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := app.closeDir(); err != nil {
		errs = append(errs, fmt.Errorf("directory close: %w", err))
	}

	app.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

func (app *Application) stopHub(ctx context.Context) error {
	if app.hub.State() != lifecycle.StateRunning {
		return nil
	}
	if err := app.hub.Stop(); err != nil {
		return err
	}
	return app.hub.WaitStopped(ctx, app.config.Meeting.EventPollInterval)
}

// GetAddr returns the TCP listener address, resolved once started.
func (app *Application) GetAddr() string {
	if addr, err := app.tcp.Addr(); err == nil {
		return addr.String()
	}
	return app.config.ServerAddr()
}

// GetHTTPAddr returns the HTTP listener address, or "" when disabled.
func (app *Application) GetHTTPAddr() string {
	if app.httpAddr != nil {
		return app.httpAddr.String()
	}
	if app.httpServer != nil {
		return app.httpServer.Addr
	}
	return ""
}

// Hub exposes the root component.
func (app *Application) Hub() *hub.Hub {
	return app.hub
}
