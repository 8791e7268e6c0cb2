package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ArchPull/internal/handler/api"
	"ArchPull/internal/usecase"
	pkgch "ArchPull/pkg/clickhouse"
	"ArchPull/pkg/config"
	xhttp "ArchPull/pkg/http"
	applogger "ArchPull/pkg/logger"
)

// App encapsulates the application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    *api.HistoryEchoHandler
	retriever  *usecase.Retriever
	chClient   *pkgch.Client
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler *api.HistoryEchoHandler,
	retriever *usecase.Retriever,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		log:       log,
		handler:   handler,
		retriever: retriever,
		chClient:  chClient,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
		if metricsPath == "" {
			metricsPath = "/metrics"
		}
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("archpull started",
		applogger.String("server", string(a.retriever.Server())),
		applogger.Strings("pvs", a.retriever.PVs()),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
