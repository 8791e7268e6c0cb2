package di

import (
	"context"
	"fmt"
	"time"

	"ArchPull/internal/domain/models"
	"ArchPull/internal/domain/repository"
	"ArchPull/internal/engine"
	"ArchPull/internal/handler/api"
	internalrepo "ArchPull/internal/repository"
	"ArchPull/internal/service/archiver"
	"ArchPull/internal/service/cache"
	"ArchPull/internal/usecase"
	pkgch "ArchPull/pkg/clickhouse"
	"ArchPull/pkg/config"
	applogger "ArchPull/pkg/logger"
	"ArchPull/pkg/metrics"
	"ArchPull/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideFetchCache selects the raw-fetch cache backend.
func ProvideFetchCache(cfg *config.Config) cache.BytesCache {
	if cfg.Cache.Backend == "redis" {
		return cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}
	return cache.NewTTLCache()
}

// ProvideArchiverClient creates the archiver sample source.
func ProvideArchiverClient(cfg *config.Config, bc cache.BytesCache, l *applogger.Logger) repository.SampleSource {
	return archiver.New(
		archiver.WithTimeout(cfg.Archiver.Timeout),
		archiver.WithCache(bc, cfg.Cache.TTL),
		archiver.WithLogger(l),
	)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when no host
// is configured (persistence disabled).
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if cfg.ClickHouse.Host == "" {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideDatasetStore creates the aligned-dataset store, nil when
// persistence is disabled.
func ProvideDatasetStore(chClient *pkgch.Client, cfg *config.Config) repository.DatasetStore {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewClickHouseDatasetStore(chClient.DB(), cfg.ClickHouse.Table)
}

// ProvideEngine creates the alignment engine.
func ProvideEngine(l *applogger.Logger) *engine.Engine {
	return engine.New(l)
}

// ProvideRetriever creates the retriever use case from config.
func ProvideRetriever(
	src repository.SampleSource,
	eng *engine.Engine,
	l *applogger.Logger,
	m repository.Metrics,
	store repository.DatasetStore,
	cfg *config.Config,
) (*usecase.Retriever, error) {
	setup := models.AlignSetup{
		BasePV:      cfg.Align.BasePV,
		BaseID:      cfg.Align.BaseID,
		BridgeSec:   cfg.Align.BridgeSec,
		ResampleSec: cfg.Align.ResampleSec,
		Trim:        cfg.Align.Trim != nil && *cfg.Align.Trim,
	}
	for _, pair := range cfg.Align.ValRanges {
		setup.ValRanges = append(setup.ValRanges, models.ValueRange{Low: pair[0], High: pair[1]})
	}

	p := usecase.Params{
		PVs:          []string(cfg.Archiver.PVs),
		Server:       cfg.Archiver.Server,
		StartTime:    cfg.Archiver.StartTime,
		EndTime:      cfg.Archiver.EndTime,
		DurationHour: cfg.Archiver.DurationHours,
		Setup:        &setup,
		Workers:      cfg.Archiver.Workers,
	}
	opts := []usecase.Option{usecase.WithMetrics(m)}
	if store != nil {
		opts = append(opts, usecase.WithDatasetStore(store))
	}
	return usecase.New(src, eng, l, p, opts...)
}

// ProvideHistoryHandler creates the Echo API handler.
func ProvideHistoryHandler(l *applogger.Logger, ret *usecase.Retriever) *api.HistoryEchoHandler {
	return api.NewHistoryEchoHandler(l, ret)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.HistoryEchoHandler,
	ret *usecase.Retriever,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, l, handler, ret, chClient)
}
