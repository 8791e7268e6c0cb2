//go:build wireinject
// +build wireinject

package di

import (
	"ArchPull/pkg/config"
	"ArchPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideFetchCache,
		ProvideArchiverClient,
		ProvideClickHouseClient,
		ProvideDatasetStore,

		// Core
		ProvideEngine,
		ProvideRetriever,

		// API and application server
		ProvideHistoryHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
