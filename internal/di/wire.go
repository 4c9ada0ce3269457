//go:build wireinject
// +build wireinject

package di

import (
	"hermes/pkg/config"
	"hermes/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCacheService,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideSnapshotStore,
		ProvidePriceSource,
		ProvideNewsfeedStream,

		// Domain services
		ProvideCalibrationService,
		ProvideDelayStats,

		// Use cases
		ProvideEventProcessor,
		ProvideEventCollector,
		ProvideKafkaEventsHandler,

		// HTTP
		ProvideEventsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
