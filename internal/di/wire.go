//go:build wireinject
// +build wireinject

package di

import (
	"OutSift/pkg/config"
	"OutSift/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,

		// Repositories
		ProvideArchive,
		ProvidePublisher,
		ProvideSnapshotQueue,

		// Evaluation loop
		ProvideSession,
		ProvideEvaluator,
		ProvideFeedbackHandler,
		ProvideObservationCollector,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
