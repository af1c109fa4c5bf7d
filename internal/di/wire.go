//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"MarketRadar/pkg/config"
	"MarketRadar/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideMarketSource,
		ProvideLearningStore,
		ProvideCache,
		ProvideAlertPublisher,
		ProvideAlertStorage,

		// Services and use cases
		ProvideLearningEngine,
		ProvidePreferences,
		ProvideAlertHub,
		ProvideAlertProcessor,
		ProvideAlertPipeline,
		ProvideRadarScan,
		ProvideMarketMonitor,

		// Presentation
		ProvideRateLimiter,
		ProvideRadarHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
