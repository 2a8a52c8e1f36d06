// Package di provides dependency injection configuration for the traildig server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/traildig/traildig-server/internal/auth"
	"github.com/traildig/traildig-server/internal/config"
	"github.com/traildig/traildig-server/internal/di/providers"
	"github.com/traildig/traildig-server/internal/logger"
	"github.com/traildig/traildig-server/internal/metrics"
	"github.com/traildig/traildig-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
// The loader carries the command-line flags the configuration is read with.
func NewContainer(loader *config.Loader) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, loader)
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideConfigWatcher)
	do.Provide(injector, providers.ProvideAuthKey)
	do.Provide(injector, providers.ProvideMetrics)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Auth layer
	do.Provide(injector, providers.ProvideTokenService)

	// Business services
	do.Provide(injector, providers.ProvideSessionService)
	do.Provide(injector, providers.ProvideAuthService)
	do.Provide(injector, providers.ProvideTagResolver)
	do.Provide(injector, providers.ProvideWorkSessionService)
	do.Provide(injector, providers.ProvideTagService)

	// Workers
	do.Provide(injector, providers.ProvideSessionCleanupJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and starts the HTTP server.
// This triggers lazy initialization of every provider.
func Bootstrap(injector *do.RootScope) error {
	if err := InitServices(injector); err != nil {
		return err
	}

	if _, err := do.Invoke[*providers.ConfigWatcher](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SessionCleanupJob](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}

	providers.TriggerSearchReindexIfNeeded(injector)

	return nil
}

// InitServices initializes the storage and business layers without starting
// the server or background jobs. Admin commands use it.
func InitServices(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*metrics.Metrics](injector)

	if _, err := do.Invoke[providers.AuthKey](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*auth.TokenService](injector); err != nil {
		return err
	}

	_ = do.MustInvoke[*service.SearchService](injector)
	_ = do.MustInvoke[*service.SessionService](injector)
	_ = do.MustInvoke[*service.AuthService](injector)
	_ = do.MustInvoke[*service.TagResolver](injector)
	_ = do.MustInvoke[*service.WorkSessionService](injector)
	_ = do.MustInvoke[*service.TagService](injector)

	return nil
}
