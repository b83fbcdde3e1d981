// Package di provides dependency injection configuration for the studio server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/estudio-ia/studio-server/internal/config"
	"github.com/estudio-ia/studio-server/internal/di/providers"
	"github.com/estudio-ia/studio-server/internal/events"
)

// NewContainer creates and configures the DI container with all providers.
// flags are the command-line values that take precedence over the environment.
func NewContainer(flags config.Flags) *do.RootScope {
	injector := do.New()

	do.ProvideValue(injector, flags)

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)

	// Events
	do.Provide(injector, providers.ProvideNotifier)
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideEventMirror)

	// Export orchestration
	do.Provide(injector, providers.ProvideCatalog)
	do.Provide(injector, providers.ProvideExportService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services in dependency order.
// This triggers lazy initialization; the HTTP server is listening when it returns.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.LoggerHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*events.Notifier](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	if _, err := do.Invoke[*providers.EventMirrorHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.CatalogHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.ExportServiceHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}
