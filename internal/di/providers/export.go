package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/estudio-ia/studio-server/internal/config"
	"github.com/estudio-ia/studio-server/internal/events"
	"github.com/estudio-ia/studio-server/internal/export"
)

// CatalogHandle wraps the preset catalog and its file watcher.
type CatalogHandle struct {
	*export.Catalog
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *CatalogHandle) Shutdown() error {
	h.cancel()
	return nil
}

// ProvideCatalog loads custom presets and reloads them when the file changes.
func ProvideCatalog(i do.Injector) (*CatalogHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)

	catalog := export.NewCatalog(cfg.Export.PresetsFile, log.Logger.Logger)
	if err := catalog.Load(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := catalog.Watch(ctx); err != nil {
			log.Error("Preset watcher failed", "error", err)
		}
	}()

	return &CatalogHandle{Catalog: catalog, cancel: cancel}, nil
}

// ExportServiceHandle wraps the export orchestrator with shutdown capability.
type ExportServiceHandle struct {
	*export.Service
}

// Shutdown implements do.Shutdownable.
func (h *ExportServiceHandle) Shutdown() error {
	return h.Service.Shutdown()
}

// ProvideExportService builds the orchestrator, recovers persisted jobs and
// starts the workers.
func ProvideExportService(i do.Injector) (*ExportServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	catalog := do.MustInvoke[*CatalogHandle](i)
	notifier := do.MustInvoke[*events.Notifier](i)

	svc := export.NewService(
		export.Config{
			MaxConcurrent:  cfg.Export.MaxConcurrent,
			OutputDir:      cfg.Export.OutputDir,
			PhaseDeadlines: cfg.Export.PhaseDeadlines,
		},
		storeHandle.Backend,
		export.NewSimulatedEncoder(cfg.Export.StepDelayScale),
		catalog.Catalog,
		notifier,
		log.Logger.Logger,
	)

	if err := svc.Start(context.Background()); err != nil {
		return nil, err
	}

	log.Info("Export service started",
		"max_concurrent", cfg.Export.MaxConcurrent,
		"output_dir", cfg.Export.OutputDir)

	return &ExportServiceHandle{Service: svc}, nil
}
