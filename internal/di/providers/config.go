// Package providers contains dependency injection providers for the studio server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/estudio-ia/studio-server/internal/config"
	"github.com/estudio-ia/studio-server/internal/logger"
)

// ProvideConfig provides the application configuration, built from the
// command-line flags registered on the injector.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	flags, err := do.Invoke[config.Flags](i)
	if err != nil {
		flags = config.Flags{}
	}
	return config.LoadConfig(flags)
}

// LoggerHandle wraps the logger so the rotated log file is closed on shutdown.
type LoggerHandle struct {
	*logger.Logger
}

// Shutdown implements do.Shutdownable.
func (h *LoggerHandle) Shutdown() error {
	return h.Close()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*LoggerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	lc := logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		Format:      cfg.Logger.Format,
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	}
	if cfg.Logger.File != "" {
		lc.File = &logger.FileConfig{
			Path:       cfg.Logger.File,
			MaxSizeMB:  cfg.Logger.MaxSizeMB,
			MaxBackups: cfg.Logger.MaxBackups,
			MaxAgeDays: cfg.Logger.MaxAgeDays,
			Compress:   true,
		}
	}
	log := logger.New(lc)

	log.Info("Starting studio server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"storage_backend", cfg.Storage.Backend,
		"data_path", cfg.Storage.DataPath,
		"max_concurrent_exports", cfg.Export.MaxConcurrent,
	)

	return &LoggerHandle{Logger: log}, nil
}
