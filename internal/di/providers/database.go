package providers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/estudio-ia/studio-server/internal/config"
	"github.com/estudio-ia/studio-server/internal/store"
	"github.com/estudio-ia/studio-server/internal/store/sqlite"
)

// StoreHandle wraps the configured storage backend with shutdown capability.
type StoreHandle struct {
	store.Backend
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the badger or sqlite backend under the data path.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)

	if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	var (
		backend store.Backend
		dbPath  string
		err     error
	)
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		dbPath = filepath.Join(cfg.Storage.DataPath, "studio.db")
		backend, err = sqlite.Open(dbPath, log.Logger.Logger)
	default:
		dbPath = filepath.Join(cfg.Storage.DataPath, "db")
		backend, err = store.New(dbPath, log.Logger.Logger)
	}
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "backend", cfg.Storage.Backend, "path", dbPath)

	return &StoreHandle{Backend: backend}, nil
}
