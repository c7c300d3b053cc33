package tokenstore

import (
	"fmt"

	"github.com/odvcencio/vulnpilot/pkg/config"
)

// Open returns the backend selected by cfg.Storage.Backend.
func Open(cfg *config.Config) (Store, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	switch cfg.Storage.Backend {
	case config.StoreBackendMemory:
		return NewMemoryStore(), nil
	case config.StoreBackendSQLite:
		return NewSQLiteStore(cfg.DBFilePath())
	case config.StoreBackendFile, "":
		return NewFileStore(cfg.TokenFilePath())
	default:
		return nil, fmt.Errorf("unknown token store backend %q", cfg.Storage.Backend)
	}
}
