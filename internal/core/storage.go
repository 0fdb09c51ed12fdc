package core

import (
	"fmt"

	"herdcore/internal/config"
	"herdcore/internal/infra/persistence/memory"
	"herdcore/internal/infra/persistence/postgres"
	"herdcore/internal/infra/persistence/sqlite"
)

// OpenPersistentStore builds the store selected by cfg.Driver. The sqlite
// and postgres stores hydrate from their backing database before returning.
func OpenPersistentStore(cfg config.StorageConfig, engine *RulesEngine) (PersistentStore, error) {
	switch cfg.Driver {
	case config.StorageMemory:
		return memory.NewStore(engine), nil
	case config.StorageSQLite, "":
		return sqlite.NewStore(cfg.SQLitePath, engine)
	case config.StoragePostgres:
		return postgres.NewStore(cfg.PostgresDSN, engine)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
