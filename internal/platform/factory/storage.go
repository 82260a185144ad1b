package factory

import (
	"fmt"

	"github.com/taskrooms/taskrooms/internal/config"
	"github.com/taskrooms/taskrooms/internal/store"
	"github.com/taskrooms/taskrooms/internal/store/postgres"
	"github.com/taskrooms/taskrooms/internal/store/sqlite"
)

// NewStore selects the storage adapter based on cfg.DBDriver.
func NewStore(cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		db, err := postgres.Open(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(db); err != nil {
			return nil, err
		}
		return postgres.NewWithDB(db), nil
	case "sqlite":
		return sqlite.New(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER: %s", cfg.DBDriver)
	}
}
