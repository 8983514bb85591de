package database

import (
	"fmt"

	"filecat/internal/config"
	"filecat/internal/filecat"
)

// NewDatabaseFromConfig opens the registry database described by cfg.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, clock filecat.Clock) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("path required for sqlite database")
		}
		return NewSQLiteDatabase(cfg.Path, clock)
	case "memory":
		return NewSQLiteDatabase(":memory:", clock)
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
