package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yadielglz/littlesprout-sub001/internal/config"
)

// NewStoreFromConfig creates a SQLiteStore based on the database config
// type. The sqlite variant keeps one database file per device under the
// configured data directory.
func NewStoreFromConfig(cfg config.DatabaseConfig, deviceID string) (*SQLiteStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, deviceID+".db"))
	case "memory":
		return NewSQLiteStore(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
