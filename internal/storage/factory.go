package storage

import (
	"fmt"
	"log/slog"

	"github.com/roadrunner-sim/viewer/internal/config"
	"github.com/roadrunner-sim/viewer/internal/storage/memory"
	sqlitestorage "github.com/roadrunner-sim/viewer/internal/storage/sqlite"
)

// NewBackend creates a session recorder based on configuration.
func NewBackend(cfg config.StorageConfig, sessionID func() string, logger *slog.Logger) (Backend, error) {
	switch cfg.Type {
	case "none":
		return nopBackend{}, nil
	case "memory":
		return memory.New(cfg.TrailLength), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			TrailLength:   cfg.TrailLength,
			FlushInterval: cfg.FlushInterval,
			SessionID:     sessionID,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
