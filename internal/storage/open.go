package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/turnos-io/turnos/internal/shift"
)

// Store is a shift.Repository that can report its health and release its resources.
type Store interface {
	shift.Repository
	HealthCheck(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*ShiftStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

// Open returns the store selected by cfg.Backend. The PostgreSQL store is connected
// and pinged before it is returned.
func Open(cfg *Config, logger *slog.Logger) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage configuration: %w", err)
	}

	if cfg.UsesMemory() {
		logger.Warn("Using in-memory shift store; records are lost on exit")

		return NewMemoryStore(), nil
	}

	conn, err := NewConnection(cfg)
	if err != nil {
		return nil, err
	}

	store, err := NewShiftStore(conn, WithStoreLogger(logger))
	if err != nil {
		_ = conn.Close()

		return nil, err
	}

	logger.Info("Connected to shift store",
		slog.String("database_url", cfg.MaskDatabaseURL()),
		slog.Int("database_max_open_conns", cfg.MaxOpenConns),
		slog.Int("database_max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("database_conn_max_lifetime", cfg.ConnMaxLifetime),
	)

	return store, nil
}
