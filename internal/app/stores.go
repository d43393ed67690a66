// Package app wires the configured backends for the binaries.
package app

import (
	"context"
	"fmt"

	"madrasa/internal/assignment"
	"madrasa/internal/attendance"
	"madrasa/internal/auth"
	"madrasa/internal/config"
	"madrasa/internal/logger"
	"madrasa/internal/memstore"
	"madrasa/internal/school"
	"madrasa/internal/store"
)

// Stores groups the repositories of one backend.
type Stores struct {
	School      school.Store
	Records     attendance.Store
	Assignments assignment.Store
	Tokens      auth.TokenStore

	db *store.DB
}

// OpenStores connects to cfg.StoreDriver. SQL backends are migrated when
// migrate is true.
func OpenStores(ctx context.Context, cfg config.App, migrate bool) (*Stores, error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn().Msg("using in-memory store, data is lost on exit")
		mem := memstore.New()
		return &Stores{School: mem, Records: mem, Assignments: mem, Tokens: mem}, nil
	}

	db, err := store.NewDB(cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("connect %s: %w", cfg.StoreDriver, err)
	}
	if migrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Stores{
		School:      school.NewRepository(db),
		Records:     attendance.NewRepository(db),
		Assignments: assignment.NewRepository(db),
		Tokens:      auth.NewTokenRepository(db),
		db:          db,
	}, nil
}

// DB returns the SQL handle, or nil for the memory store.
func (s *Stores) DB() *store.DB { return s.db }

// Healthy reports whether the backend answers.
func (s *Stores) Healthy(ctx context.Context) bool {
	if s.db == nil {
		return true
	}
	return s.db.Healthy(ctx)
}

// Close releases the backend.
func (s *Stores) Close() error {
	return s.db.Close()
}

// Engine builds the attendance engine over s.
func (s *Stores) Engine(cfg config.App, opts ...attendance.Option) *attendance.Engine {
	opts = append([]attendance.Option{attendance.WithPersistPending(cfg.PersistPending)}, opts...)
	return attendance.NewEngine(s.School, s.Records, opts...)
}
