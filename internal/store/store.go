package store

import (
	"context"
	"errors"
	"fmt"

	"appointments-api/internal/config"
	"appointments-api/internal/model"
)

var ErrNotFound = errors.New("appointment not found")

// Store is the persistence surface the HTTP handlers depend on. Every
// implementation is safe for concurrent use and owns a bounded connection
// pool that replaces broken connections on its own.
type Store interface {
	List(ctx context.Context) ([]model.Appointment, error)
	Create(ctx context.Context, a *model.Appointment) error
	UpdateTimes(ctx context.Context, id int64, start, end string) error
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
	Close() error
}

// Open connects to the backend named by cfg.Driver and verifies it answers.
func Open(ctx context.Context, cfg config.DB) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		st, err = NewPostgres(ctx, cfg)
	case config.DriverMySQL:
		st, err = NewMySQL(cfg)
	case config.DriverSQLite:
		st, err = NewSQLite(ctx, cfg.Path)
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Ping(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return st, nil
}
