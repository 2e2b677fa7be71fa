package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"appointments-api/internal/config"
	"appointments-api/internal/model"
	"appointments-api/internal/timefmt"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, cfg config.DB) (*Postgres, error) {
	pc, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	pc.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool; the caller keeps ownership.
func NewPostgresFromPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) List(ctx context.Context) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, start_time, end_time, doctor_id FROM appointments`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Appointment{}
	for rows.Next() {
		var (
			a          model.Appointment
			start, end time.Time
		)
		if err := rows.Scan(&a.ID, &a.Title, &start, &end, &a.DoctorID); err != nil {
			return nil, err
		}
		a.StartTime = timefmt.Format(start)
		a.EndTime = timefmt.Format(end)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Postgres) Create(ctx context.Context, a *model.Appointment) error {
	return s.pool.QueryRow(ctx,
		`INSERT INTO appointments (title, start_time, end_time, doctor_id)
		 VALUES ($1, $2::timestamp, $3::timestamp, $4)
		 RETURNING id`,
		a.Title, a.StartTime, a.EndTime, a.DoctorID,
	).Scan(&a.ID)
}

func (s *Postgres) UpdateTimes(ctx context.Context, id int64, start, end string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET start_time = $1::timestamp, end_time = $2::timestamp WHERE id = $3`,
		start, end, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}
