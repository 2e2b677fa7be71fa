package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"appointments-api/internal/model"
)

// Times are stored as TEXT so the driver hands back the canonical string
// untouched; a DATETIME column would be parsed into time.Time on scan.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS appointments (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	title      TEXT NOT NULL,
	start_time TEXT NOT NULL,
	end_time   TEXT NOT NULL,
	doctor_id  INTEGER
)`

type SQLite struct {
	db *sql.DB
}

// NewSQLite opens the database at path and creates the appointments table
// when it is missing.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create appointments table: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) List(ctx context.Context) ([]model.Appointment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, start_time, end_time, doctor_id FROM appointments`)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	out := []model.Appointment{}
	for rows.Next() {
		var a model.Appointment
		if err := rows.Scan(&a.ID, &a.Title, &a.StartTime, &a.EndTime, &a.DoctorID); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) Create(ctx context.Context, a *model.Appointment) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO appointments (title, start_time, end_time, doctor_id) VALUES (?, ?, ?, ?)`,
		a.Title, a.StartTime, a.EndTime, a.DoctorID,
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	a.ID = id
	return nil
}

func (s *SQLite) UpdateTimes(ctx context.Context, id int64, start, end string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE appointments SET start_time = ?, end_time = ? WHERE id = ?`,
		start, end, id,
	)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return requireRow(res)
}

func (s *SQLite) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM appointments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	return requireRow(res)
}

func (s *SQLite) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLite) Close() error { return s.db.Close() }

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
