package store

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"appointments-api/internal/config"
	"appointments-api/internal/model"
	"appointments-api/internal/timefmt"
)

// appointmentRow maps the appointments table for gorm. DATETIME columns are
// scanned as time.Time (the DSN sets parseTime) and rendered back through
// timefmt.
type appointmentRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Title     string    `gorm:"type:varchar(255);not null"`
	StartTime time.Time `gorm:"type:datetime;not null"`
	EndTime   time.Time `gorm:"type:datetime;not null"`
	DoctorID  *int64
}

func (appointmentRow) TableName() string { return "appointments" }

type MySQL struct {
	db *gorm.DB
}

func NewMySQL(cfg config.DB) (*MySQL, error) {
	gl := logger.New(
		log.Default(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)
	db, err := gorm.Open(mysql.Open(cfg.MySQLDSN()), &gorm.Config{Logger: gl})
	if err != nil {
		return nil, fmt.Errorf("mysql: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("mysql pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MaxConns)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return &MySQL{db: db}, nil
}

func (s *MySQL) List(ctx context.Context) ([]model.Appointment, error) {
	var rows []appointmentRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.Appointment, len(rows))
	for i, r := range rows {
		out[i] = model.Appointment{
			ID:        r.ID,
			Title:     r.Title,
			StartTime: timefmt.Format(r.StartTime),
			EndTime:   timefmt.Format(r.EndTime),
			DoctorID:  r.DoctorID,
		}
	}
	return out, nil
}

func (s *MySQL) Create(ctx context.Context, a *model.Appointment) error {
	start, err := time.ParseInLocation(timefmt.Layout, a.StartTime, time.UTC)
	if err != nil {
		return fmt.Errorf("start_time: %w", err)
	}
	end, err := time.ParseInLocation(timefmt.Layout, a.EndTime, time.UTC)
	if err != nil {
		return fmt.Errorf("end_time: %w", err)
	}
	row := appointmentRow{Title: a.Title, StartTime: start, EndTime: end, DoctorID: a.DoctorID}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	a.ID = row.ID
	return nil
}

func (s *MySQL) UpdateTimes(ctx context.Context, id int64, start, end string) error {
	res := s.db.WithContext(ctx).Exec(
		`UPDATE appointments SET start_time = ?, end_time = ? WHERE id = ?`,
		start, end, id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MySQL) Delete(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Exec(`DELETE FROM appointments WHERE id = ?`, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MySQL) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *MySQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
