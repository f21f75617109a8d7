// Package store persists complaints and order change requests and loads runtime settings.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yorozuya/autochat/internal/config"
	"github.com/yorozuya/autochat/internal/model"
)

// Options controls GORM/PostgreSQL connectivity.
type Options struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        gormlogger.LogLevel
}

// Store is the gorm-backed persistence layer.
type Store struct {
	db *gorm.DB
}

// Open connects to PostgreSQL.
func Open(opts Options) (*Store, error) {
	if opts.DSN == "" {
		return nil, fmt.Errorf("database DSN is empty")
	}
	if opts.LogLevel == 0 {
		opts.LogLevel = gormlogger.Warn
	}

	db, err := gorm.Open(postgres.Open(opts.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(opts.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("retrieve sql db: %w", err)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	return &Store{db: db}, nil
}

// New wraps an existing connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&complaintRow{}, &changeRequestRow{}, &settingsRow{}, &shopAutoReplyRow{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UpsertComplaint writes a complaint, replacing any prior complaint for the same invoice.
func (s *Store) UpsertComplaint(ctx context.Context, rec model.ComplaintRecord) error {
	if err := upsertComplaint(s.db.WithContext(ctx), newComplaintRow(rec, time.Now())).Error; err != nil {
		return fmt.Errorf("upsert complaint %s: %w", rec.InvoiceNumber, err)
	}
	return nil
}

// UpsertChangeRequest writes a change request, replacing any prior request for the same invoice.
func (s *Store) UpsertChangeRequest(ctx context.Context, rec model.ChangeRequestRecord) error {
	if err := upsertChangeRequest(s.db.WithContext(ctx), newChangeRequestRow(rec, time.Now())).Error; err != nil {
		return fmt.Errorf("upsert change request %s: %w", rec.InvoiceNumber, err)
	}
	return nil
}

// LoadSettings reads the settings row. A missing row yields empty settings.
func (s *Store) LoadSettings(ctx context.Context) (config.StoredSettings, error) {
	var row settingsRow
	err := s.db.WithContext(ctx).Order("id").First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return config.StoredSettings{}, nil
	}
	if err != nil {
		return config.StoredSettings{}, fmt.Errorf("load settings: %w", err)
	}
	return row.toStored(), nil
}

// LoadShopAutoReply reads the per-shop auto-reply flags.
func (s *Store) LoadShopAutoReply(ctx context.Context) (map[int64]bool, error) {
	var rows []shopAutoReplyRow
	if err := s.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load shop auto-reply: %w", err)
	}
	shops := make(map[int64]bool, len(rows))
	for _, r := range rows {
		shops[r.ShopID] = r.Enabled
	}
	return shops, nil
}
