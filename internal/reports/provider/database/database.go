// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/wneessen/incident-ar/internal/reports"
)

const (
	name = "database"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrDBRequired        = errors.New("database handle is required")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// reportModel mirrors the reports table of the backend.
type reportModel struct {
	ID          string  `gorm:"primaryKey;size:36"`
	UserID      string  `gorm:"size:36;index"`
	Category    string  `gorm:"size:32;not null;index"`
	Description string  `gorm:"type:text"`
	Latitude    float64 `gorm:"not null;index:idx_reports_lat_lon"`
	Longitude   float64 `gorm:"not null;index:idx_reports_lat_lon"`
	ImageURL    *string
	Status      string `gorm:"size:32;not null;default:pending"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (reportModel) TableName() string {
	return "reports"
}

// validationModel is a citizen confirming a report.
type validationModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	ReportID  string `gorm:"size:36;not null;uniqueIndex:idx_validation_report_user"`
	UserID    string `gorm:"size:36;not null;uniqueIndex:idx_validation_report_user"`
	CreatedAt time.Time
}

func (validationModel) TableName() string {
	return "report_validations"
}

// reportRow is a report joined with its validation count.
type reportRow struct {
	reportModel
	ValidationsCount int
}

// Database reads reports straight from the backend's SQL database.
type Database struct {
	db *gorm.DB
}

// Open connects to the database using the given driver ("postgres" or "sqlite") and DSN.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return db, nil
}

// New returns a report source using db.
func New(db *gorm.DB) (*Database, error) {
	if db == nil {
		return nil, ErrDBRequired
	}
	return &Database{db: db}, nil
}

func (d *Database) Name() string {
	return name
}

// Migrate creates or updates the report tables.
func (d *Database) Migrate() error {
	return d.db.AutoMigrate(&reportModel{}, &validationModel{})
}

// Close closes the underlying connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// List returns all reports, newest first, with their validation counts.
func (d *Database) List(ctx context.Context) ([]reports.Report, error) {
	var rows []reportRow
	err := d.db.WithContext(ctx).
		Model(&reportModel{}).
		Select("reports.*, (SELECT COUNT(*) FROM report_validations rv WHERE rv.report_id = reports.id) AS validations_count").
		Order("reports.created_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}

	records := make([]reports.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, reports.Record{
			ID:               row.ID,
			UserID:           row.UserID,
			Category:         row.Category,
			Description:      row.Description,
			Latitude:         row.Latitude,
			Longitude:        row.Longitude,
			ImageURL:         row.ImageURL,
			Status:           row.Status,
			CreatedAt:        row.CreatedAt.UTC().Format(time.RFC3339Nano),
			UpdatedAt:        row.UpdatedAt.UTC().Format(time.RFC3339Nano),
			ValidationsCount: row.ValidationsCount,
		})
	}
	return reports.FromRecords(records)
}

// Import upserts the given reports. It is used to seed a local database from a report file.
func (d *Database) Import(ctx context.Context, list []reports.Report) error {
	if len(list) == 0 {
		return nil
	}
	models := make([]reportModel, 0, len(list))
	for _, r := range list {
		models = append(models, toModel(r))
	}
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&models).Error
	if err != nil {
		return fmt.Errorf("failed to import reports: %w", err)
	}
	return nil
}

func toModel(r reports.Report) reportModel {
	m := reportModel{
		ID:          r.ID.String(),
		Category:    string(r.Category),
		Description: r.Description,
		Latitude:    r.Location.Lat,
		Longitude:   r.Location.Lon,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.ID == uuid.Nil {
		m.ID = uuid.NewString()
	}
	if r.UserID != uuid.Nil {
		m.UserID = r.UserID.String()
	}
	if r.ImageURL != "" {
		img := r.ImageURL
		m.ImageURL = &img
	}
	if m.Status == "" {
		m.Status = string(reports.StatusPending)
	}
	return m
}
