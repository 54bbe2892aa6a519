package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gitevents/pkg/storage"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config mirrors the storage configuration for the events table.
type Config struct {
	Driver      string
	DSN         string
	Table       string
	AutoMigrate bool
}

// Store implements storage.EventStore on top of GORM.
type Store struct {
	db    *gorm.DB
	table string
}

type row struct {
	ID           string     `gorm:"column:id;size:36;primaryKey"`
	DeliveryID   string     `gorm:"column:delivery_id;size:64"`
	EventType    string     `gorm:"column:event_type;size:16;not null"`
	Author       string     `gorm:"column:author;size:255;not null"`
	FromBranch   string     `gorm:"column:from_branch;size:255"`
	ToBranch     string     `gorm:"column:to_branch;size:255;not null"`
	Timestamp    *time.Time `gorm:"column:timestamp;index"`
	RawTimestamp string     `gorm:"column:raw_timestamp;size:64"`
	Message      string     `gorm:"column:message;type:text;not null"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
}

// Open creates a GORM-backed event store.
func Open(cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("storage dsn is required")
	}
	driver := NormalizeDriver(cfg.Driver)
	if driver == "" {
		return nil, fmt.Errorf("unsupported storage driver: %q", cfg.Driver)
	}

	gormDB, err := openGorm(driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	table := cfg.Table
	if table == "" {
		table = "events"
	}
	store := &Store{
		db:    gormDB,
		table: table,
	}
	if cfg.AutoMigrate {
		if err := store.Migrate(); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

// Close closes the underlying DB connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InsertEvent writes a single event record.
func (s *Store) InsertEvent(ctx context.Context, record storage.EventRecord) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if record.ID == "" {
		return errors.New("event id is required")
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	data := toRow(record)
	return s.tableDB().WithContext(ctx).Create(&data).Error
}

// FindRecentEvents returns up to limit records, newest timestamp first.
// Records without a timestamp sort after every timestamped record.
func (s *Store) FindRecentEvents(ctx context.Context, limit int) ([]storage.EventRecord, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	var data []row
	query := s.tableDB().
		WithContext(ctx).
		Order("CASE WHEN timestamp IS NULL THEN 1 ELSE 0 END").
		Order("timestamp desc").
		Order("created_at desc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&data).Error; err != nil {
		return nil, err
	}
	records := make([]storage.EventRecord, 0, len(data))
	for _, item := range data {
		records = append(records, fromRow(item))
	}
	return records, nil
}

// Migrate creates or updates the events table.
func (s *Store) Migrate() error {
	return s.tableDB().AutoMigrate(&row{})
}

func (s *Store) tableDB() *gorm.DB {
	return s.db.Table(s.table)
}

func toRow(record storage.EventRecord) row {
	return row{
		ID:           record.ID,
		DeliveryID:   record.DeliveryID,
		EventType:    string(record.EventType),
		Author:       record.Author,
		FromBranch:   record.FromBranch,
		ToBranch:     record.ToBranch,
		Timestamp:    record.Timestamp,
		RawTimestamp: record.RawTimestamp,
		Message:      record.Message,
		CreatedAt:    record.CreatedAt,
	}
}

func fromRow(data row) storage.EventRecord {
	var ts *time.Time
	if data.Timestamp != nil {
		utc := data.Timestamp.UTC()
		ts = &utc
	}
	return storage.EventRecord{
		ID:           data.ID,
		DeliveryID:   data.DeliveryID,
		EventType:    storage.EventType(data.EventType),
		Author:       data.Author,
		FromBranch:   data.FromBranch,
		ToBranch:     data.ToBranch,
		Timestamp:    ts,
		RawTimestamp: data.RawTimestamp,
		Message:      data.Message,
		CreatedAt:    data.CreatedAt.UTC(),
	}
}

// NormalizeDriver maps driver aliases to the GORM dialect name, or "" if unsupported.
func NormalizeDriver(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "postgres", "postgresql", "pgx":
		return "postgres"
	case "mysql":
		return "mysql"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return ""
	}
}

func openGorm(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case "postgres":
		return gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "mysql":
		return gorm.Open(mysql.Open(dsn), &gorm.Config{})
	case "sqlite":
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", driver)
	}
}
