package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVEntry is the row layout of the SQL backed store.
type KVEntry struct {
	Key       string `gorm:"column:entry_key;primaryKey;size:255"`
	Value     []byte
	UpdatedAt time.Time
}

func (KVEntry) TableName() string {
	return "kv_entries"
}

// GormStore implements Store on a single SQL table through gorm, so any of the
// sqlite, postgres or mysql drivers can back it.
type GormStore struct {
	db *gorm.DB
	// keyExpr is the key column as compared and sorted by List.
	keyExpr string
}

// NewGormStore migrates the kv_entries table and returns the store.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&KVEntry{}); err != nil {
		return nil, fmt.Errorf("migrating kv_entries: %w", err)
	}
	return &GormStore{db: db, keyExpr: keyOrdering(db.Dialector.Name())}, nil
}

// keyOrdering makes range scans follow byte order. Postgres otherwise compares
// with the database locale, where ':' and ';' don't sort like bytes.
func keyOrdering(dialect string) string {
	if dialect == "postgres" {
		return `entry_key COLLATE "C"`
	}
	return "entry_key"
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var entry KVEntry
	result := s.db.WithContext(ctx).Where("entry_key = ?", key).First(&entry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, result.Error
	}
	return entry.Value, nil
}

func (s *GormStore) Put(ctx context.Context, key string, value []byte) error {
	entry := KVEntry{Key: key, Value: value, UpdatedAt: time.Now()}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry)
	return result.Error
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	result := s.db.WithContext(ctx).Delete(&KVEntry{}, "entry_key = ?", key)
	return result.Error
}

func (s *GormStore) List(ctx context.Context, prefix string, cursor string, limit int) (*ListResult, error) {
	if err := checkCursor(prefix, cursor); err != nil {
		return nil, err
	}
	limit = listLimit(limit)

	// Range scan instead of LIKE so that '_' and '%' in keys need no escaping.
	query := s.db.WithContext(ctx).Model(&KVEntry{}).Where(s.keyExpr+" >= ?", prefix)
	if end := prefixEnd(prefix); end != "" {
		query = query.Where(s.keyExpr+" < ?", end)
	}
	if cursor != "" {
		query = query.Where(s.keyExpr+" > ?", cursor)
	}

	var keys []string
	if result := query.Order(s.keyExpr).Limit(limit+1).Pluck("entry_key", &keys); result.Error != nil {
		return nil, result.Error
	}
	return page(keys, limit), nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
