// Package pgstore provides the Postgres backend for hosted deployments.
// Records live in a single key-value table; batches commit inside one
// database transaction.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dyatelok/secret-santa/internal/storage"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Record struct {
	Key   string `gorm:"primaryKey;column:key"`
	Value []byte `gorm:"column:value"`
}

func (Record) TableName() string {
	return "kv_records"
}

type Store struct {
	db *gorm.DB
}

// Open connects to Postgres and migrates the key-value table.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting sql db: %w", err)
	}
	return sqlDB.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var rec Record
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return rec.Value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if err := s.db.
		WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).
		Create(&Record{Key: key, Value: value}).
		Error; err != nil {
		return fmt.Errorf("putting record: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&Record{}).Error; err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	return nil
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	var count int64
	if err := s.db.
		WithContext(ctx).
		Model(&Record{}).
		Where("key = ?", key).
		Count(&count).
		Error; err != nil {
		return false, fmt.Errorf("checking record: %w", err)
	}
	return count > 0, nil
}

// Apply commits the whole batch inside one transaction.
func (s *Store) Apply(ctx context.Context, batch *storage.Batch) error {
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range batch.Ops() {
			if op.Delete {
				if err := tx.Where("key = ?", op.Key).Delete(&Record{}).Error; err != nil {
					return fmt.Errorf("deleting %q: %w", op.Key, err)
				}
				continue
			}
			if err := tx.
				Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "key"}},
					DoUpdates: clause.AssignmentColumns([]string{"value"}),
				}).
				Create(&Record{Key: op.Key, Value: op.Value}).
				Error; err != nil {
				return fmt.Errorf("putting %q: %w", op.Key, err)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("in tx: %w", err)
	}
	return nil
}

func (s *Store) CountPrefix(ctx context.Context, prefix string) (int, error) {
	var count int64
	if err := s.db.
		WithContext(ctx).
		Model(&Record{}).
		Where("key LIKE ?", escapeLike(prefix)+"%").
		Count(&count).
		Error; err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return int(count), nil
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
