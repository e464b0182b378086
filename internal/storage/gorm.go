package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/forestpark/assistant/backend/internal/database"
)

// Gorm stores slots in the chat_store_entries table.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) GetItem(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}

	var entry database.StoreEntry
	err := g.db.WithContext(ctx).Where("store_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load store entry: %w", err)
	}
	return entry.Value, true, nil
}

func (g *Gorm) SetItem(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}

	entry := database.StoreEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "store_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("save store entry: %w", err)
	}
	return nil
}

func (g *Gorm) RemoveItem(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := g.db.WithContext(ctx).Where("store_key = ?", key).Delete(&database.StoreEntry{}).Error; err != nil {
		return fmt.Errorf("delete store entry: %w", err)
	}
	return nil
}

// Close is a no-op; the database handle is owned by the caller.
func (g *Gorm) Close() error { return nil }
