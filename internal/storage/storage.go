package storage

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/forestpark/assistant/backend/internal/config"
)

// KeyValue is a string slot store, the server-side stand-in for browser
// localStorage. A missing key is reported with ok == false, not an error.
type KeyValue interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
	Close() error
}

var ErrEmptyKey = errors.New("storage key is empty")

// New builds the backend selected by cfg.Driver. db is only used by the
// database driver and may be nil otherwise.
func New(ctx context.Context, cfg config.StorageConfig, db *gorm.DB) (KeyValue, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return NewMemory(), nil
	case config.StoreDatabase:
		if db == nil {
			return nil, errors.New("database store requires an open database")
		}
		return NewGorm(db), nil
	case config.StoreRedis:
		return NewRedis(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "chat:",
		})
	case config.StoreBolt:
		return NewBolt(cfg.BoltPath)
	default:
		return nil, fmt.Errorf("unsupported chat store driver %q", cfg.Driver)
	}
}
