package database

import (
	"context"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
)

const (
	defaultAttempts   = 3
	defaultRetryDelay = 500 * time.Millisecond
)

// Executor runs raw SQL with a bounded retry loop.
type Executor struct {
	db       *gorm.DB
	attempts int
	delay    time.Duration
}

// NewExecutor wraps db with the default policy of 3 attempts, 500ms apart.
func NewExecutor(db *gorm.DB) *Executor {
	return &Executor{db: db, attempts: defaultAttempts, delay: defaultRetryDelay}
}

// WithRetry returns a copy using a different retry policy.
func (e *Executor) WithRetry(attempts int, delay time.Duration) *Executor {
	if attempts < 1 {
		attempts = 1
	}
	return &Executor{db: e.db, attempts: attempts, delay: delay}
}

// DB exposes the underlying handle.
func (e *Executor) DB() *gorm.DB {
	return e.db
}

// Query scans the rows of query into dest. dest may be a pointer to a slice of
// structs, a struct, or *[]map[string]any.
func (e *Executor) Query(ctx context.Context, dest any, query string, params ...any) error {
	return e.retry(ctx, query, params, func(db *gorm.DB) error {
		return db.Raw(query, params...).Scan(dest).Error
	})
}

// Exec runs a statement that returns no rows and reports the affected row count.
func (e *Executor) Exec(ctx context.Context, query string, params ...any) (int64, error) {
	var affected int64
	err := e.retry(ctx, query, params, func(db *gorm.DB) error {
		res := db.Exec(query, params...)
		affected = res.RowsAffected
		return res.Error
	})
	return affected, err
}

func (e *Executor) retry(ctx context.Context, query string, params []any, fn func(db *gorm.DB) error) error {
	head := firstLine(query)

	var err error
	for attempt := 1; attempt <= e.attempts; attempt++ {
		if err = fn(e.db.WithContext(ctx)); err == nil {
			return nil
		}
		if attempt == e.attempts || ctx.Err() != nil {
			break
		}

		log.Printf("[database] query failed, retrying (%d left) query=%q: %v", e.attempts-attempt, head, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.delay):
		}
	}

	log.Printf("[database] query error query=%q: %v", head, err)
	return err
}

func firstLine(query string) string {
	query = strings.TrimSpace(query)
	if idx := strings.IndexByte(query, '\n'); idx >= 0 {
		return strings.TrimSpace(query[:idx])
	}
	return query
}
