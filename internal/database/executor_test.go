package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Executor {
	t.Helper()
	db, err := Open("sqlite", "file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return NewExecutor(db)
}

func TestOpenRunsMigrations(t *testing.T) {
	exec := openMemory(t)
	migrator := exec.DB().Migrator()

	assert.True(t, migrator.HasTable(&User{}))
	assert.True(t, migrator.HasTable(&ChatMessage{}))
	assert.True(t, migrator.HasTable("chat_store_entries"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	assert.Error(t, err)
}

func TestExecutorExecAndQuery(t *testing.T) {
	exec := openMemory(t)
	ctx := context.Background()
	now := time.Now().UTC()

	affected, err := exec.Exec(ctx,
		"INSERT INTO chat_messages (user_id, content, role, created_at) VALUES (?, ?, ?, ?)",
		"7", "你好", "user", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	var rows []map[string]any
	require.NoError(t, exec.Query(ctx, &rows, "SELECT user_id, content FROM chat_messages WHERE user_id = ?", "7"))
	require.Len(t, rows, 1)
	assert.EqualValues(t, "你好", rows[0]["content"])

	var typed []ChatMessage
	require.NoError(t, exec.Query(ctx, &typed, "SELECT * FROM chat_messages"))
	require.Len(t, typed, 1)
	assert.Equal(t, "user", typed[0].Role)
}

func TestExecutorGivesUpAfterRetries(t *testing.T) {
	exec := openMemory(t).WithRetry(2, time.Millisecond)

	var rows []map[string]any
	err := exec.Query(context.Background(), &rows, "SELECT * FROM missing_table")
	assert.Error(t, err)
}

func TestExecutorStopsOnCancelledContext(t *testing.T) {
	exec := openMemory(t).WithRetry(5, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := exec.Exec(ctx, "DELETE FROM missing_table")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "SELECT id", firstLine("\n  SELECT id\n  FROM users\n"))
	assert.Equal(t, "DELETE FROM x", firstLine("DELETE FROM x"))
}
