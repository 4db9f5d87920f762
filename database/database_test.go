package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/sagarc03/docgate"
	"github.com/sagarc03/docgate/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helpers

func newTestConfig(tableName string) database.Config {
	return database.Config{
		Type:   database.TypeSQLite,
		DSN:    ":memory:",
		Tables: docgate.Tables{Tokens: tableName},
	}
}

func setupTestDB(t *testing.T, tableName string) database.Database {
	t.Helper()
	ctx := context.Background()

	db, err := database.Connect(ctx, newTestConfig(tableName))
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// Tests for Connect routing logic

func TestConnect_SQLite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := setupTestDB(t, "test_tokens")

	err := db.Ping(ctx)
	assert.NoError(t, err)
}

func TestConnect_InvalidType(t *testing.T) {
	t.Parallel()

	cfg := newTestConfig("test_tokens")
	cfg.Type = "mysql"

	_, err := database.Connect(context.Background(), cfg)
	assert.ErrorContains(t, err, "unsupported database type")
}

func TestConnect_InvalidTableName(t *testing.T) {
	t.Parallel()

	_, err := database.Connect(context.Background(), newTestConfig("Bad-Name"))
	assert.Error(t, err)
}

func TestDatabase_ValidateBeforeMigrate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db := setupTestDB(t, "test_tokens")

	err := db.Validate(ctx)
	assert.ErrorIs(t, err, docgate.ErrMisconfigured)

	require.NoError(t, db.Migrate(ctx))
	assert.NoError(t, db.Validate(ctx))
}

func TestOpen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, cleanup, err := database.Open(ctx, newTestConfig("open_tokens"))
	require.NoError(t, err)
	defer cleanup()

	token := docgate.ScopedToken{ID: "par-1", AccessURI: "/p/x/", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Save(ctx, "ns/docs", token))

	got, err := store.Load(ctx, "ns/docs")
	require.NoError(t, err)
	assert.Equal(t, "par-1", got.ID)
}

func TestOpen_None(t *testing.T) {
	t.Parallel()

	store, cleanup, err := database.Open(context.Background(), database.Config{Type: database.TypeNone})
	require.NoError(t, err)
	assert.Nil(t, store)
	assert.NotPanics(t, cleanup)
}
