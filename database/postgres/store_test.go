package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/sagarc03/docgate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	issued := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	token := docgate.ScopedToken{
		ID:        "par-1",
		AccessURI: "/p/secret/n/ns/b/docs/o/",
		IssuedAt:  issued,
		ExpiresAt: issued.Add(time.Hour),
	}

	t.Run("load missing", func(t *testing.T) {
		_, err := store.Load(ctx, "missing")
		assert.ErrorIs(t, err, docgate.ErrNotFound)
	})

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "ns/docs", token))

		got, err := store.Load(ctx, "ns/docs")
		require.NoError(t, err)
		assert.Equal(t, token.ID, got.ID)
		assert.Equal(t, token.AccessURI, got.AccessURI)
		assert.True(t, token.IssuedAt.Equal(got.IssuedAt))
		assert.True(t, token.ExpiresAt.Equal(got.ExpiresAt))
	})

	t.Run("save replaces", func(t *testing.T) {
		replacement := docgate.ScopedToken{ID: "par-2", AccessURI: "/p/other/", IssuedAt: issued, ExpiresAt: issued.Add(2 * time.Hour)}
		require.NoError(t, store.Save(ctx, "ns/docs", replacement))

		got, err := store.Load(ctx, "ns/docs")
		require.NoError(t, err)
		assert.Equal(t, "par-2", got.ID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "ns/docs"))

		_, err := store.Load(ctx, "ns/docs")
		assert.ErrorIs(t, err, docgate.ErrNotFound)
	})
}
