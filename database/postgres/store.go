package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagarc03/docgate"
)

type store struct {
	pool      *pgxpool.Pool
	tableName string
}

func (s *store) Load(ctx context.Context, key string) (docgate.ScopedToken, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT token_id, access_uri, issued_at, expires_at
		FROM %s
		WHERE cache_key = $1`, pgx.Identifier{s.tableName}.Sanitize())

	var t docgate.ScopedToken
	err := s.pool.QueryRow(ctx, query, key).Scan(&t.ID, &t.AccessURI, &t.IssuedAt, &t.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return docgate.ScopedToken{}, docgate.ErrNotFound
		}
		return docgate.ScopedToken{}, fmt.Errorf("load token: %w", err)
	}

	return t, nil
}

func (s *store) Save(ctx context.Context, key string, t docgate.ScopedToken) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (cache_key, token_id, access_uri, issued_at, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (cache_key) DO UPDATE SET
			token_id = EXCLUDED.token_id,
			access_uri = EXCLUDED.access_uri,
			issued_at = EXCLUDED.issued_at,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()`, pgx.Identifier{s.tableName}.Sanitize())

	if _, err := s.pool.Exec(ctx, query, key, t.ID, t.AccessURI, t.IssuedAt, t.ExpiresAt); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	return nil
}

func (s *store) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE cache_key = $1`, pgx.Identifier{s.tableName}.Sanitize()) //nolint:gosec // table name is validated

	if _, err := s.pool.Exec(ctx, query, key); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	return nil
}
