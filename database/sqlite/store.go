package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sagarc03/docgate"
)

type store struct {
	db        *sql.DB
	tableName string
}

func (s *store) Load(ctx context.Context, key string) (docgate.ScopedToken, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT token_id, access_uri, issued_at, expires_at
		FROM %s
		WHERE cache_key = ?`, quoteIdentifier(s.tableName))

	var t docgate.ScopedToken
	var issuedAt, expiresAt string

	err := s.db.QueryRowContext(ctx, query, key).Scan(&t.ID, &t.AccessURI, &issuedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return docgate.ScopedToken{}, docgate.ErrNotFound
		}
		return docgate.ScopedToken{}, fmt.Errorf("load token: %w", err)
	}

	t.IssuedAt, err = time.Parse(time.RFC3339Nano, issuedAt)
	if err != nil {
		return docgate.ScopedToken{}, fmt.Errorf("load token: parse issued_at: %w", err)
	}

	t.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt)
	if err != nil {
		return docgate.ScopedToken{}, fmt.Errorf("load token: parse expires_at: %w", err)
	}

	return t, nil
}

func (s *store) Save(ctx context.Context, key string, t docgate.ScopedToken) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (cache_key, token_id, access_uri, issued_at, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			token_id = excluded.token_id,
			access_uri = excluded.access_uri,
			issued_at = excluded.issued_at,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`, quoteIdentifier(s.tableName))

	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx, query,
		key, t.ID, t.AccessURI,
		t.IssuedAt.UTC().Format(time.RFC3339Nano),
		t.ExpiresAt.UTC().Format(time.RFC3339Nano),
		now,
	)
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	return nil
}

func (s *store) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE cache_key = ?`, quoteIdentifier(s.tableName)) //nolint:gosec // table name is validated

	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}

	return nil
}
