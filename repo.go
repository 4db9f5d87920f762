package docgate

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// TokenStore persists scoped tokens so restarts and replicas can reuse an
// unexpired token instead of creating a new one.
//
// All methods accept a context for cancellation and timeout control.
// Implementations must be safe for concurrent use.
type TokenStore interface {
	// Load returns the token saved under key.
	//
	// Returns ErrNotFound if nothing is stored under key.
	Load(ctx context.Context, key string) (ScopedToken, error)

	// Save stores token under key, replacing any previous token.
	Save(ctx context.Context, key string, token ScopedToken) error

	// Delete removes the token stored under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// Tables holds configurable table names for token storage.
// This allows several gateways to share one database.
type Tables struct {
	Tokens string `mapstructure:"tokens"`
}

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// IsValidTableName checks if a table name is valid (lowercase, alphanumeric with underscores, max 63 chars).
func IsValidTableName(name string) bool {
	return validTableNameRegex.MatchString(name) && len(name) <= 63
}

// Validate checks that all required table names are set and valid.
func (t Tables) Validate() error {
	if t.Tokens == "" {
		return errors.New("validate tables: tokens table name cannot be empty")
	}

	if !IsValidTableName(t.Tokens) {
		return fmt.Errorf("validate tables: invalid tokens table name: %s (must match ^[a-z_][a-z0-9_]*$ and be <= 63 chars)", t.Tokens)
	}

	return nil
}
