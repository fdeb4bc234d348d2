package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrParamNotFound is returned when a parameter key has never been set.
var ErrParamNotFound = errors.New("param not found")

// GetParam returns the raw value stored for key.
func (db *DB) GetParam(ctx context.Context, key string) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM params WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrParamNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read param %s: %w", key, err)
	}
	return value, nil
}

// SetParam stores value for key, replacing any previous value.
func (db *DB) SetParam(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO params (key, value, updated_at) VALUES (?, ?, STRFTIME('%s', 'now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write param %s: %w", key, err)
	}
	return nil
}

// ListParams returns every stored parameter.
func (db *DB) ListParams(ctx context.Context) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM params ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list params: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
