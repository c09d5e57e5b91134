package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/basesub/subscriptions/internal/domain"
)

// InsertApiKey stores a newly minted key. Only the hash and preview
// are persisted; the full secret never reaches storage.
func (q *Queries) InsertApiKey(ctx context.Context, k domain.ApiKey) error {
	const query = `
INSERT INTO api_keys (id, account_id, key_hash, key_preview, name, enabled, created_at)
VALUES ($1, $2, $3, $4, $5, $6, now())`
	_, err := q.db.Exec(ctx, query, k.ID, k.AccountID, k.KeyHash, k.KeyPreview, k.Name, k.Enabled)
	return err
}

// GetApiKeyByHash looks a key up by its hash for request authentication.
func (q *Queries) GetApiKeyByHash(ctx context.Context, keyHash string) (*domain.ApiKey, error) {
	const query = `
SELECT id, account_id, key_hash, key_preview, name, enabled, created_at, last_used_at
FROM api_keys WHERE key_hash = $1`
	return scanApiKey(q.db.QueryRow(ctx, query, keyHash))
}

// ListApiKeys returns every key belonging to an account, newest first.
func (q *Queries) ListApiKeys(ctx context.Context, accountID int64) ([]domain.ApiKey, error) {
	const query = `
SELECT id, account_id, key_hash, key_preview, name, enabled, created_at, last_used_at
FROM api_keys WHERE account_id = $1 ORDER BY created_at DESC`
	rows, err := q.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ApiKey
	for rows.Next() {
		k, err := scanApiKeyRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

func scanApiKey(row pgx.Row) (*domain.ApiKey, error)    { return scanApiKeyRow(row) }
func scanApiKeyRow(row pgx.Row) (*domain.ApiKey, error) {
	var k domain.ApiKey
	var lastUsedAt pgtype.Timestamptz
	if err := row.Scan(&k.ID, &k.AccountID, &k.KeyHash, &k.KeyPreview, &k.Name, &k.Enabled, &k.CreatedAt, &lastUsedAt); err != nil {
		return nil, err
	}
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		k.LastUsedAt = &t
	}
	return &k, nil
}

// UpdateApiKey patches name and/or enabled; nil fields are left untouched.
func (q *Queries) UpdateApiKey(ctx context.Context, id uuid.UUID, name *string, enabled *bool) error {
	const query = `
UPDATE api_keys SET name = COALESCE($2, name), enabled = COALESCE($3, enabled) WHERE id = $1`
	_, err := q.db.Exec(ctx, query, id, name, enabled)
	return err
}

// DeleteApiKey permanently removes a key.
func (q *Queries) DeleteApiKey(ctx context.Context, id uuid.UUID) error {
	const query = `DELETE FROM api_keys WHERE id = $1`
	_, err := q.db.Exec(ctx, query, id)
	return err
}

// TouchApiKeyLastUsed stamps last_used_at on a successful auth.
func (q *Queries) TouchApiKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	const query = `UPDATE api_keys SET last_used_at = now() WHERE id = $1`
	_, err := q.db.Exec(ctx, query, id)
	return err
}
