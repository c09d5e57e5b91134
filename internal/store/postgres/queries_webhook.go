package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/basesub/subscriptions/internal/domain"
)

// UpsertWebhook inserts or replaces the single webhook row per account.
func (q *Queries) UpsertWebhook(ctx context.Context, w domain.Webhook) error {
	const query = `
INSERT INTO webhooks (account_id, url, secret, enabled, deleted_at, created_at)
VALUES ($1, $2, $3, $4, NULL, now())
ON CONFLICT (account_id) DO UPDATE SET url = $2, secret = $3, enabled = $4, deleted_at = NULL`
	_, err := q.db.Exec(ctx, query, w.AccountID, w.URL, w.Secret, w.Enabled)
	return err
}

// GetWebhook fetches the webhook configured for an account, including
// soft-deleted rows (callers check Deleted()).
func (q *Queries) GetWebhook(ctx context.Context, accountID int64) (*domain.Webhook, error) {
	const query = `
SELECT account_id, url, secret, enabled, deleted_at, created_at, last_used_at
FROM webhooks WHERE account_id = $1`
	return scanWebhook(q.db.QueryRow(ctx, query, accountID))
}

func scanWebhook(row pgx.Row) (*domain.Webhook, error) {
	var w domain.Webhook
	var deletedAt, lastUsedAt pgtype.Timestamptz
	if err := row.Scan(&w.AccountID, &w.URL, &w.Secret, &w.Enabled, &deletedAt, &w.CreatedAt, &lastUsedAt); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		w.DeletedAt = &t
	}
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		w.LastUsedAt = &t
	}
	return &w, nil
}

// RotateWebhookSecret replaces the signing secret in place.
func (q *Queries) RotateWebhookSecret(ctx context.Context, accountID int64, newSecret string) error {
	const query = `UPDATE webhooks SET secret = $2 WHERE account_id = $1`
	_, err := q.db.Exec(ctx, query, accountID, newSecret)
	return err
}

// DeleteWebhook soft-deletes a webhook.
func (q *Queries) DeleteWebhook(ctx context.Context, accountID int64) error {
	const query = `UPDATE webhooks SET deleted_at = now(), enabled = false WHERE account_id = $1`
	_, err := q.db.Exec(ctx, query, accountID)
	return err
}

// TouchWebhookLastUsed stamps last_used_at on a successful delivery.
func (q *Queries) TouchWebhookLastUsed(ctx context.Context, accountID int64) error {
	const query = `UPDATE webhooks SET last_used_at = now() WHERE account_id = $1`
	_, err := q.db.Exec(ctx, query, accountID)
	return err
}
