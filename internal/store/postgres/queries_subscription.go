package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/basesub/subscriptions/internal/domain"
)

// InsertSubscriptionParams is the sqlc-style params struct for InsertSubscription.
type InsertSubscriptionParams struct {
	ID                 domain.SubscriptionID
	AccountID          int64
	BeneficiaryAddress string
	Provider           string
	Testnet            bool
}

// InsertSubscription inserts a subscription row in status=processing.
// Returns a unique-violation error if the id already exists; the
// caller (CreateSubscriptionWithOrder) reports that as Created=false.
func (q *Queries) InsertSubscription(ctx context.Context, arg InsertSubscriptionParams) error {
	const query = `
INSERT INTO subscriptions (subscription_id, status, account_id, beneficiary_address, provider, testnet, created_at, modified_at)
VALUES ($1, 'processing', $2, $3, $4, $5, now(), now())`
	_, err := q.db.Exec(ctx, query, arg.ID[:], arg.AccountID, arg.BeneficiaryAddress, arg.Provider, arg.Testnet)
	return err
}

// GetSubscription fetches one subscription row.
func (q *Queries) GetSubscription(ctx context.Context, id domain.SubscriptionID) (*domain.Subscription, error) {
	const query = `
SELECT subscription_id, status, account_id, beneficiary_address, provider, testnet, created_at, modified_at
FROM subscriptions WHERE subscription_id = $1`
	row := q.db.QueryRow(ctx, query, id[:])
	return scanSubscription(row)
}

// GetSubscriptionForUpdate locks the subscription row for the
// duration of the enclosing transaction. No Store method calls it.
func (q *Queries) GetSubscriptionForUpdate(ctx context.Context, id domain.SubscriptionID) (*domain.Subscription, error) {
	const query = `
SELECT subscription_id, status, account_id, beneficiary_address, provider, testnet, created_at, modified_at
FROM subscriptions WHERE subscription_id = $1 FOR UPDATE`
	row := q.db.QueryRow(ctx, query, id[:])
	return scanSubscription(row)
}

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var s domain.Subscription
	var idBytes []byte
	var status string
	if err := row.Scan(&idBytes, &status, &s.AccountID, &s.BeneficiaryAddress, &s.Provider, &s.Testnet, &s.CreatedAt, &s.ModifiedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, err
	}
	copy(s.ID[:], idBytes)
	s.Status = domain.SubscriptionStatus(status)
	return &s, nil
}

// UpdateSubscriptionStatus bumps status and modified_at.
func (q *Queries) UpdateSubscriptionStatus(ctx context.Context, id domain.SubscriptionID, status domain.SubscriptionStatus) error {
	const query = `UPDATE subscriptions SET status = $2, modified_at = now() WHERE subscription_id = $1`
	_, err := q.db.Exec(ctx, query, id[:], string(status))
	return err
}

// ListSubscriptions returns an account's subscriptions, optionally
// filtered by testnet flag, newest first.
func (q *Queries) ListSubscriptions(ctx context.Context, accountID int64, testnet *bool) ([]domain.Subscription, error) {
	query := `
SELECT subscription_id, status, account_id, beneficiary_address, provider, testnet, created_at, modified_at
FROM subscriptions WHERE account_id = $1`
	args := []any{accountID}
	if testnet != nil {
		query += ` AND testnet = $2`
		args = append(args, *testnet)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Subscription
	for rows.Next() {
		var s domain.Subscription
		var idBytes []byte
		var status string
		if err := rows.Scan(&idBytes, &status, &s.AccountID, &s.BeneficiaryAddress, &s.Provider, &s.Testnet, &s.CreatedAt, &s.ModifiedAt); err != nil {
			return nil, err
		}
		copy(s.ID[:], idBytes)
		s.Status = domain.SubscriptionStatus(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetAccountByID and GetAccountByWalletAddress back §6's auth path.
func (q *Queries) GetAccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	const query = `SELECT id, wallet_address, external_auth_user_id, subscription_owner_wallet, created_at FROM accounts WHERE id = $1`
	return scanAccount(q.db.QueryRow(ctx, query, id))
}

func (q *Queries) GetAccountByWalletAddress(ctx context.Context, wallet string) (*domain.Account, error) {
	const query = `SELECT id, wallet_address, external_auth_user_id, subscription_owner_wallet, created_at FROM accounts WHERE wallet_address = $1`
	return scanAccount(q.db.QueryRow(ctx, query, wallet))
}

// UpsertAccount inserts an account for wallet on first sight; on
// conflict it leaves the row untouched (subscription_owner_wallet is
// set-once via a separate path, not here).
func (q *Queries) UpsertAccount(ctx context.Context, wallet string, externalAuthUserID *string) (*domain.Account, error) {
	const query = `
INSERT INTO accounts (wallet_address, external_auth_user_id, created_at)
VALUES ($1, $2, now())
ON CONFLICT (wallet_address) DO UPDATE SET wallet_address = accounts.wallet_address
RETURNING id, wallet_address, external_auth_user_id, subscription_owner_wallet, created_at`
	return scanAccount(q.db.QueryRow(ctx, query, wallet, externalAuthUserID))
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	var externalAuthUserID, subOwner pgtype.Text
	if err := row.Scan(&a.ID, &a.WalletAddress, &externalAuthUserID, &subOwner, &a.CreatedAt); err != nil {
		return nil, err
	}
	if externalAuthUserID.Valid {
		a.ExternalAuthUserID = &externalAuthUserID.String
	}
	if subOwner.Valid {
		a.SubscriptionOwnerWallet = &subOwner.String
	}
	return &a, nil
}
