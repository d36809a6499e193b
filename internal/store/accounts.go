package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/corebanking/digibank/internal/domain"
)

const accountColumns = "id, user_id, account_type, currency, balance_cents, status, created_at, updated_at"

func scanAccount(row pgx.Row, a *domain.Account) error {
	return row.Scan(&a.ID, &a.UserID, &a.Type, &a.Currency, &a.BalanceCents, &a.Status, &a.CreatedAt, &a.UpdatedAt)
}

func (s *Store) AccountsByUser(ctx context.Context, userID int64) ([]domain.Account, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE user_id = $1 ORDER BY id ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := scanAccount(rows, &a); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (s *Store) AccountForOwner(ctx context.Context, accountID, ownerUserID int64) (*domain.Account, error) {
	var a domain.Account
	err := scanAccount(s.db.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1 AND user_id = $2",
		accountID, ownerUserID), &a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

func (s *Store) DestinationAccount(ctx context.Context, ownerUserID int64, currency string) (*domain.Account, error) {
	var a domain.Account
	err := scanAccount(s.db.QueryRow(ctx,
		"SELECT "+accountColumns+` FROM accounts
		 WHERE user_id = $1 AND account_type = $2 AND upper(currency) = $3 AND status = $4`,
		ownerUserID, domain.AccountTypeChequing, currency, domain.AccountActive), &a)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve destination account: %w", err)
	}
	return &a, nil
}

// LockAccountPair acquires both row locks in ascending id order so any two
// transfers over an overlapping pair serialize instead of deadlocking.
func (t *pgTx) LockAccountPair(ctx context.Context, idA, idB int64) (*domain.Account, *domain.Account, error) {
	lo, hi := idA, idB
	if lo > hi {
		lo, hi = hi, lo
	}

	first, err := t.lockAccount(ctx, lo)
	if err != nil {
		return nil, nil, err
	}
	second, err := t.lockAccount(ctx, hi)
	if err != nil {
		return nil, nil, err
	}
	return first, second, nil
}

func (t *pgTx) lockAccount(ctx context.Context, id int64) (*domain.Account, error) {
	var a domain.Account
	err := t.tx.QueryRow(ctx,
		`SELECT a.id, a.user_id, a.account_type, a.currency, a.balance_cents, a.status, a.created_at, a.updated_at, u.email
		 FROM accounts a
		 JOIN users u ON u.id = a.user_id
		 WHERE a.id = $1
		 FOR UPDATE OF a`, id,
	).Scan(&a.ID, &a.UserID, &a.Type, &a.Currency, &a.BalanceCents, &a.Status, &a.CreatedAt, &a.UpdatedAt, &a.OwnerEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock acquisition failed: %w", err)
	}
	return &a, nil
}

func (t *pgTx) AddToBalance(ctx context.Context, accountID, deltaCents int64) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE accounts SET balance_cents = balance_cents + $1, updated_at = now() WHERE id = $2",
		deltaCents, accountID)
	if err != nil {
		return fmt.Errorf("balance update failed: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertAccount(ctx context.Context, a *domain.Account) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO accounts (user_id, account_type, currency, balance_cents, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		a.UserID, a.Type, a.Currency, a.BalanceCents, a.Status,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}
