package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/corebanking/digibank/internal/domain"
)

// transferSelect joins both legs' owners so replies can carry direction and
// counterparty without extra round trips.
const transferSelect = `
SELECT t.id, t.from_account_id, t.to_account_id, t.amount_cents, t.currency, t.status,
       t.idempotency_key, t.created_at, t.updated_at,
       fu.id, fu.email, tu.id, tu.email
FROM transfers t
JOIN accounts fa ON fa.id = t.from_account_id
JOIN users fu ON fu.id = fa.user_id
JOIN accounts ta ON ta.id = t.to_account_id
JOIN users tu ON tu.id = ta.user_id`

func scanTransfer(row pgx.Row, t *domain.Transfer) error {
	return row.Scan(
		&t.ID, &t.FromAccountID, &t.ToAccountID, &t.AmountCents, &t.Currency, &t.Status,
		&t.IdempotencyKey, &t.CreatedAt, &t.UpdatedAt,
		&t.FromUserID, &t.FromEmail, &t.ToUserID, &t.ToEmail,
	)
}

func (s *Store) TransferByKeyForActor(ctx context.Context, key string, actorUserID int64) (*domain.Transfer, error) {
	var t domain.Transfer
	err := scanTransfer(s.db.QueryRow(ctx,
		transferSelect+" WHERE t.idempotency_key = $1 AND fu.id = $2", key, actorUserID), &t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	return &t, nil
}

func (s *Store) TransferKeyExists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM transfers WHERE idempotency_key = $1)", key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("idempotency existence check failed: %w", err)
	}
	return exists, nil
}

func (s *Store) TransfersPage(ctx context.Context, actorUserID int64, limit int, before *domain.Cursor) ([]domain.Transfer, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if before == nil {
		rows, err = s.db.Query(ctx,
			transferSelect+`
			WHERE fu.id = $1 OR tu.id = $1
			ORDER BY t.created_at DESC, t.id DESC
			LIMIT $2`, actorUserID, limit)
	} else {
		rows, err = s.db.Query(ctx,
			transferSelect+`
			WHERE (fu.id = $1 OR tu.id = $1)
			  AND (t.created_at < $2 OR (t.created_at = $2 AND t.id < $3))
			ORDER BY t.created_at DESC, t.id DESC
			LIMIT $4`, actorUserID, before.CreatedAt, before.ID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("transfer page query failed: %w", err)
	}
	defer rows.Close()

	var page []domain.Transfer
	for rows.Next() {
		var t domain.Transfer
		if err := scanTransfer(rows, &t); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		page = append(page, t)
	}
	return page, rows.Err()
}

func (t *pgTx) InsertTransfer(ctx context.Context, tr *domain.Transfer) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO transfers (from_account_id, to_account_id, amount_cents, currency, status, idempotency_key)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		tr.FromAccountID, tr.ToAccountID, tr.AmountCents, tr.Currency, tr.Status, tr.IdempotencyKey,
	).Scan(&tr.ID, &tr.CreatedAt, &tr.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("transfer insert: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("transfer insert failed: %w", err)
	}
	return nil
}

// InsertLedgerEntries writes both legs in one statement, the way the balance
// invariant is stated: debit and credit exist together or not at all.
func (t *pgTx) InsertLedgerEntries(ctx context.Context, debit, credit *domain.LedgerEntry) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO ledger_entries (transfer_id, account_id, direction, amount_cents, currency)
		 VALUES ($1, $2, $3, $4, $5), ($6, $7, $8, $9, $10)`,
		debit.TransferID, debit.AccountID, debit.Direction, debit.AmountCents, debit.Currency,
		credit.TransferID, credit.AccountID, credit.Direction, credit.AmountCents, credit.Currency)
	if err != nil {
		return fmt.Errorf("ledger entry failed: %w", err)
	}
	return nil
}
