package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/corebanking/digibank/internal/domain"
)

const payeeColumns = "id, owner_user_id, payee_user_id, payee_email, label, status, created_at"

func scanPayee(row pgx.Row, p *domain.Payee) error {
	return row.Scan(&p.ID, &p.OwnerUserID, &p.PayeeUserID, &p.PayeeEmail, &p.Label, &p.Status, &p.CreatedAt)
}

func (s *Store) PayeeForOwner(ctx context.Context, payeeID, ownerUserID int64) (*domain.Payee, error) {
	var p domain.Payee
	err := scanPayee(s.db.QueryRow(ctx,
		"SELECT "+payeeColumns+" FROM payees WHERE id = $1 AND owner_user_id = $2",
		payeeID, ownerUserID), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payee: %w", err)
	}
	return &p, nil
}

func (s *Store) PayeeByUsers(ctx context.Context, ownerUserID, payeeUserID int64) (*domain.Payee, error) {
	var p domain.Payee
	err := scanPayee(s.db.QueryRow(ctx,
		"SELECT "+payeeColumns+" FROM payees WHERE owner_user_id = $1 AND payee_user_id = $2",
		ownerUserID, payeeUserID), &p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payee by users: %w", err)
	}
	return &p, nil
}

func (s *Store) ActivePayees(ctx context.Context, ownerUserID int64) ([]domain.Payee, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+payeeColumns+" FROM payees WHERE owner_user_id = $1 AND status = $2 ORDER BY id ASC",
		ownerUserID, domain.PayeeActive)
	if err != nil {
		return nil, fmt.Errorf("list payees: %w", err)
	}
	defer rows.Close()

	var payees []domain.Payee
	for rows.Next() {
		var p domain.Payee
		if err := scanPayee(rows, &p); err != nil {
			return nil, fmt.Errorf("scan payee: %w", err)
		}
		payees = append(payees, p)
	}
	return payees, rows.Err()
}

func (t *pgTx) InsertPayee(ctx context.Context, p *domain.Payee) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO payees (owner_user_id, payee_user_id, payee_email, label, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		p.OwnerUserID, p.PayeeUserID, p.PayeeEmail, p.Label, p.Status,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert payee: %w", domain.ErrDuplicate)
		}
		return fmt.Errorf("insert payee failed: %w", err)
	}
	return nil
}

func (t *pgTx) UpdatePayeeStatus(ctx context.Context, payeeID int64, status string) error {
	tag, err := t.tx.Exec(ctx,
		"UPDATE payees SET status = $1, updated_at = now() WHERE id = $2", status, payeeID)
	if err != nil {
		return fmt.Errorf("update payee status: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return domain.ErrNotFound
	}
	return nil
}
