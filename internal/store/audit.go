package store

import (
	"context"
	"fmt"

	"github.com/corebanking/digibank/internal/domain"
)

// RecordAudit writes the audit fact on the caller's transaction so it commits
// or rolls back together with the change it describes.
func (t *pgTx) RecordAudit(ctx context.Context, rec *domain.AuditLog) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO audit_log (actor_user_id, action, entity_type, entity_id, details)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		rec.ActorUserID, rec.Action, rec.EntityType, rec.EntityID, rec.Details,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit insert failed: %w", err)
	}
	return nil
}
