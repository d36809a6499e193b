package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/corebanking/digibank/internal/domain"
)

// PayeeService manages a user's payee directory and implements
// PayeeDirectory for the transfer engine.
type PayeeService struct {
	store Store
	log   *zap.Logger
}

func NewPayeeService(store Store, log *zap.Logger) *PayeeService {
	return &PayeeService{store: store, log: log}
}

// Add registers another user as a payee by email. Re-adding a disabled payee
// re-enables it; a duplicate active payee is a conflict.
func (s *PayeeService) Add(ctx context.Context, ownerUserID int64, email, label string) (domain.Payee, error) {
	var zero domain.Payee

	email, err := normalizeEmail(email)
	if err != nil {
		return zero, err
	}
	label = strings.TrimSpace(label)

	payeeUser, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return zero, domain.Validationf("payee email not found")
		}
		return zero, err
	}
	if payeeUser.ID == ownerUserID {
		return zero, domain.Validationf("cannot add yourself as payee")
	}

	existing, err := s.store.PayeeByUsers(ctx, ownerUserID, payeeUser.ID)
	switch {
	case err == nil:
		if existing.Status != domain.PayeeDisabled {
			return zero, domain.ErrDuplicate
		}
		existing.Status = domain.PayeeActive
		if label != "" {
			existing.Label = label
		}
		err = s.store.WithinTx(ctx, func(tx Tx) error {
			if err := tx.UpdatePayeeStatus(ctx, existing.ID, domain.PayeeActive); err != nil {
				return err
			}
			return tx.RecordAudit(ctx, payeeAudit(ownerUserID, "PAYEE_ENABLE", existing))
		})
		if err != nil {
			return zero, err
		}
		return *existing, nil
	case !errors.Is(err, domain.ErrNotFound):
		return zero, err
	}

	p := domain.Payee{
		OwnerUserID: ownerUserID,
		PayeeUserID: payeeUser.ID,
		PayeeEmail:  email,
		Label:       label,
		Status:      domain.PayeeActive,
	}
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.InsertPayee(ctx, &p); err != nil {
			return err
		}
		return tx.RecordAudit(ctx, payeeAudit(ownerUserID, "PAYEE_ADD", &p))
	})
	if err != nil {
		return zero, err
	}

	s.log.Info("payee added", zap.Int64("owner_user_id", ownerUserID), zap.Int64("payee_id", p.ID))
	return p, nil
}

// List returns the owner's ACTIVE payees in ascending id order.
func (s *PayeeService) List(ctx context.Context, ownerUserID int64) ([]domain.Payee, error) {
	return s.store.ActivePayees(ctx, ownerUserID)
}

// Disable deactivates a payee. Disabling twice is a no-op.
func (s *PayeeService) Disable(ctx context.Context, ownerUserID, payeeID int64) (domain.Payee, error) {
	var zero domain.Payee

	p, err := s.store.PayeeForOwner(ctx, payeeID, ownerUserID)
	if err != nil {
		return zero, err
	}

	if p.Status != domain.PayeeDisabled {
		p.Status = domain.PayeeDisabled
		err = s.store.WithinTx(ctx, func(tx Tx) error {
			if err := tx.UpdatePayeeStatus(ctx, p.ID, domain.PayeeDisabled); err != nil {
				return err
			}
			return tx.RecordAudit(ctx, payeeAudit(ownerUserID, "PAYEE_DISABLE", p))
		})
		if err != nil {
			return zero, err
		}
	}

	return *p, nil
}

// ResolveDestination maps (actor, payee) to the account the transfer engine
// should credit: the payee owner's ACTIVE chequing account in the requested
// currency. Unknown, foreign and disabled payees all resolve identically to
// not-found.
func (s *PayeeService) ResolveDestination(ctx context.Context, actorUserID, payeeID int64, currency string) (*domain.PayeeDestination, error) {
	p, err := s.store.PayeeForOwner(ctx, payeeID, actorUserID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.PayeeActive {
		return nil, domain.ErrNotFound
	}

	acct, err := s.store.DestinationAccount(ctx, p.PayeeUserID, currency)
	if err != nil {
		return nil, err
	}

	return &domain.PayeeDestination{
		PayeeID:     p.ID,
		AccountID:   acct.ID,
		OwnerUserID: p.PayeeUserID,
	}, nil
}

func payeeAudit(actorUserID int64, action string, p *domain.Payee) *domain.AuditLog {
	return &domain.AuditLog{
		ActorUserID: actorUserID,
		Action:      action,
		EntityType:  "payee",
		EntityID:    strconv.FormatInt(p.ID, 10),
		Details:     fmt.Sprintf("payee_email=%s, payee_user_id=%d", p.PayeeEmail, p.PayeeUserID),
	}
}

func normalizeEmail(email string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return "", domain.Validationf("email is required")
	}
	return e, nil
}
