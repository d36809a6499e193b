package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/corebanking/digibank/internal/domain"
)

var transferOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "digibank_transfers_total",
	Help: "Transfer requests by outcome",
}, []string{"outcome"})

// TransferService owns the only write path for balances and ledger rows.
type TransferService struct {
	store  Store
	payees PayeeDirectory
	log    *zap.Logger
}

func NewTransferService(store Store, payees PayeeDirectory, log *zap.Logger) *TransferService {
	return &TransferService{store: store, payees: payees, log: log}
}

// CreateTransferInput is one transfer intent from an authenticated actor.
type CreateTransferInput struct {
	ActorUserID    int64
	IdempotencyKey string
	FromAccountID  int64
	PayeeID        int64
	AmountCents    int64
	Currency       string
}

// Create moves AmountCents from the actor's source account to the resolved
// payee destination exactly once per idempotency key. Replays return the
// original transfer without taking locks or writing anything; fresh reports
// whether this call performed the write.
func (s *TransferService) Create(ctx context.Context, in CreateTransferInput) (view domain.TransferView, fresh bool, err error) {
	var zero domain.TransferView

	if err := domain.ValidateIdempotencyKey(in.IdempotencyKey); err != nil {
		return zero, false, err
	}
	if in.AmountCents <= 0 {
		return zero, false, domain.Validationf("amount_cents must be positive")
	}
	if in.FromAccountID <= 0 {
		return zero, false, domain.Validationf("from_account_id is required")
	}
	if in.PayeeID <= 0 {
		return zero, false, domain.Validationf("payee_id is required")
	}

	currency, err := s.normalizeCurrency(ctx, in)
	if err != nil {
		return zero, false, err
	}

	dest, err := s.payees.ResolveDestination(ctx, in.ActorUserID, in.PayeeID, currency)
	if err != nil {
		return zero, false, err
	}

	if in.FromAccountID == dest.AccountID {
		return zero, false, domain.Validationf("source and destination accounts must be different")
	}

	// Fast path: key already resolved for this actor, or held by another.
	if view, done, err := s.resolveIdempotency(ctx, in, dest, currency); done {
		return view, false, err
	}

	var created domain.Transfer
	err = s.store.WithinTx(ctx, func(tx Tx) error {
		return s.execute(ctx, tx, in, dest, currency, &created)
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			// Lost the insert race: someone committed this key between our
			// check and our insert. Resolve to the winner's row.
			view, raceErr := s.resolveInsertRace(ctx, in, err)
			return view, false, raceErr
		}
		s.countOutcome(err)
		return zero, false, err
	}

	transferOutcomes.WithLabelValues("created").Inc()
	s.log.Info("transfer completed",
		zap.Int64("transfer_id", created.ID),
		zap.Int64("from_account_id", created.FromAccountID),
		zap.Int64("to_account_id", created.ToAccountID),
		zap.Int64("amount_cents", created.AmountCents),
		zap.String("currency", created.Currency),
	)

	return created.ViewFor(in.ActorUserID), true, nil
}

// normalizeCurrency applies the default (the source account's home currency)
// and enforces the 3-letter shape.
func (s *TransferService) normalizeCurrency(ctx context.Context, in CreateTransferInput) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		src, err := s.store.AccountForOwner(ctx, in.FromAccountID, in.ActorUserID)
		if err != nil {
			return "", err
		}
		currency = src.Currency
	}

	if len(currency) != 3 {
		return "", domain.Validationf("currency must be a 3-letter code")
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return "", domain.Validationf("currency must be a 3-letter code")
		}
	}
	return currency, nil
}

// resolveIdempotency implements the pre-insert key check. done is true when
// the request is settled here, either as a replay or as a conflict.
func (s *TransferService) resolveIdempotency(ctx context.Context, in CreateTransferInput, dest *domain.PayeeDestination, currency string) (domain.TransferView, bool, error) {
	var zero domain.TransferView

	existing, err := s.store.TransferByKeyForActor(ctx, in.IdempotencyKey, in.ActorUserID)
	switch {
	case err == nil:
		if sameFingerprint(existing, in, dest, currency) {
			transferOutcomes.WithLabelValues("replayed").Inc()
			return existing.ViewFor(in.ActorUserID), true, nil
		}
		transferOutcomes.WithLabelValues("conflict").Inc()
		return zero, true, domain.ErrConflictingReplay
	case !errors.Is(err, domain.ErrNotFound):
		return zero, true, err
	}

	taken, err := s.store.TransferKeyExists(ctx, in.IdempotencyKey)
	if err != nil {
		return zero, true, err
	}
	if taken {
		transferOutcomes.WithLabelValues("conflict").Inc()
		return zero, true, domain.ErrKeyAlreadyUsed
	}

	return zero, false, nil
}

// resolveInsertRace re-resolves the key after a unique-constraint violation.
// The losing request must observe the winner's row, not an error.
func (s *TransferService) resolveInsertRace(ctx context.Context, in CreateTransferInput, insertErr error) (domain.TransferView, error) {
	var zero domain.TransferView

	winner, err := s.store.TransferByKeyForActor(ctx, in.IdempotencyKey, in.ActorUserID)
	if err == nil {
		transferOutcomes.WithLabelValues("replayed").Inc()
		return winner.ViewFor(in.ActorUserID), nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return zero, err
	}

	taken, err := s.store.TransferKeyExists(ctx, in.IdempotencyKey)
	if err != nil {
		return zero, err
	}
	if taken {
		transferOutcomes.WithLabelValues("conflict").Inc()
		return zero, domain.ErrKeyAlreadyUsed
	}
	return zero, insertErr
}

// execute runs the locked write path: guard, invariants, transfer row, both
// ledger legs, both balance updates and the audit fact, all on one tx.
func (s *TransferService) execute(ctx context.Context, tx Tx, in CreateTransferInput, dest *domain.PayeeDestination, currency string, out *domain.Transfer) error {
	lo, hi, err := tx.LockAccountPair(ctx, in.FromAccountID, dest.AccountID)
	if err != nil {
		return err
	}

	// Roles are recovered from ids only after both locks are held.
	src, dst := lo, hi
	if hi.ID == in.FromAccountID {
		src, dst = hi, lo
	}

	if src.UserID != in.ActorUserID {
		return domain.ErrNotFound
	}
	if dst.UserID != dest.OwnerUserID {
		return domain.ErrNotFound
	}
	if src.Status != domain.AccountActive {
		return domain.Validationf("source account is not active")
	}
	if dst.Status != domain.AccountActive {
		return domain.Validationf("destination account is not active")
	}
	if src.Currency != currency || dst.Currency != currency {
		return domain.Validationf("currency must match both accounts")
	}
	if src.BalanceCents < in.AmountCents {
		return domain.ErrInsufficientFunds
	}

	t := domain.Transfer{
		FromAccountID:  src.ID,
		ToAccountID:    dst.ID,
		AmountCents:    in.AmountCents,
		Currency:       currency,
		Status:         domain.TransferCompleted,
		IdempotencyKey: in.IdempotencyKey,
		FromUserID:     src.UserID,
		ToUserID:       dst.UserID,
		FromEmail:      src.OwnerEmail,
		ToEmail:        dst.OwnerEmail,
	}
	if err := tx.InsertTransfer(ctx, &t); err != nil {
		return err
	}

	debit := domain.LedgerEntry{
		TransferID:  t.ID,
		AccountID:   src.ID,
		Direction:   domain.DirectionDebit,
		AmountCents: in.AmountCents,
		Currency:    currency,
	}
	credit := domain.LedgerEntry{
		TransferID:  t.ID,
		AccountID:   dst.ID,
		Direction:   domain.DirectionCredit,
		AmountCents: in.AmountCents,
		Currency:    currency,
	}
	if err := tx.InsertLedgerEntries(ctx, &debit, &credit); err != nil {
		return err
	}

	if err := tx.AddToBalance(ctx, src.ID, -in.AmountCents); err != nil {
		return err
	}
	if err := tx.AddToBalance(ctx, dst.ID, in.AmountCents); err != nil {
		return err
	}

	audit := domain.AuditLog{
		ActorUserID: in.ActorUserID,
		Action:      "TRANSFER_CREATE",
		EntityType:  "transfer",
		EntityID:    strconv.FormatInt(t.ID, 10),
		Details: fmt.Sprintf("from=%d, payee_id=%d, to=%d, amount_cents=%d, currency=%s",
			src.ID, dest.PayeeID, dst.ID, in.AmountCents, currency),
	}
	if err := tx.RecordAudit(ctx, &audit); err != nil {
		return err
	}

	*out = t
	return nil
}

func sameFingerprint(t *domain.Transfer, in CreateTransferInput, dest *domain.PayeeDestination, currency string) bool {
	return t.FromAccountID == in.FromAccountID &&
		t.ToAccountID == dest.AccountID &&
		t.AmountCents == in.AmountCents &&
		t.Currency == currency
}

func (s *TransferService) countOutcome(err error) {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		transferOutcomes.WithLabelValues("insufficient_funds").Inc()
	case domain.IsValidation(err), errors.Is(err, domain.ErrNotFound):
		transferOutcomes.WithLabelValues("rejected").Inc()
	default:
		transferOutcomes.WithLabelValues("error").Inc()
	}
}
