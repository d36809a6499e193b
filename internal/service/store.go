package service

import (
	"context"

	"github.com/corebanking/digibank/internal/domain"
)

// Store is the persistence contract the services consume. The Postgres
// implementation lives in internal/store; internal/store/memory provides an
// in-process implementation with the same locking semantics for tests.
type Store interface {
	// WithinTx runs fn inside one transaction. fn returning an error rolls
	// back every write made through tx, including audit records.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	UserByEmail(ctx context.Context, email string) (*domain.User, error)
	UserByID(ctx context.Context, id int64) (*domain.User, error)

	AccountsByUser(ctx context.Context, userID int64) ([]domain.Account, error)
	// AccountForOwner returns domain.ErrNotFound for both unknown ids and
	// accounts owned by another user.
	AccountForOwner(ctx context.Context, accountID, ownerUserID int64) (*domain.Account, error)

	PayeeForOwner(ctx context.Context, payeeID, ownerUserID int64) (*domain.Payee, error)
	PayeeByUsers(ctx context.Context, ownerUserID, payeeUserID int64) (*domain.Payee, error)
	ActivePayees(ctx context.Context, ownerUserID int64) ([]domain.Payee, error)
	// DestinationAccount finds the owner's ACTIVE chequing account in the
	// given currency.
	DestinationAccount(ctx context.Context, ownerUserID int64, currency string) (*domain.Account, error)

	// TransferByKeyForActor resolves an idempotency key scoped to the actor:
	// the transfer's source account must belong to actorUserID.
	TransferByKeyForActor(ctx context.Context, key string, actorUserID int64) (*domain.Transfer, error)
	// TransferKeyExists reports whether any transfer holds the key,
	// regardless of owner.
	TransferKeyExists(ctx context.Context, key string) (bool, error)
	// TransfersPage returns up to limit transfers where the actor owns
	// either leg, ordered by (created_at, id) strictly descending, starting
	// strictly before the cursor when one is given.
	TransfersPage(ctx context.Context, actorUserID int64, limit int, before *domain.Cursor) ([]domain.Transfer, error)
}

// Tx is the set of writes available inside a transaction.
type Tx interface {
	// LockAccountPair acquires exclusive row locks on both accounts in
	// ascending id order and returns them in that order, owner email
	// populated. Either id missing yields domain.ErrNotFound.
	LockAccountPair(ctx context.Context, idA, idB int64) (lo, hi *domain.Account, err error)

	// InsertTransfer persists a transfer and fills ID and CreatedAt. A
	// duplicate idempotency key yields domain.ErrDuplicate.
	InsertTransfer(ctx context.Context, t *domain.Transfer) error
	InsertLedgerEntries(ctx context.Context, debit, credit *domain.LedgerEntry) error
	AddToBalance(ctx context.Context, accountID, deltaCents int64) error

	// InsertUser fills ID; a duplicate email yields domain.ErrDuplicate.
	InsertUser(ctx context.Context, u *domain.User) error
	InsertAccount(ctx context.Context, a *domain.Account) error

	InsertPayee(ctx context.Context, p *domain.Payee) error
	UpdatePayeeStatus(ctx context.Context, payeeID int64, status string) error

	RecordAudit(ctx context.Context, rec *domain.AuditLog) error
}

// PayeeDirectory resolves a payee reference to the account to credit. The
// transfer engine consumes it as an external collaborator.
type PayeeDirectory interface {
	ResolveDestination(ctx context.Context, actorUserID, payeeID int64, currency string) (*domain.PayeeDestination, error)
}
