package domain

import "time"

// Account statuses and types. Accounts are never deleted, only deactivated.
const (
	AccountActive   = "ACTIVE"
	AccountInactive = "INACTIVE"

	AccountTypeChequing = "CHEQUING"
	AccountTypeSavings  = "SAVINGS"
)

// Payee statuses.
const (
	PayeeActive   = "ACTIVE"
	PayeeDisabled = "DISABLED"
)

// Transfer statuses. The engine only ever persists COMPLETED rows; INITIATED
// is reserved for future multi-step settlement and FAILED is never written.
const (
	TransferInitiated = "INITIATED"
	TransferCompleted = "COMPLETED"
)

// Ledger entry directions.
const (
	DirectionDebit  = "DEBIT"
	DirectionCredit = "CREDIT"
)

// Per-actor transfer directions in a TransferView.
const (
	ViewSent     = "SENT"
	ViewReceived = "RECEIVED"
	ViewUnknown  = "UNKNOWN"
)

// User is an account holder.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Account holds a balance in integer minor units. The balance is always the
// sum of signed ledger entries for the account and is mutated only inside the
// transfer engine's transaction.
type Account struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"-"`
	Type         string    `json:"account_type"`
	Currency     string    `json:"currency"`
	BalanceCents int64     `json:"balance_cents"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// OwnerEmail is joined from the owning user on locked reads; it never
	// round-trips back to storage.
	OwnerEmail string `json:"-"`
}

// Payee is an entry in a user's payee directory pointing at another user.
type Payee struct {
	ID          int64     `json:"id"`
	OwnerUserID int64     `json:"-"`
	PayeeUserID int64     `json:"-"`
	PayeeEmail  string    `json:"payee_email"`
	Label       string    `json:"label,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// PayeeDestination is the result of resolving a payee reference to the
// account that should be credited.
type PayeeDestination struct {
	PayeeID     int64
	AccountID   int64
	OwnerUserID int64
}

// Transfer is the immutable record of a completed movement. The owner and
// email fields are denormalized from the account rows at read time; FromUserID
// scopes idempotency-key replay to the requesting actor.
type Transfer struct {
	ID             int64     `json:"id"`
	FromAccountID  int64     `json:"from_account_id"`
	ToAccountID    int64     `json:"to_account_id"`
	AmountCents    int64     `json:"amount_cents"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	IdempotencyKey string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"-"`

	FromUserID int64  `json:"-"`
	ToUserID   int64  `json:"-"`
	FromEmail  string `json:"-"`
	ToEmail    string `json:"-"`
}

// LedgerEntry is one leg of the double-entry record. Entries are append-only:
// every completed transfer owns exactly one DEBIT and one CREDIT of equal
// amount and currency.
type LedgerEntry struct {
	ID          int64     `json:"id"`
	TransferID  int64     `json:"transfer_id"`
	AccountID   int64     `json:"account_id"`
	Direction   string    `json:"direction"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	CreatedAt   time.Time `json:"created_at"`
}

// AuditLog is one structured audit fact, persisted in the same transaction as
// the write it describes.
type AuditLog struct {
	ID          int64     `json:"id"`
	ActorUserID int64     `json:"actor_user_id"`
	Action      string    `json:"action"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	Details     string    `json:"details"`
	CreatedAt   time.Time `json:"created_at"`
}

// TransferView is the actor-facing projection of a transfer.
type TransferView struct {
	ID                int64     `json:"id"`
	FromAccountID     int64     `json:"from_account_id"`
	ToAccountID       int64     `json:"to_account_id"`
	AmountCents       int64     `json:"amount_cents"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	FromEmail         string    `json:"from_email"`
	ToEmail           string    `json:"to_email"`
	Direction         string    `json:"direction"`
	CounterpartyEmail string    `json:"counterparty_email,omitempty"`
}

// ViewFor projects a transfer for the given actor, computing direction and
// counterparty from ownership of the two legs.
func (t *Transfer) ViewFor(actorUserID int64) TransferView {
	v := TransferView{
		ID:            t.ID,
		FromAccountID: t.FromAccountID,
		ToAccountID:   t.ToAccountID,
		AmountCents:   t.AmountCents,
		Currency:      t.Currency,
		Status:        t.Status,
		CreatedAt:     t.CreatedAt,
		FromEmail:     t.FromEmail,
		ToEmail:       t.ToEmail,
		Direction:     ViewUnknown,
	}

	switch actorUserID {
	case t.FromUserID:
		v.Direction = ViewSent
		v.CounterpartyEmail = t.ToEmail
	case t.ToUserID:
		v.Direction = ViewReceived
		v.CounterpartyEmail = t.FromEmail
	}

	return v
}

// Cursor is the decoded form of an opaque pagination token: the (created_at,
// id) sort key of the last row the client has seen.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}
