// Package memory is an in-process implementation of the service storage
// contracts. It keeps the Postgres layer's semantics where they matter to
// callers: per-account row locks taken in ascending id order, a global unique
// constraint on idempotency keys, and rollback of every write made inside a
// failed transaction. Concurrency properties of the transfer engine are
// exercised against it without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/corebanking/digibank/internal/domain"
	"github.com/corebanking/digibank/internal/service"
)

type Store struct {
	// Now supplies row timestamps; override in tests for deterministic
	// pagination. Values are truncated to millisecond precision like the
	// schema's timestamptz(3).
	Now func() time.Time

	mu           sync.Mutex
	users        map[int64]*domain.User
	accounts     map[int64]*domain.Account
	accountLocks map[int64]*sync.Mutex
	payees       map[int64]*domain.Payee
	transfers    map[int64]*domain.Transfer
	byKey        map[string]int64
	entries      []*domain.LedgerEntry
	audits       []*domain.AuditLog

	nextID map[string]int64
}

func New() *Store {
	return &Store{
		Now:          func() time.Time { return time.Now().UTC() },
		users:        make(map[int64]*domain.User),
		accounts:     make(map[int64]*domain.Account),
		accountLocks: make(map[int64]*sync.Mutex),
		payees:       make(map[int64]*domain.Payee),
		transfers:    make(map[int64]*domain.Transfer),
		byKey:        make(map[string]int64),
		nextID:       make(map[string]int64),
	}
}

func (s *Store) next(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

func (s *Store) now() time.Time {
	return s.Now().Truncate(time.Millisecond)
}

// memTx applies writes immediately and stacks undo closures; rollback replays
// them in reverse. Account row locks stay held until the transaction ends.
type memTx struct {
	s     *Store
	undo  []func()
	locks []*sync.Mutex
}

func (s *Store) WithinTx(ctx context.Context, fn func(tx service.Tx) error) error {
	tx := &memTx{s: s}
	defer func() {
		for i := len(tx.locks) - 1; i >= 0; i-- {
			tx.locks[i].Unlock()
		}
	}()

	if err := fn(tx); err != nil {
		tx.s.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		tx.s.mu.Unlock()
		return err
	}
	return nil
}

func (t *memTx) LockAccountPair(ctx context.Context, idA, idB int64) (*domain.Account, *domain.Account, error) {
	lo, hi := idA, idB
	if lo > hi {
		lo, hi = hi, lo
	}

	first, err := t.lockAccount(lo)
	if err != nil {
		return nil, nil, err
	}
	second, err := t.lockAccount(hi)
	if err != nil {
		return nil, nil, err
	}
	return first, second, nil
}

func (t *memTx) lockAccount(id int64) (*domain.Account, error) {
	t.s.mu.Lock()
	lock, ok := t.s.accountLocks[id]
	t.s.mu.Unlock()
	if !ok {
		return nil, domain.ErrNotFound
	}

	// Blocks like SELECT ... FOR UPDATE until the holder commits.
	lock.Lock()
	t.locks = append(t.locks, lock)

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	a := *t.s.accounts[id]
	if u, ok := t.s.users[a.UserID]; ok {
		a.OwnerEmail = u.Email
	}
	return &a, nil
}

func (t *memTx) InsertTransfer(ctx context.Context, tr *domain.Transfer) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if _, exists := t.s.byKey[tr.IdempotencyKey]; exists {
		return fmt.Errorf("transfer insert: %w", domain.ErrDuplicate)
	}

	tr.ID = t.s.next("transfers")
	tr.CreatedAt = t.s.now()
	tr.UpdatedAt = tr.CreatedAt
	t.s.fillOwners(tr)

	stored := *tr
	t.s.transfers[tr.ID] = &stored
	t.s.byKey[tr.IdempotencyKey] = tr.ID

	id, key := tr.ID, tr.IdempotencyKey
	t.undo = append(t.undo, func() {
		delete(t.s.transfers, id)
		delete(t.s.byKey, key)
	})
	return nil
}

func (t *memTx) InsertLedgerEntries(ctx context.Context, debit, credit *domain.LedgerEntry) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, e := range []*domain.LedgerEntry{debit, credit} {
		e.ID = t.s.next("ledger_entries")
		e.CreatedAt = t.s.now()
		stored := *e
		t.s.entries = append(t.s.entries, &stored)
	}

	t.undo = append(t.undo, func() {
		t.s.entries = t.s.entries[:len(t.s.entries)-2]
	})
	return nil
}

func (t *memTx) AddToBalance(ctx context.Context, accountID, deltaCents int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	a, ok := t.s.accounts[accountID]
	if !ok {
		return domain.ErrNotFound
	}
	a.BalanceCents += deltaCents
	a.UpdatedAt = t.s.now()

	t.undo = append(t.undo, func() {
		a.BalanceCents -= deltaCents
	})
	return nil
}

func (t *memTx) InsertUser(ctx context.Context, u *domain.User) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, existing := range t.s.users {
		if existing.Email == u.Email {
			return fmt.Errorf("insert user: %w", domain.ErrDuplicate)
		}
	}

	u.ID = t.s.next("users")
	u.CreatedAt = t.s.now()
	stored := *u
	t.s.users[u.ID] = &stored

	id := u.ID
	t.undo = append(t.undo, func() { delete(t.s.users, id) })
	return nil
}

func (t *memTx) InsertAccount(ctx context.Context, a *domain.Account) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	a.ID = t.s.next("accounts")
	a.CreatedAt = t.s.now()
	a.UpdatedAt = a.CreatedAt
	stored := *a
	t.s.accounts[a.ID] = &stored
	t.s.accountLocks[a.ID] = &sync.Mutex{}

	id := a.ID
	t.undo = append(t.undo, func() {
		delete(t.s.accounts, id)
		delete(t.s.accountLocks, id)
	})
	return nil
}

func (t *memTx) InsertPayee(ctx context.Context, p *domain.Payee) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	for _, existing := range t.s.payees {
		if existing.OwnerUserID == p.OwnerUserID && existing.PayeeUserID == p.PayeeUserID {
			return fmt.Errorf("insert payee: %w", domain.ErrDuplicate)
		}
	}

	p.ID = t.s.next("payees")
	p.CreatedAt = t.s.now()
	stored := *p
	t.s.payees[p.ID] = &stored

	id := p.ID
	t.undo = append(t.undo, func() { delete(t.s.payees, id) })
	return nil
}

func (t *memTx) UpdatePayeeStatus(ctx context.Context, payeeID int64, status string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	p, ok := t.s.payees[payeeID]
	if !ok {
		return domain.ErrNotFound
	}
	prev := p.Status
	p.Status = status

	t.undo = append(t.undo, func() { p.Status = prev })
	return nil
}

func (t *memTx) RecordAudit(ctx context.Context, rec *domain.AuditLog) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	rec.ID = t.s.next("audit_log")
	rec.CreatedAt = t.s.now()
	stored := *rec
	t.s.audits = append(t.s.audits, &stored)

	t.undo = append(t.undo, func() {
		t.s.audits = t.s.audits[:len(t.s.audits)-1]
	})
	return nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *Store) AccountsByUser(ctx context.Context, userID int64) ([]domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) AccountForOwner(ctx context.Context, accountID, ownerUserID int64) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok || a.UserID != ownerUserID {
		return nil, domain.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (s *Store) DestinationAccount(ctx context.Context, ownerUserID int64, currency string) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.UserID == ownerUserID &&
			a.Type == domain.AccountTypeChequing &&
			a.Currency == currency &&
			a.Status == domain.AccountActive {
			copied := *a
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) PayeeForOwner(ctx context.Context, payeeID, ownerUserID int64) (*domain.Payee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payees[payeeID]
	if !ok || p.OwnerUserID != ownerUserID {
		return nil, domain.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *Store) PayeeByUsers(ctx context.Context, ownerUserID, payeeUserID int64) (*domain.Payee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.payees {
		if p.OwnerUserID == ownerUserID && p.PayeeUserID == payeeUserID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) ActivePayees(ctx context.Context, ownerUserID int64) ([]domain.Payee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Payee
	for _, p := range s.payees {
		if p.OwnerUserID == ownerUserID && p.Status == domain.PayeeActive {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) TransferByKeyForActor(ctx context.Context, key string, actorUserID int64) (*domain.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byKey[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	t := *s.transfers[id]
	if t.FromUserID != actorUserID {
		return nil, domain.ErrNotFound
	}
	return &t, nil
}

func (s *Store) TransferKeyExists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.byKey[key]
	return ok, nil
}

func (s *Store) TransfersPage(ctx context.Context, actorUserID int64, limit int, before *domain.Cursor) ([]domain.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []domain.Transfer
	for _, t := range s.transfers {
		if t.FromUserID != actorUserID && t.ToUserID != actorUserID {
			continue
		}
		if before != nil {
			older := t.CreatedAt.Before(before.CreatedAt) ||
				(t.CreatedAt.Equal(before.CreatedAt) && t.ID < before.ID)
			if !older {
				continue
			}
		}
		all = append(all, *t)
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Entries returns all ledger entries for an account, most useful for
// asserting the balance invariant in tests.
func (s *Store) Entries(accountID int64) []domain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.LedgerEntry
	for _, e := range s.entries {
		if e.AccountID == accountID {
			out = append(out, *e)
		}
	}
	return out
}

// EntriesForTransfer returns the two legs of a transfer.
func (s *Store) EntriesForTransfer(transferID int64) []domain.LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.LedgerEntry
	for _, e := range s.entries {
		if e.TransferID == transferID {
			out = append(out, *e)
		}
	}
	return out
}

// Audits returns the persisted audit facts.
func (s *Store) Audits() []domain.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.AuditLog, len(s.audits))
	for i, a := range s.audits {
		out[i] = *a
	}
	return out
}

// TransferCount reports the number of committed transfers.
func (s *Store) TransferCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transfers)
}

func (s *Store) fillOwners(t *domain.Transfer) {
	if a, ok := s.accounts[t.FromAccountID]; ok {
		t.FromUserID = a.UserID
		if u, ok := s.users[a.UserID]; ok {
			t.FromEmail = u.Email
		}
	}
	if a, ok := s.accounts[t.ToAccountID]; ok {
		t.ToUserID = a.UserID
		if u, ok := s.users[a.UserID]; ok {
			t.ToEmail = u.Email
		}
	}
}
