// Package memory is an in-process implementation of the account store, the
// ledger and the unit of work.
//
// Writes made inside Run are buffered and applied atomically at commit. A
// commit is rejected when an account it swapped was changed by another
// commit in the meantime (first committer wins) or when one of its
// idempotency keys was taken.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fastprodman/custbalance/internal/repos/accounts"
	"github.com/fastprodman/custbalance/internal/repos/ledger"
	"github.com/fastprodman/custbalance/internal/repos/uow"
)

var _ uow.UnitOfWork = (*Store)(nil)

type Store struct {
	mu       sync.Mutex
	accounts map[uint64]accounts.Account
	entries  []ledger.Entry
	keys     map[string]struct{}
	nextID   uint64
	now      func() time.Time
}

func New() *Store {
	return &Store{
		accounts: make(map[uint64]accounts.Account),
		keys:     make(map[string]struct{}),
		nextID:   1,
		now:      time.Now,
	}
}

// Seed stores acc as committed state, replacing any account with the same
// id. Zero timestamps are filled in.
func (s *Store) Seed(acc accounts.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	if acc.UpdatedAt.IsZero() {
		acc.UpdatedAt = now
	}

	s.accounts[acc.ID] = acc
	if acc.ID >= s.nextID {
		s.nextID = acc.ID + 1
	}
}

func (s *Store) Run(ctx context.Context, fn func(ctx context.Context, repos uow.Repos) error) error {
	err := ctx.Err()
	if err != nil {
		return err
	}

	t := newTxn(s)

	err = fn(ctx, uow.Repos{
		Accounts: (*txnAccounts)(t),
		Ledger:   (*txnLedger)(t),
	})
	if err != nil {
		return err
	}

	err = ctx.Err()
	if err != nil {
		return err
	}

	return s.commit(t)
}

func (s *Store) commit(t *txn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range t.entries {
		if e.IdempotencyKey == "" {
			continue
		}
		if _, taken := s.keys[e.IdempotencyKey]; taken {
			return ledger.ErrDuplicateIdempotencyKey
		}
	}

	for id, w := range t.writes {
		if w.created {
			continue
		}
		if s.accounts[id].Version != w.baseVersion {
			return uow.ErrConflict
		}
	}

	for id, w := range t.writes {
		s.accounts[id] = w.acc
	}

	for _, e := range t.entries {
		s.entries = append(s.entries, e)
		if e.IdempotencyKey != "" {
			s.keys[e.IdempotencyKey] = struct{}{}
		}
	}

	return nil
}

func (s *Store) committedAccount(id uint64) (accounts.Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]

	return acc, ok
}

func (s *Store) committedEntryByKey(key string) (ledger.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; !ok {
		return ledger.Entry{}, false
	}

	for _, e := range s.entries {
		if e.IdempotencyKey == key {
			return e, true
		}
	}

	return ledger.Entry{}, false
}

func (s *Store) committedEntries(accountID uint64) []ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ledger.Entry, 0)
	for _, e := range s.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}

	return out
}

func (s *Store) allocateID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	return id
}
