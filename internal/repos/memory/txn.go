package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/fastprodman/custbalance/internal/repos/accounts"
	"github.com/fastprodman/custbalance/internal/repos/ledger"
	"github.com/google/uuid"
)

var (
	errNegativeBalance = errors.New("balance must not be negative")
	errInvalidEntry    = errors.New("invalid ledger entry")
)

type pendingWrite struct {
	acc         accounts.Account
	baseVersion int64 // committed version the first swap matched
	created     bool
}

// txn buffers the writes of one Run call.
type txn struct {
	store   *Store
	writes  map[uint64]pendingWrite
	entries []ledger.Entry
}

func newTxn(s *Store) *txn {
	return &txn{store: s, writes: make(map[uint64]pendingWrite)}
}

func (t *txn) account(id uint64) (accounts.Account, bool) {
	if w, ok := t.writes[id]; ok {
		return w.acc, true
	}

	return t.store.committedAccount(id)
}

type txnAccounts txn

var _ accounts.Accounts = (*txnAccounts)(nil)

func (a *txnAccounts) Create(_ context.Context) (accounts.Account, error) {
	t := (*txn)(a)

	now := t.store.now()
	acc := accounts.Account{
		ID:        t.store.allocateID(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	t.writes[acc.ID] = pendingWrite{acc: acc, created: true}

	return acc, nil
}

func (a *txnAccounts) Get(_ context.Context, id uint64) (accounts.Account, error) {
	acc, ok := (*txn)(a).account(id)
	if !ok {
		return accounts.Account{}, accounts.ErrAccountNotFound
	}

	return acc, nil
}

func (a *txnAccounts) CompareAndSwap(
	_ context.Context,
	id uint64,
	expectedVersion, newBalance int64,
) (accounts.Account, bool, error) {
	t := (*txn)(a)

	if newBalance < 0 {
		return accounts.Account{}, false, fmt.Errorf("compare and swap balance: %w", errNegativeBalance)
	}

	w, pending := t.writes[id]
	if !pending {
		acc, ok := t.store.committedAccount(id)
		if !ok {
			return accounts.Account{}, false, nil
		}
		w = pendingWrite{acc: acc, baseVersion: acc.Version}
	}

	if w.acc.Version != expectedVersion {
		return accounts.Account{}, false, nil
	}

	w.acc.BalanceMinorUnits = newBalance
	w.acc.Version++
	w.acc.UpdatedAt = t.store.now()
	t.writes[id] = w

	return w.acc, true, nil
}

type txnLedger txn

var _ ledger.Ledger = (*txnLedger)(nil)

func (l *txnLedger) FindByIdempotencyKey(_ context.Context, key string) (ledger.Entry, bool, error) {
	if key == "" {
		return ledger.Entry{}, false, nil
	}

	t := (*txn)(l)
	for _, e := range t.entries {
		if e.IdempotencyKey == key {
			return e, true, nil
		}
	}

	e, ok := t.store.committedEntryByKey(key)

	return e, ok, nil
}

func (l *txnLedger) Append(ctx context.Context, ne ledger.NewEntry) (ledger.Entry, error) {
	t := (*txn)(l)

	if ne.DeltaMinorUnits == 0 || ne.BalanceAfter != ne.BalanceBefore+ne.DeltaMinorUnits {
		return ledger.Entry{}, fmt.Errorf("append ledger entry: %w", errInvalidEntry)
	}
	if ne.Type != ledger.EntryDeposit && ne.Type != ledger.EntryWithdraw {
		return ledger.Entry{}, fmt.Errorf("append ledger entry: %w: type %q", errInvalidEntry, ne.Type)
	}
	if _, ok := t.account(ne.AccountID); !ok {
		return ledger.Entry{}, fmt.Errorf("append ledger entry: %w", accounts.ErrAccountNotFound)
	}

	if ne.IdempotencyKey != "" {
		_, taken, _ := l.FindByIdempotencyKey(ctx, ne.IdempotencyKey)
		if taken {
			return ledger.Entry{}, ledger.ErrDuplicateIdempotencyKey
		}
	}

	e := ledger.Entry{
		ID:              uuid.New(),
		AccountID:       ne.AccountID,
		DeltaMinorUnits: ne.DeltaMinorUnits,
		Type:            ne.Type,
		IdempotencyKey:  ne.IdempotencyKey,
		BalanceBefore:   ne.BalanceBefore,
		BalanceAfter:    ne.BalanceAfter,
		CreatedAt:       t.store.now(),
	}
	t.entries = append(t.entries, e)

	return e, nil
}

func (l *txnLedger) ListByAccount(_ context.Context, accountID uint64) ([]ledger.Entry, error) {
	t := (*txn)(l)

	out := t.store.committedEntries(accountID)
	for _, e := range t.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}

	return out, nil
}
