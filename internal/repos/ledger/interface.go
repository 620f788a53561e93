package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

type EntryType string

const (
	EntryDeposit  EntryType = "DEPOSIT"
	EntryWithdraw EntryType = "WITHDRAW"
)

// Entry is one immutable balance movement.
type Entry struct {
	ID              uuid.UUID
	AccountID       uint64
	DeltaMinorUnits int64 // positive for deposits, negative for withdrawals
	Type            EntryType
	IdempotencyKey  string // empty when the caller sent none
	BalanceBefore   int64
	BalanceAfter    int64
	CreatedAt       time.Time
}

type NewEntry struct {
	AccountID       uint64
	DeltaMinorUnits int64
	Type            EntryType
	IdempotencyKey  string
	BalanceBefore   int64
	BalanceAfter    int64
}

type Ledger interface {
	FindByIdempotencyKey(ctx context.Context, key string) (entry Entry, found bool, err error)
	// Append fails with ErrDuplicateIdempotencyKey when the key is already taken.
	Append(ctx context.Context, e NewEntry) (Entry, error)
	ListByAccount(ctx context.Context, accountID uint64) ([]Entry, error)
}
