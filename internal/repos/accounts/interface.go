package accounts

import (
	"context"
	"errors"
	"time"
)

var ErrAccountNotFound = errors.New("account not found")

// Account is a customer's balance together with its optimistic-concurrency
// version. Version grows by exactly one on every successful balance change.
type Account struct {
	ID                uint64
	BalanceMinorUnits int64 // cents, never negative
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Accounts interface {
	Create(ctx context.Context) (Account, error)
	Get(ctx context.Context, id uint64) (Account, error)
	// CompareAndSwap sets the balance and bumps the version only if the stored
	// version still equals expectedVersion. ok is false when it moved.
	CompareAndSwap(ctx context.Context, id uint64, expectedVersion, newBalance int64) (acc Account, ok bool, err error)
}
