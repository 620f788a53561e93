package balance

import (
	"errors"

	"github.com/fastprodman/custbalance/internal/money"
)

var (
	ErrNonPositiveAmount      = errors.New("amount must be positive")
	ErrInsufficientFunds      = errors.New("insufficient funds")
	ErrConcurrentModification = errors.New("account was modified concurrently")
)

// Request asks for one deposit or withdrawal. IdempotencyKey is optional;
// a request repeating a key already recorded in the ledger changes nothing.
type Request struct {
	AccountID      uint64
	Amount         money.Amount
	IdempotencyKey string
}

// Result is the account state after an operation.
type Result struct {
	ID                uint64
	BalanceMinorUnits int64 // cents
	Version           int64
	// Replayed is set when the idempotency key had already been used and
	// nothing was written.
	Replayed bool
}
