package uow

import (
	"context"
	"errors"

	"github.com/fastprodman/custbalance/internal/repos/accounts"
	"github.com/fastprodman/custbalance/internal/repos/ledger"
)

// ErrConflict is returned when the storage rejects a transaction because a
// concurrent one touched the same rows first.
var ErrConflict = errors.New("transaction conflict")

// Repos are the repositories bound to one unit of work.
type Repos struct {
	Accounts accounts.Accounts
	Ledger   ledger.Ledger
}

// UnitOfWork runs fn atomically: if fn returns an error, or ctx ends before
// commit, none of its writes become visible.
type UnitOfWork interface {
	Run(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
}
