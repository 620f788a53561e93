package uow

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/custbalance/internal/infra/pgutils"
	accountspg "github.com/fastprodman/custbalance/internal/repos/accounts/postgres"
	ledgerpg "github.com/fastprodman/custbalance/internal/repos/ledger/postgres"
	"github.com/fastprodman/custbalance/internal/repos/uow"
)

var _ uow.UnitOfWork = (*unitOfWork)(nil)

type unitOfWork struct {
	db   *sql.DB
	opts *sql.TxOptions
}

// New returns a unit of work running each call in its own READ COMMITTED
// transaction. Lost updates are prevented by the accounts compare-and-swap,
// not by the isolation level.
func New(db *sql.DB) *unitOfWork {
	return &unitOfWork{
		db:   db,
		opts: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
	}
}

func (u *unitOfWork) Run(ctx context.Context, fn func(ctx context.Context, repos uow.Repos) error) error {
	err := pgutils.WithTx(ctx, u.db, u.opts, func(tx *sql.Tx) error {
		return fn(ctx, uow.Repos{
			Accounts: accountspg.New(tx),
			Ledger:   ledgerpg.New(tx),
		})
	})
	if err != nil {
		if pgutils.IsSerializationFailure(err) {
			return fmt.Errorf("%w: %w", uow.ErrConflict, err)
		}

		return err
	}

	return nil
}
