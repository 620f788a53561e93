package accounts

import (
	"github.com/fastprodman/custbalance/internal/infra/pgutils"
	"github.com/fastprodman/custbalance/internal/repos/accounts"
)

var _ accounts.Accounts = (*accountsRepo)(nil)

type accountsRepo struct{ db pgutils.DBTX }

// New binds the repository to db, which may be a *sql.DB or a *sql.Tx.
func New(db pgutils.DBTX) *accountsRepo {
	return &accountsRepo{db: db}
}

const accountColumns = `id, balance_minor_units, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (accounts.Account, error) {
	var acc accounts.Account

	err := row.Scan(&acc.ID, &acc.BalanceMinorUnits, &acc.Version, &acc.CreatedAt, &acc.UpdatedAt)

	return acc, err
}
