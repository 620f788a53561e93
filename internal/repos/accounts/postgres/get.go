package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/custbalance/internal/repos/accounts"
)

// Get reads the account without taking a row lock; concurrent writers are
// detected later by CompareAndSwap.
func (r *accountsRepo) Get(ctx context.Context, id uint64) (accounts.Account, error) {
	acc, err := scanAccount(r.db.QueryRowContext(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accounts.Account{}, accounts.ErrAccountNotFound
		}

		return accounts.Account{}, fmt.Errorf("get account: %w", err)
	}

	return acc, nil
}
