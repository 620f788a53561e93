package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/custbalance/internal/repos/accounts"
)

func (r *accountsRepo) CompareAndSwap(
	ctx context.Context,
	id uint64,
	expectedVersion, newBalance int64,
) (accounts.Account, bool, error) {
	acc, err := scanAccount(r.db.QueryRowContext(ctx, `
		UPDATE accounts
		SET balance_minor_units = $3,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		RETURNING `+accountColumns,
		id, expectedVersion, newBalance))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accounts.Account{}, false, nil
		}

		return accounts.Account{}, false, fmt.Errorf("compare and swap balance: %w", err)
	}

	return acc, true, nil
}
