package accounts

import (
	"context"
	"fmt"

	"github.com/fastprodman/custbalance/internal/repos/accounts"
)

func (r *accountsRepo) Create(ctx context.Context) (accounts.Account, error) {
	acc, err := scanAccount(r.db.QueryRowContext(ctx, `
		INSERT INTO accounts DEFAULT VALUES
		RETURNING `+accountColumns))
	if err != nil {
		return accounts.Account{}, fmt.Errorf("create account: %w", err)
	}

	return acc, nil
}
