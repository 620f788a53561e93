package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/custbalance/internal/repos/ledger"
)

func (r *ledgerRepo) FindByIdempotencyKey(ctx context.Context, key string) (ledger.Entry, bool, error) {
	if key == "" {
		return ledger.Entry{}, false, nil
	}

	e, err := scanEntry(r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE idempotency_key = $1
	`, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Entry{}, false, nil
		}

		return ledger.Entry{}, false, fmt.Errorf("find entry by idempotency key: %w", err)
	}

	return e, true, nil
}
