package ledger

import (
	"context"
	"fmt"

	"github.com/fastprodman/custbalance/internal/repos/ledger"
)

// ListByAccount returns the account's entries oldest first.
func (r *ledgerRepo) ListByAccount(ctx context.Context, accountID uint64) ([]ledger.Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at, id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	defer rows.Close()

	entries := make([]ledger.Entry, 0)

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}

		entries = append(entries, e)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}

	return entries, nil
}
