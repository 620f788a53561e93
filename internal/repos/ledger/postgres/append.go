package ledger

import (
	"context"
	"fmt"

	"github.com/fastprodman/custbalance/internal/infra/pgutils"
	"github.com/fastprodman/custbalance/internal/repos/ledger"
	"github.com/google/uuid"
)

func (r *ledgerRepo) Append(ctx context.Context, ne ledger.NewEntry) (ledger.Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, `
		INSERT INTO ledger_entries (
			id, account_id, delta_minor_units, type, idempotency_key,
			balance_before, balance_after
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+entryColumns,
		uuid.New(), ne.AccountID, ne.DeltaMinorUnits, string(ne.Type), nullableKey(ne.IdempotencyKey),
		ne.BalanceBefore, ne.BalanceAfter))
	if err != nil {
		if pgutils.IsUniqueViolation(err, idempotencyKeyConstraint) {
			return ledger.Entry{}, ledger.ErrDuplicateIdempotencyKey
		}

		return ledger.Entry{}, fmt.Errorf("append ledger entry: %w", err)
	}

	return e, nil
}
