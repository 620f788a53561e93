package ledger

import (
	"database/sql"

	"github.com/fastprodman/custbalance/internal/infra/pgutils"
	"github.com/fastprodman/custbalance/internal/repos/ledger"
)

var _ ledger.Ledger = (*ledgerRepo)(nil)

// Unique constraint guarding idempotency keys, see migration 000002.
const idempotencyKeyConstraint = "ledger_entries_idempotency_key_key"

type ledgerRepo struct{ db pgutils.DBTX }

// New binds the repository to db, which may be a *sql.DB or a *sql.Tx.
func New(db pgutils.DBTX) *ledgerRepo {
	return &ledgerRepo{db: db}
}

const entryColumns = `id, account_id, delta_minor_units, type, idempotency_key,
	balance_before, balance_after, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (ledger.Entry, error) {
	var (
		e   ledger.Entry
		typ string
		key sql.NullString
	)

	err := row.Scan(&e.ID, &e.AccountID, &e.DeltaMinorUnits, &typ, &key,
		&e.BalanceBefore, &e.BalanceAfter, &e.CreatedAt)
	if err != nil {
		return ledger.Entry{}, err
	}

	e.Type = ledger.EntryType(typ)
	e.IdempotencyKey = key.String

	return e, nil
}

func nullableKey(key string) sql.NullString {
	return sql.NullString{String: key, Valid: key != ""}
}
