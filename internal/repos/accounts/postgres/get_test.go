package accounts

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/fastprodman/custbalance/internal/infra/pgtestutil"
	"github.com/fastprodman/custbalance/internal/repos/accounts"
)

func seedAccount(t *testing.T, db *sql.DB, id uint64, balance, version int64) {
	t.Helper()

	_, err := db.Exec(`
		INSERT INTO accounts (id, balance_minor_units, version) VALUES ($1, $2, $3)
	`, id, balance, version)
	if err != nil {
		t.Fatalf("seed account(%d): %v", id, err)
	}
}

func TestAccounts_Get_Table(t *testing.T) {
	t.Parallel()

	type tc struct {
		name        string
		seed        func(db *sql.DB, t *testing.T)
		id          uint64
		wantBalance int64
		wantVersion int64
		wantErr     error
	}

	tests := []tc{
		{
			name:        "zero_balance",
			seed:        func(db *sql.DB, t *testing.T) { seedAccount(t, db, 1, 0, 0) },
			id:          1,
			wantBalance: 0,
			wantVersion: 0,
		},
		{
			name:        "positive_balance",
			seed:        func(db *sql.DB, t *testing.T) { seedAccount(t, db, 2, 100_000, 1) },
			id:          2,
			wantBalance: 100_000,
			wantVersion: 1,
		},
		{
			name:        "large_balance",
			seed:        func(db *sql.DB, t *testing.T) { seedAccount(t, db, 3, 900_000_000_000_000, 41) },
			id:          3,
			wantBalance: 900_000_000_000_000,
			wantVersion: 41,
		},
		{
			name:    "not_found",
			seed:    func(_ *sql.DB, _ *testing.T) {},
			id:      999,
			wantErr: accounts.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			tt.seed(db, t)

			ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
			defer cancel()

			acc, err := New(db).Get(ctx, tt.id)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("unexpected error: got %v, want %v", err, tt.wantErr)
				}
				return
			}

			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if acc.ID != tt.id || acc.BalanceMinorUnits != tt.wantBalance || acc.Version != tt.wantVersion {
				t.Fatalf("account mismatch: got %+v, want balance=%d version=%d", acc, tt.wantBalance, tt.wantVersion)
			}
			if acc.CreatedAt.IsZero() || acc.UpdatedAt.IsZero() {
				t.Fatalf("timestamps not scanned: %+v", acc)
			}
		})
	}
}

func TestAccounts_Create(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)
	ctx := t.Context()

	first, err := repo.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := repo.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if first.ID == 0 || second.ID <= first.ID {
		t.Fatalf("ids not increasing: %d, %d", first.ID, second.ID)
	}
	if first.BalanceMinorUnits != 0 || first.Version != 0 {
		t.Fatalf("new account must open at 0/0, got %+v", first)
	}

	got, err := repo.Get(ctx, second.ID)
	if err != nil {
		t.Fatalf("get created: %v", err)
	}
	if got.ID != second.ID {
		t.Fatalf("get returned %d, want %d", got.ID, second.ID)
	}
}
