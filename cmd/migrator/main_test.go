package main

import (
	"testing"

	"github.com/fastprodman/custbalance/internal/infra/pgtestutil"
)

func TestRunMigrations_Seed(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	// Schema is already applied by pgtestutil; re-running it is a no-op.
	err := runMigrations(db, schemaMigrationsTable, baseFS, "migrations")
	if err != nil {
		t.Fatalf("base migrations: %v", err)
	}

	err = runMigrations(db, seedMigrationsTable, devFS, "test_data")
	if err != nil {
		t.Fatalf("seed migrations: %v", err)
	}

	var balance, version int64

	err = db.QueryRow(`SELECT balance_minor_units, version FROM accounts WHERE id = 2`).Scan(&balance, &version)
	if err != nil {
		t.Fatalf("read seeded account: %v", err)
	}
	if balance != 100_000 || version != 1 {
		t.Fatalf("seeded account: got %d/v%d, want 100000/v1", balance, version)
	}

	var id uint64

	err = db.QueryRow(`INSERT INTO accounts DEFAULT VALUES RETURNING id`).Scan(&id)
	if err != nil {
		t.Fatalf("insert after seed: %v", err)
	}
	if id <= 3 {
		t.Fatalf("sequence not advanced past seed ids, got %d", id)
	}
}
