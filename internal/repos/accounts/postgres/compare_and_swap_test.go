package accounts

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fastprodman/custbalance/internal/infra/pgtestutil"
)

func TestAccounts_CompareAndSwap_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		seedBalance     int64
		seedVersion     int64
		id              uint64
		expectedVersion int64
		newBalance      int64
		wantOK          bool
		wantBalance     int64
		wantVersion     int64
	}{
		{
			name:            "version_matches",
			seedBalance:     100_000,
			seedVersion:     1,
			id:              10,
			expectedVersion: 1,
			newBalance:      130_025,
			wantOK:          true,
			wantBalance:     130_025,
			wantVersion:     2,
		},
		{
			name:            "to_zero",
			seedBalance:     5_000,
			seedVersion:     7,
			id:              10,
			expectedVersion: 7,
			newBalance:      0,
			wantOK:          true,
			wantBalance:     0,
			wantVersion:     8,
		},
		{
			name:            "stale_version",
			seedBalance:     100_000,
			seedVersion:     3,
			id:              10,
			expectedVersion: 2,
			newBalance:      1,
			wantOK:          false,
			wantBalance:     100_000,
			wantVersion:     3,
		},
		{
			name:            "missing_account",
			seedBalance:     100_000,
			seedVersion:     0,
			id:              11,
			expectedVersion: 0,
			newBalance:      1,
			wantOK:          false,
			wantBalance:     100_000,
			wantVersion:     0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			db, cleanup := pgtestutil.NewTestDB(t)
			defer cleanup()

			seedAccount(t, db, 10, tt.seedBalance, tt.seedVersion)

			repo := New(db)

			ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
			defer cancel()

			acc, ok, err := repo.CompareAndSwap(ctx, tt.id, tt.expectedVersion, tt.newBalance)
			if err != nil {
				t.Fatalf("cas: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("ok mismatch: want %v, got %v", tt.wantOK, ok)
			}
			if ok && (acc.BalanceMinorUnits != tt.wantBalance || acc.Version != tt.wantVersion) {
				t.Fatalf("returned account mismatch: %+v", acc)
			}

			stored, err := repo.Get(ctx, 10)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if stored.BalanceMinorUnits != tt.wantBalance || stored.Version != tt.wantVersion {
				t.Fatalf("stored mismatch: got %d/v%d, want %d/v%d",
					stored.BalanceMinorUnits, stored.Version, tt.wantBalance, tt.wantVersion)
			}
		})
	}
}

func TestAccounts_CompareAndSwap_RejectsNegativeBalance(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	seedAccount(t, db, 1, 100, 0)

	_, _, err := New(db).CompareAndSwap(t.Context(), 1, 0, -1)
	if err == nil {
		t.Fatal("expected check constraint violation for negative balance")
	}
}

// Every writer reads the same version; exactly one of them may win.
func TestAccounts_CompareAndSwap_ConcurrentSameVersion(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	seedAccount(t, db, 777, 0, 0)

	repo := New(db)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	const writers = 8

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
		errs = make(chan error, writers)
	)

	for i := range writers {
		wg.Add(1)

		go func(amount int64) {
			defer wg.Done()

			_, ok, err := repo.CompareAndSwap(ctx, 777, 0, amount)
			if err != nil {
				errs <- err
				return
			}
			if ok {
				wins.Add(1)
			}
		}(int64(i+1) * 100)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("writer error: %v", err)
	}

	if wins.Load() != 1 {
		t.Fatalf("want exactly one winner, got %d", wins.Load())
	}

	acc, err := repo.Get(ctx, 777)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acc.Version != 1 {
		t.Fatalf("version must advance once, got %d", acc.Version)
	}
}

// A swap inside an open transaction holds the row; a second writer with the
// same expected version waits, then finds the version moved.
func TestAccounts_CompareAndSwap_WaitsForOpenTx(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	seedAccount(t, db, 42, 200, 5)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	tx1, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx1: %v", err)
	}
	defer func() { _ = tx1.Rollback() }()

	_, ok, err := New(tx1).CompareAndSwap(ctx, 42, 5, 300)
	if err != nil || !ok {
		t.Fatalf("tx1 cas: ok=%v err=%v", ok, err)
	}

	type result struct {
		ok  bool
		err error
	}

	started := make(chan struct{})
	done := make(chan result, 1)

	go func() {
		close(started)

		_, ok, err := New(db).CompareAndSwap(ctx, 42, 5, 400)
		done <- result{ok: ok, err: err}
	}()

	<-started
	time.Sleep(200 * time.Millisecond)

	select {
	case r := <-done:
		t.Fatalf("second writer finished before tx1 committed: %+v", r)
	default:
	}

	err = tx1.Commit()
	if err != nil {
		t.Fatalf("commit tx1: %v", err)
	}

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("second writer error: %v", r.err)
		}
		if r.ok {
			t.Fatal("second writer must not match after tx1 advanced the version")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for second writer")
	}

	acc, err := New(db).Get(ctx, 42)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acc.BalanceMinorUnits != 300 || acc.Version != 6 {
		t.Fatalf("want 300/v6, got %d/v%d", acc.BalanceMinorUnits, acc.Version)
	}
}
