// Package pgtestutil gives each test its own freshly migrated Postgres
// database.
//
// The server is taken from PG_TEST_DSN when set. Otherwise a disposable
// Postgres container is started once per test binary with testcontainers;
// tests are skipped when no Docker daemon is reachable.
package pgtestutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	DSNEnv        = "PG_TEST_DSN"
	image         = "postgres:16-alpine"
	migrationsDir = "cmd/migrator/migrations"
)

var (
	serverOnce sync.Once
	serverDSN  string
	serverErr  error
)

// NewTestDB creates an empty database on the test server, applies the
// service migrations and returns a handle plus a cleanup that drops it.
func NewTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()

	baseDSN := baseServerDSN(t)

	adminDSN, err := ReplaceDBInDSN(baseDSN, "postgres")
	if err != nil {
		t.Fatalf("admin dsn: %v", err)
	}
	admin, err := sql.Open("pgx", adminDSN)
	if err != nil {
		t.Fatalf("open admin: %v", err)
	}

	dbName := sanitizeForPgIdent(uniqueDBName("testdb", t.Name()))

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	const maxAttempts = 5
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		_, err = admin.ExecContext(ctx,
			fmt.Sprintf(`CREATE DATABASE "%s" WITH TEMPLATE template0 ENCODING 'UTF8'`, dbName))
		if err == nil {
			break
		}
		if !isDuplicateDatabase(err) || attempt == maxAttempts {
			_ = admin.Close()
			t.Fatalf("create database: %v", err)
		}
		dbName = sanitizeForPgIdent(uniqueDBName("testdb", t.Name()))
	}

	testDSN, err := ReplaceDBInDSN(baseDSN, dbName)
	if err != nil {
		_ = admin.Close()
		t.Fatalf("test dsn: %v", err)
	}

	db, err := sql.Open("pgx", testDSN)
	if err != nil {
		_ = admin.Close()
		t.Fatalf("open test db: %v", err)
	}

	db.SetConnMaxIdleTime(100 * time.Millisecond)
	db.SetConnMaxLifetime(30 * time.Second)

	err = migrateUp(db)
	if err != nil {
		_ = db.Close()
		_ = admin.Close()
		t.Fatalf("migrate: %v", err)
	}

	cleanup := func() {
		_ = db.Close()

		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()

		_, derr := admin.ExecContext(dctx,
			fmt.Sprintf(`DROP DATABASE IF EXISTS "%s" WITH (FORCE)`, dbName))
		if derr != nil {
			t.Logf("drop database %s: %v", dbName, derr)
		}
		_ = admin.Close()
	}

	return db, cleanup
}

func baseServerDSN(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv(DSNEnv)
	if dsn != "" {
		return dsn
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	serverOnce.Do(func() {
		serverDSN, serverErr = startContainer(context.Background())
	})
	if serverErr != nil {
		t.Fatalf("postgres test server: %v", serverErr)
	}

	return serverDSN
}

// startContainer is not tied to a single test: the container serves the
// whole binary and is reaped by testcontainers when the process exits.
func startContainer(ctx context.Context) (string, error) {
	c, err := tcpostgres.Run(ctx, image,
		tcpostgres.WithDatabase("postgres"),
		tcpostgres.WithUsername("myuser"),
		tcpostgres.WithPassword("mypassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return "", fmt.Errorf("connection string: %w", err)
	}

	return dsn, nil
}

func migrateUp(db *sql.DB) error {
	absPath, err := migrationsAbsPath()
	if err != nil {
		return fmt.Errorf("resolve migrations path: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("postgres driver: %w", err)
	}

	src, err := (&file.File{}).Open(absPath)
	if err != nil {
		return fmt.Errorf("open migrations dir: %w", err)
	}

	m, err := migrate.NewWithInstance("file", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	return nil
}

// ReplaceDBInDSN swaps the database name in a URL-form Postgres DSN.
func ReplaceDBInDSN(dsn, newDB string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("dsn must be a postgres:// url, got scheme %q", u.Scheme)
	}

	u.Path = "/" + newDB
	return u.String(), nil
}

func migrationsAbsPath() (string, error) {
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	// internal/infra/pgtestutil -> internal/infra -> internal -> repo root
	repoRoot := filepath.Join(filepath.Dir(thisFile), "..", "..", "..")

	abs, err := filepath.Abs(filepath.Join(repoRoot, migrationsDir))
	if err != nil {
		return "", fmt.Errorf("abs migrations path: %w", err)
	}
	return abs, nil
}

func uniqueDBName(prefix, testName string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(testName))
	var rnd [6]byte
	_, _ = rand.Read(rnd[:])
	return fmt.Sprintf("%s_%08x_%s", prefix, h.Sum32(), hex.EncodeToString(rnd[:]))
}

func sanitizeForPgIdent(s string) string {
	s = strings.ToLower(s)
	repl := strings.NewReplacer("/", "_", "\\", "_", " ", "_", ":", "_", "-", "_")
	s = repl.Replace(s)
	if len(s) <= 63 {
		return s
	}
	return s[:31] + "_" + s[len(s)-31:]
}

// isDuplicateDatabase covers both the catalog check (42P04) and the race on
// pg_database's unique index (23505).
func isDuplicateDatabase(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	return pgErr.Code == "42P04" || pgErr.Code == "23505"
}
