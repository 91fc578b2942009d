package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

// openTestDatabase returns a migrated database. TEST_DATABASE_URL reuses an
// existing server (its public schema is reset); PROPOSALDESK_PG_TESTS=1 starts
// a throwaway container instead.
func openTestDatabase(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	dsn := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if dsn == "" {
		if os.Getenv("PROPOSALDESK_PG_TESTS") != "1" {
			t.Skip("set TEST_DATABASE_URL or PROPOSALDESK_PG_TESTS=1 to run Postgres tests")
		}
		pgC, err := postgres.Run(ctx,
			"postgres:16",
			postgres.WithDatabase("proposaldesk"),
			postgres.WithUsername("proposaldesk"),
			postgres.WithPassword("proposaldesk"),
			postgres.BasicWaitStrategies(),
		)
		if err != nil {
			t.Fatalf("start postgres: %v", err)
		}
		t.Cleanup(func() { _ = pgC.Terminate(context.Background()) })

		dsn, err = pgC.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			t.Fatalf("postgres connection string: %v", err)
		}
	}

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db, Migrations()); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func TestPostgresStoreContract(t *testing.T) {
	db := openTestDatabase(t)
	runStoreContract(t, NewPostgresStore(db))
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()

	if err := ApplyMigrations(ctx, db, Migrations()); err != nil {
		t.Fatalf("second ApplyMigrations() error = %v", err)
	}
	var applied int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	ups, err := migrationFiles(Migrations(), ".up.sql")
	if err != nil {
		t.Fatalf("list migrations: %v", err)
	}
	if applied != len(ups) {
		t.Fatalf("expected %d recorded migrations, got %d", len(ups), applied)
	}
}

func TestProposalHistoryIsImmutable(t *testing.T) {
	db := openTestDatabase(t)
	ctx := context.Background()
	s := NewPostgresStore(db)

	p := seedProposal(t, s)
	if _, _, err := s.TransitionProposal(ctx, p.ID, p.Version, "PENDING", "ana", "", testNow); err != nil {
		t.Fatalf("TransitionProposal() error = %v", err)
	}

	statements := map[string]string{
		"UPDATE": `UPDATE proposal_history SET note = 'rewritten' WHERE proposal_id = $1`,
		"DELETE": `DELETE FROM proposal_history WHERE proposal_id = $1`,
	}
	for op, stmt := range statements {
		_, err := db.ExecContext(ctx, stmt, p.ID)
		if err == nil {
			t.Fatalf("expected %s to be blocked, but it succeeded", op)
		}
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) {
			t.Fatalf("expected PostgreSQL error, got: %v", err)
		}
		if pgErr.SQLState() != codeImmutableRow {
			t.Fatalf("expected SQLSTATE %s, got: %s", codeImmutableRow, pgErr.SQLState())
		}
		if want := "proposal_history is immutable; " + op + " is not allowed"; pgErr.Message != want {
			t.Fatalf("unexpected error message: %s", pgErr.Message)
		}
	}

	history, err := s.ListHistory(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListHistory() error = %v", err)
	}
	if len(history) != 1 || history[0].Note != "" {
		t.Fatalf("history changed despite guard: %+v", history)
	}
}
