//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema mirrors the production tables. Kept inline so integration tests do
// not depend on an external migration tool.
const schema = `
CREATE TABLE IF NOT EXISTS assets (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	name TEXT NOT NULL,
	category TEXT NOT NULL,
	encrypted_value TEXT NOT NULL,
	currency TEXT NOT NULL,
	acquired_at TIMESTAMPTZ NOT NULL,
	zakatable BOOLEAN NOT NULL,
	calculation_modifier NUMERIC(10,4) NOT NULL,
	passive_investment BOOLEAN NOT NULL,
	restricted_account BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	deleted_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_assets_user ON assets (user_id);

CREATE TABLE IF NOT EXISTS liabilities (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	amount NUMERIC(20,8) NOT NULL,
	deductible BOOLEAN NOT NULL,
	due_within_year BOOLEAN NOT NULL,
	immediately_payable BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_liabilities_user ON liabilities (user_id);

CREATE TABLE IF NOT EXISTS nisab_year_records (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL,
	methodology TEXT NOT NULL,
	calendar TEXT NOT NULL,
	hawl_start_date TIMESTAMPTZ,
	hawl_start_date_hijri TEXT NOT NULL DEFAULT '',
	hawl_completion_date TIMESTAMPTZ,
	hawl_completion_date_hijri TEXT NOT NULL DEFAULT '',
	nisab_basis TEXT NOT NULL,
	nisab_threshold_at_start NUMERIC(20,8) NOT NULL,
	total_wealth NUMERIC(20,8) NOT NULL,
	total_liabilities NUMERIC(20,8) NOT NULL,
	zakatable_wealth NUMERIC(20,8) NOT NULL,
	zakat_amount NUMERIC(20,8) NOT NULL,
	status TEXT NOT NULL,
	is_primary BOOLEAN NOT NULL,
	finalization_notes TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	finalized_at TIMESTAMPTZ,
	unlocked_at TIMESTAMPTZ,
	superseded_at TIMESTAMPTZ,
	version INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_user ON nisab_year_records (user_id);

CREATE TABLE IF NOT EXISTS audit_events (
	id UUID PRIMARY KEY,
	record_id UUID NOT NULL,
	user_id UUID NOT NULL,
	sequence BIGINT NOT NULL,
	action TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	device_name TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	encrypted_note TEXT NOT NULL DEFAULT '',
	payload TEXT NOT NULL DEFAULT '',
	UNIQUE (record_id, sequence)
);
CREATE INDEX IF NOT EXISTS idx_audit_events_record ON audit_events (record_id);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// application schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DSN       string
	DB        *sql.DB
}

// NewPostgresContainer starts a PostgreSQL container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("mizan_test"),
		tcpostgres.WithUsername("mizan"),
		tcpostgres.WithPassword("mizan"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("failed to ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{
		Container: container,
		DSN:       dsn,
		DB:        db,
	}
}

// Truncate clears all tables. Use between tests to ensure isolation.
func (p *PostgresContainer) Truncate(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx,
		`TRUNCATE assets, liabilities, nisab_year_records, audit_events`)
	return err
}
