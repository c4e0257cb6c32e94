package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

var postgresDialect = dialect{
	name:     "postgres",
	numbered: true,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			starting_balance DOUBLE PRECISION NOT NULL,
			account_mode TEXT NOT NULL,
			source TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sequences (
			seq_no BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			asset TEXT NOT NULL,
			direction TEXT NOT NULL,
			outcome TEXT NOT NULL,
			scenario INTEGER NOT NULL,
			levels INTEGER NOT NULL,
			profit DOUBLE PRECISION NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			payload TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sequences_session ON sequences(session_id, seq_no);`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			reason TEXT NOT NULL,
			message TEXT NOT NULL,
			snapshot TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_session ON alerts(session_id);`,
	},
}

// PostgresStore keeps the ledger in a shared Postgres database.
type PostgresStore struct {
	sqlStore
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}

	store := &PostgresStore{sqlStore{db: db, d: postgresDialect}}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
