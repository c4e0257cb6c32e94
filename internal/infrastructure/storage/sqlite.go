package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			starting_balance REAL NOT NULL,
			account_mode TEXT NOT NULL,
			source TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sequences (
			seq_no INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			asset TEXT NOT NULL,
			direction TEXT NOT NULL,
			outcome TEXT NOT NULL,
			scenario INTEGER NOT NULL,
			levels INTEGER NOT NULL,
			profit REAL NOT NULL,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			payload TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sequences_session ON sequences(session_id, seq_no);`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			reason TEXT NOT NULL,
			message TEXT NOT NULL,
			snapshot TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_session ON alerts(session_id);`,
	},
}

// SQLiteStore is the default ledger store. Writes are committed with
// synchronous=FULL so an appended sequence survives a crash.
type SQLiteStore struct {
	sqlStore
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{sqlStore{db: db, d: sqliteDialect}}
	if err := store.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
