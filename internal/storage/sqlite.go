package storage

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	baseStore
}

var sqliteQueries = queries{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			event_ts REAL NOT NULL,
			session TEXT NOT NULL,
			detector TEXT NOT NULL,
			reason TEXT NOT NULL,
			detail TEXT NOT NULL,
			label TEXT NOT NULL,
			rule_json TEXT,
			context_json TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_session ON alerts(session)`,
		`CREATE TABLE IF NOT EXISTS models (
			name TEXT PRIMARY KEY,
			updated_at TEXT NOT NULL,
			rules INTEGER NOT NULL,
			payload TEXT NOT NULL
		)`,
	},
	insertAlert: `INSERT INTO alerts (id, ts, event_ts, session, detector, reason, detail, label, rule_json, context_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	upsertModel: `INSERT INTO models (name, updated_at, rules, payload) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET updated_at = excluded.updated_at, rules = excluded.rules, payload = excluded.payload`,
	selectModel: `SELECT payload FROM models WHERE name = ?`,
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:arguard.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db, q: sqliteQueries}}, nil
}
