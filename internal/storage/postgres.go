package storage

import (
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresStore struct {
	baseStore
}

var postgresQueries = queries{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			event_ts DOUBLE PRECISION NOT NULL,
			session TEXT NOT NULL,
			detector TEXT NOT NULL,
			reason TEXT NOT NULL,
			detail TEXT NOT NULL,
			label TEXT NOT NULL,
			rule_json JSONB,
			context_json JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_session ON alerts(session)`,
		`CREATE TABLE IF NOT EXISTS models (
			name TEXT PRIMARY KEY,
			updated_at TIMESTAMPTZ NOT NULL,
			rules INTEGER NOT NULL,
			payload JSONB NOT NULL
		)`,
	},
	insertAlert: `INSERT INTO alerts (id, ts, event_ts, session, detector, reason, detail, label, rule_json, context_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	upsertModel: `INSERT INTO models (name, updated_at, rules, payload) VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE SET updated_at = EXCLUDED.updated_at, rules = EXCLUDED.rules, payload = EXCLUDED.payload`,
	selectModel: `SELECT payload::text FROM models WHERE name = $1`,
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/arguard?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db, q: postgresQueries}}, nil
}
