package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"arguard/internal/codec"
	"arguard/internal/config"
	"arguard/internal/model"
)

// ErrNotFound is returned by LoadModel when no model is stored under the
// requested name.
var ErrNotFound = errors.New("not found")

type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveAlert(ctx context.Context, alert model.Alert) error
	SaveModel(ctx context.Context, m *model.Model) error
	LoadModel(ctx context.Context, name string) (*model.Model, error)
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// queries are the driver specific statements shared by baseStore.
type queries struct {
	schema      []string
	insertAlert string
	upsertModel string
	selectModel string
}

type baseStore struct {
	db *sql.DB
	q  queries
}

func (b *baseStore) Init(ctx context.Context) error {
	if b.db == nil {
		return nil
	}
	for _, stmt := range b.q.schema {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *baseStore) SaveAlert(ctx context.Context, alert model.Alert) error {
	if b.db == nil {
		return nil
	}
	var rule any
	if alert.Rule != nil {
		rule = encodeJSON(alert.Rule)
	}
	_, err := b.db.ExecContext(ctx, b.q.insertAlert,
		alert.ID,
		alert.Timestamp.UTC(),
		alert.EventTimestamp,
		alert.Session,
		alert.Detector,
		string(alert.Reason),
		alert.Detail,
		string(alert.Label),
		rule,
		encodeJSON(alert.Context),
	)
	return err
}

// SaveModel stores m under its name, replacing an earlier version.
func (b *baseStore) SaveModel(ctx context.Context, m *model.Model) error {
	if b.db == nil {
		return nil
	}
	payload, err := codec.Marshal(m)
	if err != nil {
		return err
	}
	_, err = b.db.ExecContext(ctx, b.q.upsertModel, m.Name, nowUTC(), len(m.Rules), string(payload))
	return err
}

func (b *baseStore) LoadModel(ctx context.Context, name string) (*model.Model, error) {
	if b.db == nil {
		return nil, ErrNotFound
	}
	var payload string
	err := b.db.QueryRowContext(ctx, b.q.selectModel, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return codec.Unmarshal([]byte(payload))
}

func encodeJSON(value any) string {
	data, _ := json.Marshal(value)
	return string(data)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
