// Package postgres stores the audit log in a history_entries table
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"warpmine/domain/core"
	"warpmine/domain/history"
	"warpmine/internal/errors"
	"warpmine/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Store implements ports.HistoryPort for PostgreSQL. Inserts are serialized
// through one mutex; reads go straight to the pool.
type Store struct {
	db *sqlx.DB
	mu sync.Mutex
}

var _ ports.HistoryPort = (*Store)(nil)

type row struct {
	Key        string         `db:"key"`
	TS         time.Time      `db:"ts"`
	RequestID  string         `db:"request_id"`
	Kind       string         `db:"kind"`
	Request    sql.NullString `db:"request"`
	Result     sql.NullString `db:"result"`
	Error      string         `db:"error"`
	DurationMS int64          `db:"duration_ms"`
}

// Connect opens a pool against url and verifies it with a ping
func Connect(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, errors.DatabaseError("failed to connect to database", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// New wraps an open pool
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func nullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

// Append inserts entry. A repeated key is ignored.
func (s *Store) Append(ctx context.Context, e history.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history_entries (key, ts, request_id, kind, request, result, error, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (key) DO NOTHING
	`, e.Key, e.Timestamp.Time(), string(e.RequestID), string(e.Kind),
		nullJSON(e.Request), nullJSON(e.Result), e.Error, e.DurationMS)
	if err != nil {
		return errors.DatabaseError("failed to append history entry", err)
	}
	return nil
}

// List returns matching entries newest first
func (s *Store) List(ctx context.Context, f history.Filter) ([]history.Entry, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Kind != "" {
		args = append(args, string(f.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since.Time())
		where = append(where, fmt.Sprintf("ts >= $%d", len(args)))
	}

	query := `SELECT key, ts, request_id, kind, request, result, error, duration_ms FROM history_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY key DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.DatabaseError("failed to list history entries", err)
	}

	out := make([]history.Entry, len(rows))
	for i, r := range rows {
		out[i] = history.Entry{
			Key:        r.Key,
			Timestamp:  core.NewTimestamp(r.TS.UTC()),
			RequestID:  core.RequestID(r.RequestID),
			Kind:       history.Kind(r.Kind),
			Error:      r.Error,
			DurationMS: r.DurationMS,
		}
		if r.Request.Valid {
			out[i].Request = json.RawMessage(r.Request.String)
		}
		if r.Result.Valid {
			out[i].Result = json.RawMessage(r.Result.String)
		}
	}
	return out, nil
}

// Close closes the pool
func (s *Store) Close() error {
	return s.db.Close()
}
