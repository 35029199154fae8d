// Package store persists what Actions want to remember between events: a
// history of messages, key/value facts and counters.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Store is the persistence used by the built-in Actions.
type Store interface {
	Close() error
	SaveRecord(ctx context.Context, rec Record) error
	// History returns the most recent records, newest first. Empty source or
	// channel match anything.
	History(ctx context.Context, source, channel string, limit int) ([]Record, error)
	SetFact(ctx context.Context, scope, key, value string) error
	GetFact(ctx context.Context, scope, key string) (string, bool, error)
	// Increment adds delta to a counter, creating it at zero, and returns the
	// new value.
	Increment(ctx context.Context, scope, key string, delta int64) (int64, error)
}

// Record is one stored message.
type Record struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"`
	Channel   string    `json:"channel"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// sqlStore holds the queries shared by both backends. Queries are written
// with ? placeholders and rewritten by bind for drivers that need $n.
type sqlStore struct {
	db   *sql.DB
	bind func(string) string
}

func questionMarks(q string) string { return q }

func dollarPlaceholders(q string) string {
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	return s.db.Close()
}

// SaveRecord stores a message. A zero CreatedAt is set to now.
func (s *sqlStore) SaveRecord(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	query := s.bind(`INSERT INTO records (source, channel, sender, text, created_at) VALUES (?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, rec.Source, rec.Channel, rec.Sender, rec.Text, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

func (s *sqlStore) History(ctx context.Context, source, channel string, limit int) ([]Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := s.bind(`SELECT id, source, channel, sender, text, created_at FROM records
		WHERE (? = '' OR source = ?) AND (? = '' OR channel = ?)
		ORDER BY id DESC LIMIT ?`)
	rows, err := s.db.QueryContext(ctx, query, source, source, channel, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var results []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.Channel, &rec.Sender, &rec.Text, &rec.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

func (s *sqlStore) SetFact(ctx context.Context, scope, key, value string) error {
	query := s.bind(`INSERT INTO facts (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	_, err := s.db.ExecContext(ctx, query, scope, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set fact %s/%s: %w", scope, key, err)
	}
	return nil
}

func (s *sqlStore) GetFact(ctx context.Context, scope, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.bind(`SELECT value FROM facts WHERE scope = ? AND key = ?`), scope, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get fact %s/%s: %w", scope, key, err)
	}
	return value, true, nil
}

func (s *sqlStore) Increment(ctx context.Context, scope, key string, delta int64) (int64, error) {
	query := s.bind(`INSERT INTO counters (scope, key, value) VALUES (?, ?, ?)
		ON CONFLICT (scope, key) DO UPDATE SET value = counters.value + excluded.value
		RETURNING value`)
	var value int64
	if err := s.db.QueryRowContext(ctx, query, scope, key, delta).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to increment counter %s/%s: %w", scope, key, err)
	}
	return value, nil
}

func migrate(db *sql.DB, queries []string) error {
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}
