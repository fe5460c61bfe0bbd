// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store persists settings and the protocol history in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/ZaparooProject/thixx"
)

const createSchema = `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS history (
	id         TEXT PRIMARY KEY,
	mode       TEXT NOT NULL,
	payload    TEXT NOT NULL,
	record     TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_history_created ON history(created_at);
`

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a history entry does not exist.
var ErrNotFound = errors.New("not found")

// Entry is one successful interaction.
type Entry struct {
	CreatedAt time.Time
	Record    thixx.Record
	ID        string
	Mode      string
	Payload   string
}

// Store wraps the SQLite database.
type Store struct {
	conn *sql.DB
	now  func() time.Time
}

var openDB = sql.Open

// Open opens or creates the database at path, creating its directory.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	conn, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("setting %s: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(createSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{conn: conn, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// SetSetting stores value under key, replacing any previous value.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// GetSetting returns the value stored under key, or "" when unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading setting %s: %w", key, err)
	}
	return value, nil
}

// Settings returns all stored settings.
func (s *Store) Settings(ctx context.Context) (map[string]string, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	return out, nil
}

// AddHistory records a successful interaction and returns its id.
func (s *Store) AddHistory(ctx context.Context, mode, payload string, record thixx.Record) (string, error) {
	if record == nil {
		record = thixx.Record{}
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encoding record: %w", err)
	}

	id := uuid.NewString()
	created := s.now().UTC().Format(timeLayout)
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO history (id, mode, payload, record, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, mode, payload, string(raw), created,
	)
	if err != nil {
		return "", fmt.Errorf("adding history: %w", err)
	}
	return id, nil
}

// History returns up to limit entries, newest first. A limit of zero or
// less returns every entry.
func (s *Store) History(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, mode, payload, record, created_at FROM history
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	return entries, nil
}

// HistoryEntry returns the entry with the given id.
func (s *Store) HistoryEntry(ctx context.Context, id string) (Entry, error) {
	row := s.conn.QueryRowContext(ctx,
		`SELECT id, mode, payload, record, created_at FROM history WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("history %s: %w", id, ErrNotFound)
	}
	return e, err
}

// ClearHistory deletes every history entry.
func (s *Store) ClearHistory(ctx context.Context) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e       Entry
		raw     string
		created string
	)
	if err := sc.Scan(&e.ID, &e.Mode, &e.Payload, &raw, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scanning history: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &e.Record); err != nil {
		return Entry{}, fmt.Errorf("decoding record of %s: %w", e.ID, err)
	}
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing time of %s: %w", e.ID, err)
	}
	e.CreatedAt = t
	return e, nil
}
