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

package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/thixx"
)

func tmpStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "thixx.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_CreatesSchema(t *testing.T) {
	t.Parallel()
	s := tmpStore(t)

	for _, table := range []string{"settings", "history"} {
		var name string
		err := s.conn.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}

	var mode string
	require.NoError(t, s.conn.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpen_Reopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "thixx.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetSetting(ctx, "language", "de"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	v, err := s.GetSetting(ctx, "language")
	require.NoError(t, err)
	assert.Equal(t, "de", v)
}

//nolint:paralleltest // replaces the package level opener
func TestOpen_DriverError(t *testing.T) {
	orig := openDB
	t.Cleanup(func() { openDB = orig })
	openDB = func(string, string) (*sql.DB, error) {
		return nil, errors.New("boom")
	}

	_, err := Open(filepath.Join(t.TempDir(), "thixx.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening database")
}

func TestSettings(t *testing.T) {
	t.Parallel()
	s := tmpStore(t)
	ctx := context.Background()

	v, err := s.GetSetting(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, s.SetSetting(ctx, "theme", "dark"))
	require.NoError(t, s.SetSetting(ctx, "theme", "thixx"))
	require.NoError(t, s.SetSetting(ctx, "language", "en"))

	v, err = s.GetSetting(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, "thixx", v)

	all, err := s.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"theme": "thixx", "language": "en"}, all)
}

func TestHistory(t *testing.T) {
	t.Parallel()
	s := tmpStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	first := thixx.Record{thixx.FieldHKNr: "12", thixx.FieldKKS: "A1"}
	second := thixx.Record{thixx.FieldHKNr: "13"}

	id1, err := s.AddHistory(ctx, "write", "v1\nHK:12\nKKS:A1", first)
	require.NoError(t, err)
	id2, err := s.AddHistory(ctx, "read", "v1\nHK:13", second)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	entries, err := s.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, id2, entries[0].ID)
	assert.Equal(t, "read", entries[0].Mode)
	assert.Equal(t, second, entries[0].Record)
	assert.True(t, base.Add(2*time.Second).Equal(entries[0].CreatedAt))
	assert.Equal(t, id1, entries[1].ID)
	assert.Equal(t, "v1\nHK:12\nKKS:A1", entries[1].Payload)
	assert.Equal(t, first, entries[1].Record)

	limited, err := s.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, id2, limited[0].ID)

	e, err := s.HistoryEntry(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "write", e.Mode)

	_, err = s.HistoryEntry(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.ClearHistory(ctx))
	entries, err = s.History(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAddHistory_NilRecord(t *testing.T) {
	t.Parallel()
	s := tmpStore(t)
	ctx := context.Background()

	id, err := s.AddHistory(ctx, "read", "", nil)
	require.NoError(t, err)

	e, err := s.HistoryEntry(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, e.Record)
}

func TestCancelledContext(t *testing.T) {
	t.Parallel()
	s := tmpStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.SetSetting(ctx, "k", "v")
	require.Error(t, err)
}
