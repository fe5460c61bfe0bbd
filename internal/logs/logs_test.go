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

package logs

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventLog_NewestFirstAndBounded(t *testing.T) {
	t.Parallel()

	events := NewEventLog(3, slog.LevelInfo)
	logger := slog.New(events)
	for i := range 5 {
		logger.Info("event " + strconv.Itoa(i))
	}

	entries := events.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "event 4", entries[0].Message)
	assert.Equal(t, "event 3", entries[1].Message)
	assert.Equal(t, "event 2", entries[2].Message)

	events.Clear()
	assert.Empty(t, events.Entries())
}

func TestEventLog_PartiallyFilled(t *testing.T) {
	t.Parallel()

	events := NewEventLog(0, nil)
	logger := slog.New(events)
	logger.Info("first")
	logger.Debug("hidden")
	logger.Warn("second")

	entries := events.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "second", entries[0].Message)
	assert.Equal(t, slog.LevelWarn, entries[0].Level)
	assert.Equal(t, "first", entries[1].Message)
}

func TestEventLog_Attrs(t *testing.T) {
	t.Parallel()

	events := NewEventLog(DefaultEventLogSize, slog.LevelInfo)
	logger := slog.New(events).With("mode", "write").WithGroup("tag")
	logger.Info("tag written", "bytes", 42)

	entries := events.Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Attrs, "mode=write")
	assert.Contains(t, entries[0].Attrs, "tag.bytes=42")
	assert.True(t, strings.HasSuffix(entries[0].String(), entries[0].Attrs))
	assert.Contains(t, entries[0].String(), "INFO tag written")
}

func TestNew_FanOut(t *testing.T) {
	t.Parallel()

	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "session.log")

	l, err := New(Options{Console: &console, Level: "info", Format: FormatJSON, File: path, EventLogSize: 5})
	require.NoError(t, err)

	l.Logger.Info("tag read", "uid", "04a1")
	l.Logger.Debug("poll")
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "second close is a no-op")

	var rec map[string]any
	line, _, _ := bytes.Cut(console.Bytes(), []byte("\n"))
	require.NoError(t, json.Unmarshal(line, &rec))
	assert.Equal(t, "tag read", rec["msg"])
	assert.Equal(t, "04a1", rec["uid"])
	assert.Equal(t, l.SessionID, rec["session"])
	assert.NotContains(t, console.String(), "poll")

	require.Len(t, l.Events.Entries(), 1)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "=== thixx session "+l.SessionID)
	assert.Contains(t, string(data), `"msg":"poll"`, "the session file records debug output")
	assert.Contains(t, string(data), "ended")
}

func TestNew_TextConsoleAndLevelChange(t *testing.T) {
	t.Parallel()

	var console bytes.Buffer
	l, err := New(Options{Console: &console, Format: FormatText})
	require.NoError(t, err)

	l.Logger.Debug("hidden")
	l.SetLevel(slog.LevelDebug)
	l.Logger.Debug("shown")

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "msg=shown")
}

func TestNew_BadLevel(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"info", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestConsoleHandler_AutoOnNonTerminal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slog.New(consoleHandler(&buf, FormatAuto, slog.LevelInfo)).Info("x")
	assert.True(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestJournalKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SESSION_ID", journalKey("session.id"))
	assert.Equal(t, "UID", journalKey("uid"))
}
