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
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ZaparooProject/thixx/internal/syncutil"
)

// DefaultEventLogSize is how many entries the event log keeps.
const DefaultEventLogSize = 15

// Entry is one line of the event log.
type Entry struct {
	Time    time.Time
	Message string
	Attrs   string
	Level   slog.Level
}

func (e Entry) String() string {
	line := fmt.Sprintf("%s %s %s", e.Time.Format("15:04:05"), e.Level, e.Message)
	if e.Attrs != "" {
		line += " " + e.Attrs
	}
	return line
}

// EventLog keeps the newest log records for display. It is a slog.Handler
// so it can sit in the same fan-out as the other outputs.
type EventLog struct {
	store *ring
	attrs []slog.Attr
	group string
	level slog.Leveler
}

type ring struct {
	entries []Entry
	next    int
	full    bool
	mu      syncutil.RWMutex
}

// NewEventLog returns an event log holding up to size entries at or above
// level.
func NewEventLog(size int, level slog.Leveler) *EventLog {
	if size < 1 {
		size = DefaultEventLogSize
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &EventLog{store: &ring{entries: make([]Entry, size)}, level: level}
}

// Entries returns the stored entries, newest first.
func (l *EventLog) Entries() []Entry {
	r := l.store
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.next
	if r.full {
		n = len(r.entries)
	}
	out := make([]Entry, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, r.entries[(r.next-i+len(r.entries))%len(r.entries)])
	}
	return out
}

// Clear drops all entries.
func (l *EventLog) Clear() {
	r := l.store
	r.mu.Lock()
	clear(r.entries)
	r.next, r.full = 0, false
	r.mu.Unlock()
}

// Enabled implements slog.Handler.
func (l *EventLog) Enabled(_ context.Context, level slog.Level) bool {
	return level >= l.level.Level()
}

// Handle implements slog.Handler.
func (l *EventLog) Handle(_ context.Context, rec slog.Record) error {
	var b strings.Builder
	write := func(a slog.Attr) {
		if a.Equal(slog.Attr{}) {
			return
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		key := a.Key
		if l.group != "" {
			key = l.group + "." + key
		}
		fmt.Fprintf(&b, "%s=%v", key, a.Value.Resolve())
	}
	for _, a := range l.attrs {
		write(a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})

	r := l.store
	r.mu.Lock()
	r.entries[r.next] = Entry{Time: rec.Time, Level: rec.Level, Message: rec.Message, Attrs: b.String()}
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
	return nil
}

// WithAttrs implements slog.Handler.
func (l *EventLog) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *l
	c.attrs = append(append([]slog.Attr(nil), l.attrs...), attrs...)
	return &c
}

// WithGroup implements slog.Handler.
func (l *EventLog) WithGroup(name string) slog.Handler {
	if name == "" {
		return l
	}
	c := *l
	if c.group != "" {
		name = c.group + "." + name
	}
	c.group = name
	return &c
}
