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

// Package logs builds the thixx logger: a console handler, the in-memory
// event log and optional session file and systemd journal outputs, fanned
// out from one slog.Logger.
package logs

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
	"golang.org/x/term"
)

// Console formats
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// Options configures New.
type Options struct {
	// Console receives human or JSON output; nil means os.Stderr.
	Console io.Writer
	Level   string
	// Format is auto, text or json. Auto picks text on a terminal.
	Format string
	// File appends a JSON copy of every record to this path when set.
	File string
	// EventLogSize bounds the event log.
	EventLogSize int
	// Journal adds a systemd journal output when one is reachable.
	Journal bool
	// Debug forces the debug level.
	Debug bool
}

// Logs owns the logger and its outputs.
type Logs struct {
	Logger *slog.Logger
	Events *EventLog
	// SessionID tags every record of this process.
	SessionID string
	level     *slog.LevelVar
	file      *os.File
}

// New builds the fan-out logger.
func New(opts Options) (*Logs, error) {
	level := new(slog.LevelVar)
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Debug || DebugFromEnv() {
		lvl = slog.LevelDebug
	}
	level.Set(lvl)

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	l := &Logs{
		Events:    NewEventLog(opts.EventLogSize, slog.LevelInfo),
		SessionID: uuid.NewString(),
		level:     level,
	}
	handlers := []slog.Handler{consoleHandler(console, opts.Format, level), l.Events}

	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("open session log: %w", err)
		}
		writeSessionHeader(f, l.SessionID)
		l.file = f
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	var journalErr error
	if opts.Journal {
		jh, err := slogjournal.NewHandler(&slogjournal.Options{
			Level:        level,
			ReplaceGroup: journalKey,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				a.Key = journalKey(a.Key)
				return a
			},
		})
		if err != nil {
			journalErr = err
		} else {
			handlers = append(handlers, jh)
		}
	}

	l.Logger = slog.New(slogmulti.Fanout(handlers...)).With("session", l.SessionID)
	if journalErr != nil {
		l.Logger.Warn("systemd journal unavailable", "error", journalErr)
	}
	return l, nil
}

// consoleHandler picks text output on a terminal and JSON otherwise,
// unless format forces one.
func consoleHandler(w io.Writer, format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "" || format == FormatAuto {
		format = FormatJSON
		if isTerminal(w) {
			format = FormatText
		}
	}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// ParseLevel maps debug, info, warn and error to slog levels. An empty
// string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// DebugFromEnv reports whether THIXX_DEBUG or DEBUG is set.
func DebugFromEnv() bool {
	return os.Getenv("THIXX_DEBUG") != "" || os.Getenv("DEBUG") != ""
}

// SetLevel changes the console level at runtime.
func (l *Logs) SetLevel(level slog.Level) {
	l.level.Set(level)
}

// Close writes the session footer and closes the session file.
func (l *Logs) Close() error {
	if l.file == nil {
		return nil
	}
	_, _ = fmt.Fprintf(l.file, "=== session %s ended %s ===\n", l.SessionID, time.Now().Format(time.RFC3339))
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("close session log: %w", err)
	}
	return nil
}

func writeSessionHeader(w io.Writer, id string) {
	_, _ = fmt.Fprintf(w, "=== thixx session %s ===\n", id)
	_, _ = fmt.Fprintf(w, "Started: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "PID: %d\n", os.Getpid())
	_, _ = fmt.Fprintf(w, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(w, "Go Version: %s\n", runtime.Version())
	_, _ = fmt.Fprintf(w, "Command Line: %s\n", strings.Join(os.Args, " "))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// journalKey maps an attribute key to the upper case form journald
// accepts for field names.
func journalKey(key string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, strings.ToUpper(key))
}
