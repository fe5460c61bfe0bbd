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

package pn532

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
)

var logger atomic.Pointer[slog.Logger]

// debugEnabled forces debug records through even when the logger's handler
// is not at debug level. PN532_DEBUG or DEBUG in the environment set it.
var debugEnabled atomic.Bool

func init() {
	logger.Store(slog.New(slog.DiscardHandler))
	if os.Getenv("PN532_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled.Store(true)
	}
}

// SetLogger routes the package's debug output to l.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	logger.Store(l.With("component", "pn532"))
}

// SetDebugEnabled allows programmatic control of debug logging
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

func debugf(format string, args ...any) {
	l := logger.Load()
	ctx := context.Background()
	if !debugEnabled.Load() && !l.Enabled(ctx, slog.LevelDebug) {
		return
	}
	level := slog.LevelDebug
	if debugEnabled.Load() && !l.Enabled(ctx, slog.LevelDebug) {
		level = slog.LevelInfo
	}
	l.Log(ctx, level, fmt.Sprintf(format, args...))
}
