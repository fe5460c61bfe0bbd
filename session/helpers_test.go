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

package session

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaparooProject/thixx"
	"github.com/ZaparooProject/thixx/internal/syncutil"
)

func TestMain(m *testing.M) {
	// only effective under -tags deadlock
	syncutil.SetLockTimeout(5 * time.Second)
	os.Exit(m.Run())
}

// fakeRadio is a scripted Radio. Every Scan gets its own feed that tests
// push events into; the feed is released when the scan context ends.
type fakeRadio struct {
	scanErr    error
	feeds      []chan TagEvent
	writeErrs  []error
	writes     []string
	active     atomic.Int32
	mu         sync.Mutex
	blockWrite bool
}

func (r *fakeRadio) Scan(ctx context.Context) (<-chan TagEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanErr != nil {
		return nil, r.scanErr
	}

	feed := make(chan TagEvent, 8)
	r.feeds = append(r.feeds, feed)
	out := make(chan TagEvent)
	r.active.Add(1)
	go func() {
		defer r.active.Add(-1)
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-feed:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *fakeRadio) Write(ctx context.Context, payload string) error {
	r.mu.Lock()
	idx := len(r.writes)
	r.writes = append(r.writes, payload)
	block := r.blockWrite
	var err error
	if idx < len(r.writeErrs) {
		err = r.writeErrs[idx]
	}
	r.mu.Unlock()

	if block {
		<-ctx.Done()
		return context.Cause(ctx)
	}
	return err
}

func (r *fakeRadio) push(scan int, ev TagEvent) {
	r.mu.Lock()
	feed := r.feeds[scan]
	r.mu.Unlock()
	feed <- ev
}

// end closes a scan's feed as a radio does when it stops on its own.
func (r *fakeRadio) end(scan int) {
	r.mu.Lock()
	feed := r.feeds[scan]
	r.mu.Unlock()
	close(feed)
}

func (r *fakeRadio) scanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.feeds)
}

func (r *fakeRadio) writeLog() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

type recorder struct {
	statuses []State
	messages []string
	results  []Result
	records  []thixx.Record
	mu       sync.Mutex
}

func (rec *recorder) callbacks() Callbacks {
	return Callbacks{
		OnStatus: func(s State, msg string) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.statuses = append(rec.statuses, s)
			rec.messages = append(rec.messages, msg)
		},
		OnResult: func(r Result) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.results = append(rec.results, r)
		},
		OnRecordReady: func(r thixx.Record) {
			rec.mu.Lock()
			defer rec.mu.Unlock()
			rec.records = append(rec.records, r)
		},
	}
}

func (rec *recorder) resultList() []Result {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]Result(nil), rec.results...)
}

func (rec *recorder) stateList() []State {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]State(nil), rec.statuses...)
}

func (rec *recorder) messageList() []string {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]string(nil), rec.messages...)
}

func (rec *recorder) recordList() []thixx.Record {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return append([]thixx.Record(nil), rec.records...)
}

func (rec *recorder) count(state State) int {
	n := 0
	for _, s := range rec.stateList() {
		if s == state {
			n++
		}
	}
	return n
}

func testConfig() *Config {
	return &Config{
		ActionTimeout:    400 * time.Millisecond,
		GracePeriod:      150 * time.Millisecond,
		Cooldown:         100 * time.Millisecond,
		RetryBackoff:     5 * time.Millisecond,
		MaxWriteAttempts: 3,
		PayloadLimit:     thixx.MaxPayloadSize,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(radio Radio, cfg *Config, rec *recorder, opts ...Option) *Controller {
	all := append([]Option{WithLogger(discardLogger()), WithCallbacks(rec.callbacks())}, opts...)
	return NewController(radio, cfg, all...)
}
