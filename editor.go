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

package thixx

import (
	"time"

	"github.com/ZaparooProject/thixx/internal/syncutil"
)

// Editor owns the form being edited. Writers take a Snapshot, so edits made
// while a write is in flight never reach the submitted payload.
type Editor struct {
	form  Form
	limit int
	mu    syncutil.Mutex
}

// NewEditor returns an editor holding a fresh form dated now. A limit of
// zero or less selects MaxPayloadSize.
func NewEditor(now time.Time, limit int) *Editor {
	if limit <= 0 {
		limit = MaxPayloadSize
	}
	return &Editor{form: NewForm(now), limit: limit}
}

// Update applies fn to the form under the editor lock.
func (e *Editor) Update(fn func(*Form)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.form)
}

// Set stores a single input value.
func (e *Editor) Set(name, value string) {
	e.Update(func(f *Form) { f.Set(name, value) })
}

// Load replaces the form with the contents of r.
func (e *Editor) Load(r Record) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.form = Populate(r)
}

// Form returns a copy of the current form.
func (e *Editor) Form() Form {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.form.Clone()
}

// Snapshot collects the current form into an independent record.
func (e *Editor) Snapshot() Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Collect(e.form)
}

// CurrentPayload returns the compact encoding of the current form.
func (e *Editor) CurrentPayload() string {
	return EncodeCompact(e.Snapshot())
}

// PayloadStatus measures the current payload against the editor limit.
func (e *Editor) PayloadStatus() PayloadStatus {
	return StatusOf(e.CurrentPayload(), e.limit)
}
