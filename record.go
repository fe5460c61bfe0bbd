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
	"slices"
	"strings"
)

// Record maps canonical field names to values. Iteration order on the wire
// comes from the field table, never from the map.
type Record map[string]string

// Entry is a present field of a record.
type Entry struct {
	Field Field
	Value string
}

// Clone returns an independent copy of the record. A nil record clones to
// an empty one.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Get returns the value stored under name, or "" when absent.
func (r Record) Get(name string) string {
	return r[name]
}

// Has reports whether name holds a non-blank value.
func (r Record) Has(name string) bool {
	return strings.TrimSpace(r[name]) != ""
}

// Entries returns the known, non-empty fields of r in table order.
func (r Record) Entries() []Entry {
	entries := make([]Entry, 0, len(r))
	for _, f := range fieldTable {
		if v, ok := r[f.Name]; ok && v != "" {
			entries = append(entries, Entry{Field: f, Value: v})
		}
	}
	return entries
}

// Unknown returns the keys of r that are not part of the field table,
// sorted for stable output.
func (r Record) Unknown() []string {
	var keys []string
	for k := range r {
		if !IsKnownField(k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}

// Equal reports whether both records hold the same keys and values.
func (r Record) Equal(other Record) bool {
	if len(r) != len(other) {
		return false
	}
	for k, v := range r {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}
