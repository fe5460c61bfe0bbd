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
	"strings"
	"time"
)

// DateLayout is the format of the "am" field.
const DateLayout = "2006-01-02"

// optionalFields are written only when their checkbox is ticked.
var optionalFields = []string{FieldPT100, FieldNiCrNi}

// IsOptional reports whether the field carries its own presence flag.
func IsOptional(name string) bool {
	for _, f := range optionalFields {
		if f == name {
			return true
		}
	}
	return false
}

// Form is the editable view of a record: raw input values plus the presence
// flag and enabled state of every optional field.
type Form struct {
	Values  map[string]string
	Flags   map[string]bool
	Enabled map[string]bool
}

// NewForm returns an empty form with the inspection date set to now and
// every optional field unchecked.
func NewForm(now time.Time) Form {
	f := emptyForm()
	f.Values[FieldAm] = now.Format(DateLayout)
	return f
}

func emptyForm() Form {
	f := Form{
		Values:  make(map[string]string),
		Flags:   make(map[string]bool, len(optionalFields)),
		Enabled: make(map[string]bool, len(optionalFields)),
	}
	for _, name := range optionalFields {
		f.SetFlag(name, false)
	}
	return f
}

// SetFlag ticks or clears the flag of an optional field and enables its
// input accordingly. It is a no-op for fields without a flag.
func (f *Form) SetFlag(name string, on bool) {
	if !IsOptional(name) {
		return
	}
	if f.Flags == nil {
		f.Flags = make(map[string]bool)
	}
	if f.Enabled == nil {
		f.Enabled = make(map[string]bool)
	}
	f.Flags[name] = on
	f.Enabled[name] = on
}

// Set stores a raw input value.
func (f *Form) Set(name, value string) {
	if f.Values == nil {
		f.Values = make(map[string]string)
	}
	f.Values[name] = value
}

// Consistent reports whether every optional input is enabled exactly when
// its flag is set.
func (f Form) Consistent() bool {
	for _, name := range optionalFields {
		if f.Flags[name] != f.Enabled[name] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the form.
func (f Form) Clone() Form {
	out := Form{
		Values:  make(map[string]string, len(f.Values)),
		Flags:   make(map[string]bool, len(f.Flags)),
		Enabled: make(map[string]bool, len(f.Enabled)),
	}
	for k, v := range f.Values {
		out.Values[k] = v
	}
	for k, v := range f.Flags {
		out.Flags[k] = v
	}
	for k, v := range f.Enabled {
		out.Enabled[k] = v
	}
	return out
}

// Collect builds a record from the form. Optional fields whose flag is not
// set are dropped even when a stale value remains in the input. Values are
// trimmed and empty ones omitted.
func Collect(f Form) Record {
	r := make(Record, len(f.Values))
	for _, field := range fieldTable {
		if IsOptional(field.Name) && !f.Flags[field.Name] {
			continue
		}
		v := strings.TrimSpace(f.Values[field.Name])
		if v == "" {
			continue
		}
		r[field.Name] = v
	}
	return r
}

// Populate fills a fresh form from r. Each optional flag follows the
// presence of its field.
func Populate(r Record) Form {
	f := emptyForm()
	for _, field := range fieldTable {
		if v, ok := r[field.Name]; ok {
			f.Values[field.Name] = v
		}
	}
	for _, name := range optionalFields {
		f.SetFlag(name, r.Has(name))
	}
	return f
}
