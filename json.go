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
	"encoding/json"
	"fmt"
	"io"
)

// ExportJSON writes r as an indented JSON object keyed by canonical names.
func ExportJSON(w io.Writer, r Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]string(r)); err != nil {
		return fmt.Errorf("export json: %w", err)
	}
	return nil
}

// ImportJSON reads a JSON object and sanitizes it like a scanned tag.
// Keys may be canonical names or short tokens, numbers are taken as their
// literal text and other value types are ignored.
func ImportJSON(rd io.Reader) (Record, error) {
	dec := json.NewDecoder(rd)
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, &FormatError{Reason: FormatUnrecognized, Detail: err.Error()}
	}
	if raw == nil {
		return nil, &FormatError{Reason: FormatEmpty}
	}

	r := make(Record, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			r[k] = val
		case json.Number:
			r[k] = val.String()
		}
	}
	return Sanitize(r), nil
}
