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
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// MaxValueLength is the number of characters kept from an untrusted value.
	MaxValueLength = 200

	// MaxVoltage is the upper bound accepted for the Spannung field.
	MaxVoltage = 1000
)

// Sanitize cleans a record that came from an untrusted source such as a
// scanned tag or an imported file. Keys may be canonical names or short
// tokens. Unknown keys are dropped, values are trimmed, stripped of control
// characters and angle brackets and cut to MaxValueLength characters. A
// documentation link that is not an acceptable URL is dropped.
func Sanitize(r Record) Record {
	out := make(Record, len(r))
	for key, value := range r {
		field, ok := resolveKey(strings.TrimSpace(key))
		if !ok {
			continue
		}
		clean := SanitizeValue(value)
		if clean == "" {
			continue
		}
		if field.Name == FieldDokumentation && !IsValidDocURL(clean) {
			continue
		}
		out[field.Name] = clean
	}
	return out
}

// SanitizeValue applies the value rules of Sanitize to a single string.
func SanitizeValue(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, c := range value {
		if c < 0x20 || c == 0x7f || c == '<' || c == '>' {
			continue
		}
		b.WriteRune(c)
	}
	clean := strings.TrimSpace(b.String())
	if utf8.RuneCountInString(clean) > MaxValueLength {
		clean = string([]rune(clean)[:MaxValueLength])
	}
	return clean
}

func resolveKey(key string) (Field, bool) {
	if f, ok := LookupField(key); ok {
		return f, true
	}
	return LookupToken(key)
}

// IsValidDocURL reports whether raw may be stored as documentation link:
// an absolute https URL, or plain http on a loopback host.
func IsValidDocURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "https":
		return true
	case "http":
		host := u.Hostname()
		return host == "localhost" || host == "127.0.0.1"
	default:
		return false
	}
}

// numberPrefix matches the number a value starts with, such as "230" in
// "230 V".
var numberPrefix = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?`)

// leadingNumber parses the number at the start of v. A decimal comma is
// read as a point. Values without a leading number report false.
func leadingNumber(v string) (float64, bool) {
	m := numberPrefix.FindString(strings.ReplaceAll(strings.TrimSpace(v), ",", "."))
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks r against the field constraints and returns a
// *ValidationError listing every violation, or nil.
func Validate(r Record) error {
	var problems []Problem

	for _, key := range r.Unknown() {
		problems = append(problems, Problem{
			Field:   key,
			Message: fmt.Sprintf("Unknown field %q.", key),
		})
	}

	if v := strings.TrimSpace(r[FieldSpannung]); v != "" {
		n, ok := leadingNumber(v)
		if ok && (n < 0 || n > MaxVoltage) {
			problems = append(problems, Problem{
				Field:   FieldSpannung,
				Message: fmt.Sprintf("Voltage must be between 0 and %d V.", MaxVoltage),
			})
		}
	}

	if doc := strings.TrimSpace(r[FieldDokumentation]); doc != "" && !IsValidDocURL(doc) {
		problems = append(problems, Problem{
			Field:   FieldDokumentation,
			Message: "Documentation link must be an https URL.",
		})
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: problems}
}
