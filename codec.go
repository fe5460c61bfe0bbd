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
	"strings"
)

// VersionMarker is the mandatory first line of the compact format.
const VersionMarker = "v1"

// EncodeCompact serializes r into the compact tag format: the version marker
// followed by one "token:value" line per present field in table order.
// Blank values and keys outside the field table are not written.
func EncodeCompact(r Record) string {
	var b strings.Builder
	b.WriteString(VersionMarker)
	for _, e := range r.Entries() {
		if strings.TrimSpace(e.Value) == "" {
			continue
		}
		b.WriteByte('\n')
		b.WriteString(e.Field.Token)
		b.WriteByte(':')
		b.WriteString(e.Value)
	}
	return b.String()
}

// EncodeURL appends the present fields of r to baseURL as "token=value"
// query parameters in table order. Parameters already on baseURL are kept
// in front.
func EncodeURL(r Record, baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("base url %q is not absolute", baseURL)
	}

	pairs := make([]string, 0, len(r)+1)
	if u.RawQuery != "" {
		pairs = append(pairs, u.RawQuery)
	}
	for _, e := range r.Entries() {
		if strings.TrimSpace(e.Value) == "" {
			continue
		}
		pairs = append(pairs, url.QueryEscape(e.Field.Token)+"="+url.QueryEscape(e.Value))
	}
	u.RawQuery = strings.Join(pairs, "&")
	return u.String(), nil
}

// Decode parses a tag payload in either the compact or the URL format.
//
// Blank input fails with FormatEmpty. Text that is neither a compact block
// nor an http(s) URL fails with FormatUnrecognized. A recognized payload
// without a single field fails with FormatNoData and still returns the empty
// record. Unknown tokens are kept under their token so newer writers stay
// readable.
func Decode(text string) (Record, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &FormatError{Reason: FormatEmpty}
	}
	if looksLikeURL(trimmed) {
		return DecodeURL(trimmed)
	}

	lines := strings.Split(strings.ReplaceAll(trimmed, "\r\n", "\n"), "\n")
	if strings.TrimSpace(lines[0]) != VersionMarker {
		return nil, &FormatError{Reason: FormatUnrecognized}
	}

	r := make(Record, len(lines)-1)
	for _, line := range lines[1:] {
		token, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		putToken(r, token, value)
	}
	if len(r) == 0 {
		return r, &FormatError{Reason: FormatNoData}
	}
	return r, nil
}

// DecodeURL parses the URL format only.
func DecodeURL(raw string) (Record, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, &FormatError{Reason: FormatUnrecognized, Detail: err.Error()}
	}
	if !isHTTP(u) {
		return nil, &FormatError{Reason: FormatUnrecognized, Detail: "not an http(s) url"}
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return nil, &FormatError{Reason: FormatUnrecognized, Detail: err.Error()}
	}

	r := make(Record, len(query))
	for token, values := range query {
		if len(values) == 0 {
			continue
		}
		putToken(r, token, values[0])
	}
	if len(r) == 0 {
		return r, &FormatError{Reason: FormatNoData}
	}
	return r, nil
}

func putToken(r Record, token, value string) {
	token = strings.TrimSpace(token)
	value = strings.TrimSpace(value)
	if token == "" || value == "" {
		return
	}
	if f, ok := LookupToken(token); ok {
		r[f.Name] = value
		return
	}
	r[token] = value
}

func looksLikeURL(text string) bool {
	if strings.ContainsAny(text, "\n ") {
		return false
	}
	u, err := url.Parse(text)
	return err == nil && isHTTP(u)
}

func isHTTP(u *url.URL) bool {
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
