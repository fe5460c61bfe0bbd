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

package ndef

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextRecord_RoundTrip(t *testing.T) {
	t.Parallel()

	rec, err := NewTextRecord("Wächter:5 °C", "")
	require.NoError(t, err)
	assert.Equal(t, byte(2), rec.Payload[0])
	assert.Equal(t, "de", string(rec.Payload[1:3]))

	tr, err := ParseTextRecord(rec.Payload)
	require.NoError(t, err)
	assert.Equal(t, "Wächter:5 °C", tr.Text)
	assert.Equal(t, DefaultLanguage, tr.Language)
	assert.False(t, tr.UTF16)
}

func TestTextRecord_LanguageTooLong(t *testing.T) {
	t.Parallel()

	_, err := NewTextRecord("x", strings.Repeat("a", 64))
	require.ErrorIs(t, err, ErrTextLanguageTooLong)
}

func TestParseTextRecord_UTF16(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "big endian with bom", payload: []byte{0x82, 'e', 'n', 0xFE, 0xFF, 0x00, 'h', 0x00, 'i'}},
		{name: "little endian with bom", payload: []byte{0x82, 'e', 'n', 0xFF, 0xFE, 'h', 0x00, 'i', 0x00}},
		{name: "no bom", payload: []byte{0x82, 'e', 'n', 0x00, 'h', 0x00, 'i'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr, err := ParseTextRecord(tt.payload)
			require.NoError(t, err)
			assert.True(t, tr.UTF16)
			assert.Equal(t, "hi", tr.Text)
			assert.Equal(t, "en", tr.Language)
		})
	}
}

func TestParseTextRecord_Errors(t *testing.T) {
	t.Parallel()

	_, err := ParseTextRecord(nil)
	require.ErrorIs(t, err, ErrTextPayloadTooShort)

	_, err = ParseTextRecord([]byte{0x05, 'e', 'n'})
	require.ErrorIs(t, err, ErrTextTruncated)
}

func TestURIRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		uri  string
		code byte
	}{
		{uri: "https://www.example.com/?U=230", code: 0x02},
		{uri: "https://thixx.example/app?U=230", code: 0x04},
		{uri: "http://localhost:8080/", code: 0x03},
		{uri: "custom:thing", code: 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			t.Parallel()

			rec := NewURIRecord(tt.uri)
			assert.Equal(t, tt.code, rec.Payload[0])

			got, err := ParseURIRecord(rec.Payload)
			require.NoError(t, err)
			assert.Equal(t, tt.uri, got)
		})
	}

	_, err := ParseURIRecord([]byte{0x40})
	require.ErrorIs(t, err, ErrURIUnknownPrefix)
	_, err = ParseURIRecord(nil)
	require.ErrorIs(t, err, ErrURIPayloadTooShort)
}
