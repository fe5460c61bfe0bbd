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
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_RoundTrip(t *testing.T) {
	t.Parallel()

	text, err := NewTextRecord("v1\nU:230\nI:10", "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		records []*Record
	}{
		{name: "single text", records: []*Record{text}},
		{name: "text and uri", records: []*Record{text, NewURIRecord("https://example.com/a")}},
		{name: "long payload", records: []*Record{{TNF: TNFMedia, Type: "text/plain", Payload: bytes.Repeat([]byte("x"), 300)}}},
		{name: "record with id", records: []*Record{{TNF: TNFWellKnown, Type: "T", ID: "r1", Payload: []byte{0x02, 'd', 'e', 'A'}}}},
		{name: "empty record", records: []*Record{{TNF: TNFEmpty}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := NewMessage(tt.records...).Marshal()
			require.NoError(t, err)

			msg, err := ParseMessage(data)
			require.NoError(t, err)
			require.Len(t, msg.Records, len(tt.records))
			for i, want := range tt.records {
				got := msg.Records[i]
				assert.Equal(t, want.TNF, got.TNF)
				assert.Equal(t, want.Type, got.Type)
				assert.Equal(t, want.ID, got.ID)
				assert.Equal(t, len(want.Payload), len(got.Payload))
				assert.True(t, bytes.Equal(want.Payload, got.Payload))
			}
		})
	}
}

func TestMessage_MarshalFlags(t *testing.T) {
	t.Parallel()

	data, err := NewMessage(&Record{TNF: TNFWellKnown, Type: "T", Payload: []byte{0}}).Marshal()
	require.NoError(t, err)
	// MB | ME | SR | TNF well-known
	assert.Equal(t, byte(0xD1), data[0])
}

func TestMessage_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewMessage().Marshal()
	require.ErrorIs(t, err, ErrEmptyMessage)

	_, err = NewMessage(&Record{TNF: 0x09}).Marshal()
	require.ErrorIs(t, err, ErrInvalidTNF)

	_, err = ParseMessage(nil)
	require.ErrorIs(t, err, ErrEmptyMessage)

	_, err = ParseMessage([]byte{0xD1, 0x01, 0x10, 'T', 0x02})
	require.ErrorIs(t, err, ErrTruncatedRecord)

	_, err = ParseMessage([]byte{0xB1, 0x01, 0x01, 'T', 0x00})
	require.ErrorIs(t, err, ErrChunkedRecord)
}

func TestMessage_StopsAtMessageEnd(t *testing.T) {
	t.Parallel()

	data, err := NewMessage(NewURIRecord("https://a.example")).Marshal()
	require.NoError(t, err)
	data = append(data, 0xFE, 0x00, 0x00)

	msg, err := ParseMessage(data)
	require.NoError(t, err)
	assert.Len(t, msg.Records, 1)
}

func TestMessage_FirstTextAndURI(t *testing.T) {
	t.Parallel()

	text, err := NewTextRecord("hallo", "de")
	require.NoError(t, err)
	msg := NewMessage(NewURIRecord("https://www.example.com/x"), text)

	tr, err := msg.FirstText()
	require.NoError(t, err)
	assert.Equal(t, "hallo", tr.Text)
	assert.Equal(t, "de", tr.Language)

	uri, err := msg.FirstURI()
	require.NoError(t, err)
	assert.Equal(t, "https://www.example.com/x", uri)

	_, err = NewMessage(NewURIRecord("x")).FirstText()
	require.ErrorIs(t, err, ErrNoTextRecord)
	_, err = NewMessage(text).FirstURI()
	require.ErrorIs(t, err, ErrNoURIRecord)
}
