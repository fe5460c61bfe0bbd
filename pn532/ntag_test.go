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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/thixx/pkg/ndef"
)

func selectTag(t *testing.T, memory []byte) (*NTAG, *MockTransport) {
	t.Helper()
	device, mock := newTestDevice(t)
	mock.PlaceTag(testUID, memory)
	target, err := device.InListPassiveTarget(context.Background(), pollRetries)
	require.NoError(t, err)
	return NewNTAG(device, target), mock
}

func textMessage(t *testing.T, text string) *ndef.Message {
	t.Helper()
	rec, err := ndef.NewTextRecord(text, "de")
	require.NoError(t, err)
	return ndef.NewMessage(rec)
}

func TestParseCapability(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		model    string
		page     []byte
		size     int
		writable bool
		wantErr  bool
	}{
		{name: "NTAG213", page: []byte{0xE1, 0x10, 0x12, 0x00}, size: 144, model: "NTAG213", writable: true},
		{name: "NTAG215", page: []byte{0xE1, 0x10, 0x3E, 0x00}, size: 496, model: "NTAG215", writable: true},
		{name: "NTAG216 read-only", page: []byte{0xE1, 0x10, 0x6D, 0x0F}, size: 872, model: "NTAG216"},
		{name: "other size", page: []byte{0xE1, 0x10, 0x06, 0x00}, size: 48, model: "Type 2 (48 bytes)", writable: true},
		{name: "no magic", page: []byte{0x00, 0x00, 0x00, 0x00}, wantErr: true},
		{name: "short", page: []byte{0xE1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cc, err := ParseCapability(tt.page)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTagNotNDEF)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.size, cc.DataSize)
			assert.Equal(t, tt.model, cc.Model())
			assert.Equal(t, tt.writable, cc.Writable())
		})
	}
}

func TestNTAG_BlankTag(t *testing.T) {
	t.Parallel()

	tag, _ := selectTag(t, nil)

	msg, err := tag.ReadNDEF(context.Background())
	require.NoError(t, err)
	assert.Empty(t, msg.Records)
}

func TestNTAG_WriteThenRead(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{name: "short", text: "v1\nHK:HK-07\nU:400"},
		{name: "long TLV length", text: "v1\nHK:" + strings.Repeat("x", 300)},
		{name: "umlauts", text: "v1\nWäch:Prüfer Müller"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tag, mock := selectTag(t, nil)
			ctx := context.Background()
			require.NoError(t, tag.WriteNDEF(ctx, textMessage(t, tt.text)))

			msg, err := tag.ReadNDEF(ctx)
			require.NoError(t, err)
			text, err := msg.FirstText()
			require.NoError(t, err)
			assert.Equal(t, tt.text, text.Text)
			assert.Equal(t, "de", text.Language)

			mem := mock.Memory()
			assert.Equal(t, ndef.TLVMessage, mem[ntagPageUser*ntagPageSize])
		})
	}
}

func TestNTAG_WriteTooLarge(t *testing.T) {
	t.Parallel()

	tag, mock := selectTag(t, nil)
	before := mock.Memory()

	err := tag.WriteNDEF(context.Background(), textMessage(t, strings.Repeat("x", 600)))
	require.ErrorIs(t, err, ErrTagCapacity)
	assert.Equal(t, before, mock.Memory(), "nothing is written when the data does not fit")
}

func TestNTAG_ReadOnly(t *testing.T) {
	t.Parallel()

	mem := BlankNTAG215(testUID)
	mem[ntagPageCC*ntagPageSize+3] = 0x0F
	tag, _ := selectTag(t, mem)

	err := tag.WriteNDEF(context.Background(), textMessage(t, "v1\nHK:1"))
	assert.ErrorIs(t, err, ErrTagReadOnly)
}

func TestNTAG_NotFormatted(t *testing.T) {
	t.Parallel()

	mem := BlankNTAG215(testUID)
	copy(mem[ntagPageCC*ntagPageSize:], []byte{0, 0, 0, 0})
	tag, _ := selectTag(t, mem)

	_, err := tag.ReadNDEF(context.Background())
	assert.ErrorIs(t, err, ErrTagNotNDEF)
}

func TestNTAG_CorruptTLV(t *testing.T) {
	t.Parallel()

	mem := BlankNTAG215(testUID)
	// Message TLV claiming more bytes than the data area holds
	copy(mem[ntagPageUser*ntagPageSize:], []byte{0x03, 0xFF, 0x10, 0x00})
	tag, _ := selectTag(t, mem)

	_, err := tag.ReadNDEF(context.Background())
	assert.ErrorIs(t, err, ErrTagReadFailed)
}

func TestNTAG_WriteFailsWhenTagLeaves(t *testing.T) {
	t.Parallel()

	tag, mock := selectTag(t, nil)
	mock.FailWritesAfter(2)

	err := tag.WriteNDEF(context.Background(), textMessage(t, "v1\nHK:HK-07\nU:400"))
	require.ErrorIs(t, err, ErrTagWriteFailed)
	var se *StatusError
	assert.ErrorAs(t, err, &se)
}
