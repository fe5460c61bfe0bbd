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

package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{name: "empty", data: nil, want: 0x00},
		{name: "length byte", data: []byte{0x02}, want: 0xFE},
		{name: "overflow", data: []byte{0xFF, 0x01}, want: 0x00},
		{name: "get firmware", data: []byte{0xD4, 0x02}, want: 0x2A},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Checksum(tt.data))
		})
	}
}

func TestBuild_GetFirmwareVersion(t *testing.T) {
	t.Parallel()

	got, err := Build(0x02, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x02, 0x2A, 0x00}, got)
}

func TestBuild_TooLong(t *testing.T) {
	t.Parallel()

	_, err := Build(0x40, make([]byte, MaxDataLength))
	require.ErrorIs(t, err, ErrTooLong)
}

// reply builds a device frame the way the PN532 sends it.
func reply(code byte, data ...byte) []byte {
	body := append([]byte{PN532ToHost, code}, data...)
	out := []byte{0x00, 0x00, 0xFF, byte(len(body)), Checksum([]byte{byte(len(body))})}
	out = append(out, body...)
	return append(out, Checksum(body), 0x00)
}

func TestParse(t *testing.T) {
	t.Parallel()

	raw := reply(0x03, 0x32, 0x01, 0x06, 0x07)
	resp, n, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, len(raw), n)
	assert.Equal(t, byte(0x03), resp.Code)
	assert.Equal(t, []byte{0x32, 0x01, 0x06, 0x07}, resp.Data)
}

func TestParse_SkipsLeadingNoise(t *testing.T) {
	t.Parallel()

	raw := append([]byte{0x00, 0x00, 0x00}, reply(0x15)...)
	resp, n, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, len(raw), n)
	assert.Equal(t, byte(0x15), resp.Code)
	assert.Empty(t, resp.Data)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	good := reply(0x41, 0x00, 0xAA)
	badData := append([]byte(nil), good...)
	badData[len(badData)-2]++

	tests := []struct {
		want error
		name string
		buf  []byte
	}{
		{name: "no start code", buf: []byte{0x01, 0x02}, want: ErrNoStartCode},
		{name: "header only", buf: []byte{0x00, 0x00, 0xFF, 0x04}, want: ErrIncomplete},
		{name: "body missing", buf: good[:7], want: ErrIncomplete},
		{name: "length checksum", buf: []byte{0x00, 0x00, 0xFF, 0x04, 0x00, 0xD5}, want: ErrLengthChecksum},
		{name: "data checksum", buf: badData, want: ErrDataChecksum},
		{name: "error frame", buf: []byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00}, want: ErrApplication},
		{name: "host frame echoed", buf: []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x02, 0x2A, 0x00}, want: ErrUnexpectedTFI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Parse(tt.buf)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAckNack(t *testing.T) {
	t.Parallel()

	assert.True(t, IsAck(Ack))
	assert.True(t, IsAck(append([]byte{0x00, 0x00}, Ack...)))
	assert.False(t, IsAck(Nack))
	assert.True(t, IsNack(Nack))
	assert.False(t, IsNack(reply(0x03)))
}

func FuzzParse(f *testing.F) {
	f.Add(reply(0x03, 0x32, 0x01, 0x06, 0x07))
	f.Add(Ack)
	f.Add(Nack)
	f.Add([]byte{})
	f.Add([]byte{0x00, 0x00, 0xFF, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, buf []byte) {
		_, n, err := Parse(buf)
		if err == nil && (n <= 0 || n > len(buf)) {
			t.Fatalf("consumed %d of %d bytes", n, len(buf))
		}
	})
}
