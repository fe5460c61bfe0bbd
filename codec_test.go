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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeCompact_ExampleRecord(t *testing.T) {
	t.Parallel()

	r := Record{FieldStrom: "10", FieldSpannung: "230"}
	got := EncodeCompact(r)
	assert.Equal(t, "v1\nU:230\nI:10", got)

	decoded, err := Decode(got)
	require.NoError(t, err)
	assert.Equal(t, r, decoded)
}

func TestEncodeCompact_EmptyRecord(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "v1", EncodeCompact(nil))
	assert.Equal(t, "v1", EncodeCompact(Record{FieldKKS: "  "}))
}

func TestEncodeCompact_TableOrder(t *testing.T) {
	t.Parallel()

	r := Record{
		FieldDokumentation: "https://example.com/doc.pdf",
		FieldHKNr:          "HK-7",
		FieldAm:            "2026-10-19",
		FieldKKS:           "10LAB01",
	}
	got := EncodeCompact(r)
	assert.Equal(t, "v1\nHK:HK-7\nKKS:10LAB01\nDate:2026-10-19\nDoc:https://example.com/doc.pdf", got)
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		reason FormatReason
		record Record
	}{
		{name: "version marker only", input: "v1", reason: FormatNoData, record: Record{}},
		{name: "marker with junk lines", input: "v1\nno delimiter\n:\n", reason: FormatNoData, record: Record{}},
		{name: "unrecognized text", input: "hello world", reason: FormatUnrecognized},
		{name: "wrong version", input: "v2\nU:230", reason: FormatUnrecognized},
		{name: "blank", input: " \n ", reason: FormatEmpty},
		{name: "url without query", input: "https://example.com/p", reason: FormatNoData, record: Record{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r, err := Decode(tt.input)
			require.Error(t, err)

			var fe *FormatError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.reason, fe.Reason)
			assert.ErrorIs(t, err, ErrFormat)
			assert.Equal(t, KindUnknownFormat, Classify(err))
			assert.Equal(t, tt.record, r)
		})
	}
}

func TestDecode_UnknownTokensPassThrough(t *testing.T) {
	t.Parallel()

	r, err := Decode("v1\nU:230\nXYZ:future\n  I : 10 ")
	require.NoError(t, err)
	assert.Equal(t, Record{FieldSpannung: "230", FieldStrom: "10", "XYZ": "future"}, r)
}

func TestDecode_ValueKeepsColons(t *testing.T) {
	t.Parallel()

	r, err := Decode("v1\r\nDoc:https://example.com:8443/a\r\nDate:2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com:8443/a", r[FieldDokumentation])
	assert.Equal(t, "2026-10-19", r[FieldAm])
}

func TestEncodeURL_RoundTrip(t *testing.T) {
	t.Parallel()

	r := Record{
		FieldSpannung:     "230",
		FieldWaechter:     "5",
		FieldProjektNr:    "P 17/3",
		FieldGeprueftVon:  "Müller & Sohn",
		FieldHeizkabeltyp: "a=b?c",
	}
	u, err := EncodeURL(r, "https://thixx.example/app/")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, "https://thixx.example/app/?U=230&W%C3%A4ch=5&Proj=P+17%2F3"), u)

	decoded, err := Decode(u)
	require.NoError(t, err)
	assert.Equal(t, r, decoded)

	decoded, err = DecodeURL(u)
	require.NoError(t, err)
	assert.Equal(t, r, decoded)
}

func TestEncodeURL_KeepsExistingQuery(t *testing.T) {
	t.Parallel()

	u, err := EncodeURL(Record{FieldStrom: "10"}, "http://localhost:8080/?lang=de")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/?lang=de&I=10", u)
}

func TestEncodeURL_RejectsRelativeBase(t *testing.T) {
	t.Parallel()

	_, err := EncodeURL(Record{FieldStrom: "10"}, "/relative")
	require.Error(t, err)
}

func TestDecodeURL_RejectsOtherSchemes(t *testing.T) {
	t.Parallel()

	_, err := DecodeURL("ftp://example.com/?U=1")
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, FormatUnrecognized, fe.Reason)
}

func TestCompactRoundTrip_AllFields(t *testing.T) {
	t.Parallel()

	r := make(Record)
	for i, f := range Fields() {
		r[f.Name] = strings.Repeat("x", i+1) + " ä"
	}

	decoded, err := Decode(EncodeCompact(r))
	require.NoError(t, err)
	assert.True(t, r.Equal(decoded))

	u, err := EncodeURL(r, "https://example.com")
	require.NoError(t, err)
	decoded, err = Decode(u)
	require.NoError(t, err)
	assert.True(t, r.Equal(decoded))
}
