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
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

// TextRecordType is the well-known type of a Text record.
const TextRecordType = "T"

// DefaultLanguage is used when a Text record is built without a language.
const DefaultLanguage = "de"

const (
	textUTF16Flag    = 0x80
	textLangLenMask  = 0x3F
	maxLanguageBytes = 63
)

// Text record errors.
var (
	ErrNoTextRecord        = errors.New("ndef: no text record")
	ErrTextPayloadTooShort = errors.New("ndef: text payload too short")
	ErrTextTruncated       = errors.New("ndef: text payload truncated")
	ErrTextLanguageTooLong = errors.New("ndef: language code too long")
)

// TextRecord is the decoded content of a Text record.
type TextRecord struct {
	Text     string
	Language string
	UTF16    bool
}

// NewTextRecord builds a UTF-8 Text record. An empty language selects
// DefaultLanguage.
func NewTextRecord(text, language string) (*Record, error) {
	if language == "" {
		language = DefaultLanguage
	}
	if len(language) > maxLanguageBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTextLanguageTooLong, len(language))
	}

	payload := make([]byte, 0, 1+len(language)+len(text))
	payload = append(payload, byte(len(language)))
	payload = append(payload, language...)
	payload = append(payload, text...)

	return &Record{TNF: TNFWellKnown, Type: TextRecordType, Payload: payload}, nil
}

// ParseTextRecord decodes a Text record payload. UTF-16 text is converted
// to UTF-8, honouring a byte order mark and defaulting to big endian.
func ParseTextRecord(payload []byte) (*TextRecord, error) {
	if len(payload) < 1 {
		return nil, ErrTextPayloadTooShort
	}

	status := payload[0]
	langLen := int(status & textLangLenMask)
	if len(payload) < 1+langLen {
		return nil, ErrTextTruncated
	}

	rec := &TextRecord{
		Language: string(payload[1 : 1+langLen]),
		UTF16:    status&textUTF16Flag != 0,
	}
	body := payload[1+langLen:]
	if rec.UTF16 {
		rec.Text = decodeUTF16(body)
	} else {
		rec.Text = string(body)
	}
	return rec, nil
}

func decodeUTF16(b []byte) string {
	var order binary.ByteOrder = binary.BigEndian
	if len(b) >= 2 {
		switch {
		case b[0] == 0xFE && b[1] == 0xFF:
			b = b[2:]
		case b[0] == 0xFF && b[1] == 0xFE:
			order = binary.LittleEndian
			b = b[2:]
		}
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = order.Uint16(b[2*i:])
	}
	return string(utf16.Decode(units))
}
