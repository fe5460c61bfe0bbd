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

// Package ndef encodes and decodes NDEF messages as stored on NFC Forum
// Type 2 tags: records, the well-known Text and URI types and the TLV
// container that wraps a message in tag memory.
package ndef

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// TNF (Type Name Format) values as defined by NFC Forum.
const (
	TNFEmpty       byte = 0x00
	TNFWellKnown   byte = 0x01
	TNFMedia       byte = 0x02
	TNFAbsoluteURI byte = 0x03
	TNFExternal    byte = 0x04
	TNFUnknown     byte = 0x05
	TNFUnchanged   byte = 0x06
	TNFReserved    byte = 0x07
)

const (
	tnfMask  byte = 0x07
	flagMB   byte = 0x80
	flagME   byte = 0x40
	flagCF   byte = 0x20
	flagSR   byte = 0x10
	flagIL   byte = 0x08
	shortMax      = 255
)

// Errors returned while parsing or building messages.
var (
	ErrEmptyMessage    = errors.New("ndef: empty message")
	ErrTruncatedRecord = errors.New("ndef: truncated record data")
	ErrInvalidTNF      = errors.New("ndef: invalid TNF value")
	ErrChunkedRecord   = errors.New("ndef: chunked records not supported")
	ErrFieldTooLong    = errors.New("ndef: type or id longer than 255 bytes")
)

// Record is a single NDEF record.
type Record struct {
	Type    string
	ID      string
	Payload []byte
	TNF     byte
}

// Is reports whether r is a well-known record of type typ.
func (r *Record) Is(typ string) bool {
	return r.TNF == TNFWellKnown && r.Type == typ
}

// Message is an ordered list of records.
type Message struct {
	Records []*Record
}

// NewMessage returns a message holding records.
func NewMessage(records ...*Record) *Message {
	return &Message{Records: records}
}

// Marshal serializes the message. MB and ME flags are derived from record
// position; short records are used whenever the payload fits.
func (m *Message) Marshal() ([]byte, error) {
	if m == nil || len(m.Records) == 0 {
		return nil, ErrEmptyMessage
	}

	var out []byte
	last := len(m.Records) - 1
	for i, rec := range m.Records {
		var err error
		out, err = appendRecord(out, rec, i == 0, i == last)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return out, nil
}

func appendRecord(out []byte, r *Record, first, last bool) ([]byte, error) {
	if r.TNF > TNFReserved {
		return nil, ErrInvalidTNF
	}
	if len(r.Type) > shortMax || len(r.ID) > shortMax {
		return nil, ErrFieldTooLong
	}

	flags := r.TNF & tnfMask
	if first {
		flags |= flagMB
	}
	if last {
		flags |= flagME
	}
	short := len(r.Payload) <= shortMax
	if short {
		flags |= flagSR
	}
	if r.ID != "" {
		flags |= flagIL
	}

	out = append(out, flags, byte(len(r.Type)))
	if short {
		out = append(out, byte(len(r.Payload)))
	} else {
		//nolint:gosec // length is non-negative and bounded by memory
		out = binary.BigEndian.AppendUint32(out, uint32(len(r.Payload)))
	}
	if r.ID != "" {
		out = append(out, byte(len(r.ID)))
	}
	out = append(out, r.Type...)
	out = append(out, r.ID...)
	out = append(out, r.Payload...)
	return out, nil
}

// ParseMessage decodes records until the one carrying the ME flag.
func ParseMessage(data []byte) (*Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}

	msg := &Message{}
	offset := 0
	for offset < len(data) {
		rec, n, end, err := parseRecord(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("record at offset %d: %w", offset, err)
		}
		msg.Records = append(msg.Records, rec)
		offset += n
		if end {
			break
		}
	}
	return msg, nil
}

func parseRecord(data []byte) (rec *Record, n int, end bool, err error) {
	if len(data) < 3 {
		return nil, 0, false, ErrTruncatedRecord
	}

	flags := data[0]
	if flags&flagCF != 0 {
		return nil, 0, false, ErrChunkedRecord
	}
	rec = &Record{TNF: flags & tnfMask}
	if rec.TNF > TNFUnchanged {
		return nil, 0, false, ErrInvalidTNF
	}

	typeLen := int(data[1])
	pos := 2

	var payloadLen int
	if flags&flagSR != 0 {
		payloadLen = int(data[pos])
		pos++
	} else {
		if pos+4 > len(data) {
			return nil, 0, false, ErrTruncatedRecord
		}
		payloadLen = int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
	}

	idLen := 0
	if flags&flagIL != 0 {
		if pos >= len(data) {
			return nil, 0, false, ErrTruncatedRecord
		}
		idLen = int(data[pos])
		pos++
	}

	if payloadLen < 0 || pos+typeLen+idLen+payloadLen > len(data) {
		return nil, 0, false, ErrTruncatedRecord
	}

	rec.Type = string(data[pos : pos+typeLen])
	pos += typeLen
	rec.ID = string(data[pos : pos+idLen])
	pos += idLen
	if payloadLen > 0 {
		rec.Payload = append([]byte(nil), data[pos:pos+payloadLen]...)
		pos += payloadLen
	}
	return rec, pos, flags&flagME != 0, nil
}

// FirstText returns the first well-known Text record of m.
func (m *Message) FirstText() (*TextRecord, error) {
	for _, r := range m.Records {
		if r.Is(TextRecordType) {
			return ParseTextRecord(r.Payload)
		}
	}
	return nil, ErrNoTextRecord
}

// FirstURI returns the expanded URI of the first well-known URI record.
func (m *Message) FirstURI() (string, error) {
	for _, r := range m.Records {
		if r.Is(URIRecordType) {
			return ParseURIRecord(r.Payload)
		}
	}
	return "", ErrNoURIRecord
}
