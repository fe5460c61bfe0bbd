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
	"errors"
	"fmt"
)

// TLV block types found in Type 2 tag data areas.
const (
	TLVNull        byte = 0x00
	TLVLockControl byte = 0x01
	TLVMemControl  byte = 0x02
	TLVMessage     byte = 0x03
	TLVProprietary byte = 0xFD
	TLVTerminator  byte = 0xFE
)

const tlvLongLength = 0xFF

// TLV errors.
var (
	ErrNoNDEFTLV    = errors.New("ndef: no NDEF message TLV")
	ErrTLVTruncated = errors.New("ndef: truncated TLV")
	ErrTLVTooLong   = errors.New("ndef: message too long for TLV")
)

// WrapTLV places an NDEF message inside a Message TLV followed by a
// Terminator TLV, using the three byte length form above 254 bytes.
func WrapTLV(message []byte) ([]byte, error) {
	n := len(message)
	if n > 0xFFFE {
		return nil, fmt.Errorf("%w: %d bytes", ErrTLVTooLong, n)
	}

	out := make([]byte, 0, TLVSize(n))
	out = append(out, TLVMessage)
	if n < tlvLongLength {
		out = append(out, byte(n))
	} else {
		out = append(out, tlvLongLength, byte(n>>8), byte(n))
	}
	out = append(out, message...)
	return append(out, TLVTerminator), nil
}

// TLVSize is the number of bytes WrapTLV produces for an n byte message.
func TLVSize(n int) int {
	if n < tlvLongLength {
		return n + 3
	}
	return n + 5
}

// FindMessage walks the TLV blocks in data and returns the value of the
// first NDEF Message TLV. Null, lock, memory and proprietary blocks are
// skipped. An empty Message TLV returns an empty slice and no error.
func FindMessage(data []byte) ([]byte, error) {
	pos := 0
	for pos < len(data) {
		typ := data[pos]
		pos++

		switch typ {
		case TLVNull:
			continue
		case TLVTerminator:
			return nil, ErrNoNDEFTLV
		}

		length, hdr, err := tlvLength(data[pos:])
		if err != nil {
			return nil, err
		}
		pos += hdr
		if pos+length > len(data) {
			return nil, ErrTLVTruncated
		}
		if typ == TLVMessage {
			return data[pos : pos+length], nil
		}
		pos += length
	}
	return nil, ErrNoNDEFTLV
}

// MessageLength inspects the start of a data area and returns how many bytes
// the complete Message TLV, header included, occupies. It needs only the
// leading bytes, so a reader can fetch the first page before deciding how
// much memory to read.
func MessageLength(head []byte) (int, error) {
	pos := 0
	for pos < len(head) {
		typ := head[pos]
		pos++
		if typ == TLVNull {
			continue
		}
		if typ == TLVTerminator {
			return 0, ErrNoNDEFTLV
		}
		length, hdr, err := tlvLength(head[pos:])
		if err != nil {
			return 0, err
		}
		if typ == TLVMessage {
			return pos + hdr + length, nil
		}
		pos += hdr + length
	}
	return 0, ErrTLVTruncated
}

func tlvLength(b []byte) (length, hdr int, err error) {
	if len(b) < 1 {
		return 0, 0, ErrTLVTruncated
	}
	if b[0] != tlvLongLength {
		return int(b[0]), 1, nil
	}
	if len(b) < 3 {
		return 0, 0, ErrTLVTruncated
	}
	return int(b[1])<<8 | int(b[2]), 3, nil
}
