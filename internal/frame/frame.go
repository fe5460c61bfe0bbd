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

// Package frame builds and parses PN532 normal information frames.
package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// Frame identifiers.
const (
	HostToPN532 byte = 0xD4
	PN532ToHost byte = 0xD5
	ErrorTFI    byte = 0x7F
)

// Frame markers.
const (
	Preamble   byte = 0x00
	StartCode1 byte = 0x00
	StartCode2 byte = 0xFF
	Postamble  byte = 0x00
)

// MaxDataLength is the largest TFI plus data a normal frame carries.
const MaxDataLength = 255

// ACK and NACK frames.
var (
	Ack  = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}
	Nack = []byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}
)

// Parse errors.
var (
	ErrIncomplete     = errors.New("frame: incomplete")
	ErrNoStartCode    = errors.New("frame: start code not found")
	ErrLengthChecksum = errors.New("frame: length checksum mismatch")
	ErrDataChecksum   = errors.New("frame: data checksum mismatch")
	ErrUnexpectedTFI  = errors.New("frame: unexpected frame identifier")
	ErrApplication    = errors.New("frame: application error frame")
	ErrTooLong        = errors.New("frame: data too long")
)

// Checksum returns the byte that makes the sum of data and itself zero.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return ^sum + 1
}

// Build encodes a host command frame for cmd with params.
func Build(cmd byte, params []byte) ([]byte, error) {
	n := 2 + len(params) // TFI + command code
	if n > MaxDataLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLong, n)
	}

	body := make([]byte, 0, n)
	body = append(body, HostToPN532, cmd)
	body = append(body, params...)

	out := make([]byte, 0, n+7)
	out = append(out, Preamble, StartCode1, StartCode2, byte(n), Checksum([]byte{byte(n)}))
	out = append(out, body...)
	return append(out, Checksum(body), Postamble), nil
}

// IsAck reports whether buf starts with an ACK frame, ignoring leading
// preamble bytes.
func IsAck(buf []byte) bool {
	return bytes.HasPrefix(trimPreamble(buf), Ack[1:])
}

// IsNack reports whether buf starts with a NACK frame.
func IsNack(buf []byte) bool {
	return bytes.HasPrefix(trimPreamble(buf), Nack[1:])
}

func trimPreamble(buf []byte) []byte {
	for len(buf) > 1 && buf[0] == 0x00 && buf[1] == 0x00 {
		buf = buf[1:]
	}
	return buf
}

// Response is the decoded body of a PN532 reply.
type Response struct {
	// Code is the response code, the command code plus one.
	Code byte
	Data []byte
}

// Parse decodes the first response frame in buf and returns it with the
// number of bytes consumed. ErrIncomplete means more bytes are needed.
func Parse(buf []byte) (Response, int, error) {
	start := bytes.Index(buf, []byte{StartCode1, StartCode2})
	if start < 0 {
		return Response{}, 0, ErrNoStartCode
	}
	pos := start + 2
	if len(buf) < pos+2 {
		return Response{}, 0, ErrIncomplete
	}

	length, lcs := buf[pos], buf[pos+1]
	if length+lcs != 0 {
		return Response{}, pos + 2, ErrLengthChecksum
	}
	pos += 2

	// length bytes of body, data checksum, postamble
	if len(buf) < pos+int(length)+1 {
		return Response{}, 0, ErrIncomplete
	}
	body := buf[pos : pos+int(length)]
	dcs := buf[pos+int(length)]
	consumed := pos + int(length) + 1
	if consumed < len(buf) && buf[consumed] == Postamble {
		consumed++
	}

	if Checksum(body) != dcs {
		return Response{}, consumed, ErrDataChecksum
	}
	if len(body) == 0 {
		return Response{}, consumed, ErrUnexpectedTFI
	}

	switch body[0] {
	case PN532ToHost:
		if len(body) < 2 {
			return Response{}, consumed, ErrUnexpectedTFI
		}
		return Response{Code: body[1], Data: append([]byte(nil), body[2:]...)}, consumed, nil
	case ErrorTFI:
		return Response{}, consumed, ErrApplication
	default:
		return Response{}, consumed, fmt.Errorf("%w: 0x%02X", ErrUnexpectedTFI, body[0])
	}
}
