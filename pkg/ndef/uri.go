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
	"strings"
)

// URIRecordType is the well-known type of a URI record.
const URIRecordType = "U"

// URI record errors.
var (
	ErrNoURIRecord        = errors.New("ndef: no uri record")
	ErrURIPayloadTooShort = errors.New("ndef: uri payload too short")
	ErrURIUnknownPrefix   = errors.New("ndef: unknown uri prefix code")
)

// uriPrefixes is the abbreviation table of the URI record type definition,
// indexed by prefix code.
var uriPrefixes = [...]string{
	"", "http://www.", "https://www.", "http://", "https://", "tel:", "mailto:",
	"ftp://anonymous:anonymous@", "ftp://ftp.", "ftps://", "sftp://", "smb://",
	"nfs://", "ftp://", "dav://", "news:", "telnet://", "imap:", "rtsp://",
	"urn:", "pop:", "sip:", "sips:", "tftp:", "btspp://", "btl2cap://",
	"btgoep://", "tcpobex://", "irdaobex://", "file://", "urn:epc:id:",
	"urn:epc:tag:", "urn:epc:pat:", "urn:epc:raw:", "urn:epc:", "urn:nfc:",
}

// NewURIRecord builds a URI record using the longest matching prefix code.
func NewURIRecord(uri string) *Record {
	code, best := 0, 0
	for i := 1; i < len(uriPrefixes); i++ {
		if p := uriPrefixes[i]; len(p) > best && strings.HasPrefix(uri, p) {
			code, best = i, len(p)
		}
	}

	payload := make([]byte, 0, 1+len(uri)-best)
	payload = append(payload, byte(code))
	payload = append(payload, uri[best:]...)
	return &Record{TNF: TNFWellKnown, Type: URIRecordType, Payload: payload}
}

// ParseURIRecord expands a URI record payload.
func ParseURIRecord(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", ErrURIPayloadTooShort
	}
	code := int(payload[0])
	if code >= len(uriPrefixes) {
		return "", ErrURIUnknownPrefix
	}
	return uriPrefixes[code] + string(payload[1:]), nil
}
