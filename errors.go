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
	"context"
	"errors"
	"fmt"
	"strings"
)

// Platform conditions. Radio implementations wrap their failures in one of
// these so the classifier can map them without knowing the hardware.
var (
	ErrPermissionDenied = errors.New("nfc permission denied")
	ErrUnsupported      = errors.New("nfc not supported")
	ErrTagNotFound      = errors.New("tag not found")
	ErrTagUnreadable    = errors.New("tag not readable")
	ErrIO               = errors.New("nfc i/o failure")
	ErrAborted          = errors.New("nfc operation aborted")
	ErrTimeout          = errors.New("nfc operation timed out")
)

// Record level errors.
var (
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrFormat          = errors.New("invalid tag format")
	ErrValidation      = errors.New("invalid record")
)

// ErrorKind is the closed set of user-facing failure kinds.
type ErrorKind int

const (
	KindUnclassified ErrorKind = iota
	KindPermissionDenied
	KindUnsupported
	KindTagNotFound
	KindTagUnreadable
	KindTransientIO
	KindUserCancelled
	KindTimeout
	KindPayloadTooLarge
	KindUnknownFormat
)

var kindNames = [...]string{
	KindUnclassified:     "unclassified",
	KindPermissionDenied: "permission denied",
	KindUnsupported:      "unsupported",
	KindTagNotFound:      "tag not found",
	KindTagUnreadable:    "tag unreadable",
	KindTransientIO:      "transient i/o error",
	KindUserCancelled:    "cancelled",
	KindTimeout:          "timeout",
	KindPayloadTooLarge:  "payload too large",
	KindUnknownFormat:    "unknown format",
}

func (k ErrorKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
	return kindNames[k]
}

// Retryable reports whether a write failing with this kind may be attempted
// again. Timeouts and cancellations always end the interaction.
func (k ErrorKind) Retryable() bool {
	return k != KindTimeout && k != KindUserCancelled
}

// Error is a classified failure of an NFC operation.
type Error struct {
	Err  error     // Underlying error
	Op   string    // Operation that failed
	Kind ErrorKind // Classified kind
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with an operation name and kind.
func NewError(op string, kind ErrorKind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// FormatReason tells apart the ways a payload can fail to decode.
type FormatReason int

const (
	// FormatUnrecognized means no known wire format matched.
	FormatUnrecognized FormatReason = iota
	// FormatNoData means the version marker matched but no field was found.
	FormatNoData
	// FormatEmpty means the tag carried no payload at all.
	FormatEmpty
	// FormatNoText means the tag held records but none of them was text.
	FormatNoText
)

func (r FormatReason) String() string {
	switch r {
	case FormatUnrecognized:
		return "unrecognized"
	case FormatNoData:
		return "no data"
	case FormatEmpty:
		return "empty"
	case FormatNoText:
		return "no text record"
	default:
		return fmt.Sprintf("FormatReason(%d)", int(r))
	}
}

// FormatError reports a malformed or unrecognized wire payload.
type FormatError struct {
	Detail string
	Reason FormatReason
}

func (e *FormatError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("format: %s: %s", e.Reason, e.Detail)
	}
	return "format: " + e.Reason.String()
}

func (e *FormatError) Unwrap() error {
	return ErrFormat
}

// Problem is a single failed field constraint.
type Problem struct {
	Field   string
	Message string
}

// ValidationError lists every constraint a record violates.
type ValidationError struct {
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = fmt.Sprintf("%s: %s", p.Field, p.Message)
	}
	return "validation: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Classify maps err onto an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnclassified
	}

	var e *Error
	if errors.As(err, &e) && e.Kind != KindUnclassified {
		return e.Kind
	}

	var fe *FormatError
	if errors.As(err, &fe) {
		return KindUnknownFormat
	}

	switch {
	case errors.Is(err, ErrPayloadTooLarge):
		return KindPayloadTooLarge
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrAborted), errors.Is(err, context.Canceled):
		return KindUserCancelled
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	case errors.Is(err, ErrTagNotFound):
		return KindTagNotFound
	case errors.Is(err, ErrTagUnreadable):
		return KindTagUnreadable
	case errors.Is(err, ErrIO):
		return KindTransientIO
	default:
		return KindUnclassified
	}
}

// ClassifyPayload classifies err and re-checks the payload that was being
// written. Some readers report an oversized payload as a plain I/O failure,
// so a payload above limit turns KindTransientIO into KindPayloadTooLarge.
func ClassifyPayload(err error, payload string, limit int) ErrorKind {
	kind := Classify(err)
	if kind == KindTransientIO && ExceedsLimit(payload, limit) {
		return KindPayloadTooLarge
	}
	return kind
}

// Describe returns the single human-readable message shown for err.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		msgs := make([]string, len(ve.Problems))
		for i, p := range ve.Problems {
			msgs[i] = p.Message
		}
		return strings.Join(msgs, "\n")
	}

	var fe *FormatError
	if errors.As(err, &fe) {
		switch fe.Reason {
		case FormatNoData:
			return "Tag uses the v1 format but contains no data."
		case FormatEmpty:
			return "Tag is empty."
		case FormatNoText:
			return "Tag contains no readable protocol."
		case FormatUnrecognized:
			return "Unknown data format on tag."
		}
	}

	return describeKind(Classify(err))
}

func describeKind(kind ErrorKind) string {
	switch kind {
	case KindPermissionDenied:
		return "NFC access was denied."
	case KindUnsupported:
		return "NFC is not supported by this reader."
	case KindTagNotFound:
		return "No tag found."
	case KindTagUnreadable:
		return "Tag could not be read. Hold it still and try again."
	case KindTransientIO:
		return "Communication with the tag failed."
	case KindUserCancelled:
		return "Operation cancelled."
	case KindTimeout:
		return "Operation timed out."
	case KindPayloadTooLarge:
		return "Data is too large for the tag."
	case KindUnknownFormat:
		return "Unknown data format on tag."
	case KindUnclassified:
		return "An unknown error occurred."
	}
	return "An unknown error occurred."
}
