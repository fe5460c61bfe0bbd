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
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"

	"github.com/ZaparooProject/thixx"
)

// Error categories for retry logic and platform mapping
var (
	// Transport errors - potentially retryable
	ErrTransportTimeout = errors.New("transport timeout")
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportClosed  = errors.New("transport is closed")

	// Communication errors - potentially retryable
	ErrNoACK          = errors.New("no ACK received")
	ErrNACKReceived   = errors.New("NACK received")
	ErrFrameCorrupted = errors.New("frame corrupted")

	// Device errors - generally not retryable
	ErrDeviceNotFound     = errors.New("device not found")
	ErrDeviceNotSupported = errors.New("device not supported")
	ErrInvalidResponse    = errors.New("invalid response format")

	// Tag errors
	ErrTagNotFound    = errors.New("tag not found")
	ErrTagReadFailed  = errors.New("tag read failed")
	ErrTagWriteFailed = errors.New("tag write failed")
	ErrTagUnsupported = errors.New("tag type not supported")
	ErrTagNotNDEF     = errors.New("tag is not NDEF formatted")
	ErrTagReadOnly    = errors.New("tag is read-only")
	ErrTagCapacity    = errors.New("data exceeds tag capacity")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError classifies err and wraps it for op on port.
func NewTransportError(op, port string, err error) *TransportError {
	te := &TransportError{Op: op, Port: port, Err: err, Type: ErrorTypeTransient, Retryable: true}
	switch {
	case errors.Is(err, ErrTransportTimeout), errors.Is(err, context.DeadlineExceeded):
		te.Type = ErrorTypeTimeout
	case IsFatal(err), errors.Is(err, context.Canceled):
		te.Type = ErrorTypePermanent
		te.Retryable = false
	}
	return te
}

// StatusError is a non-zero status byte returned by the PN532 for a
// command exchanged with a target.
type StatusError struct {
	Command string
	Status  byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error 0x%02X (%s)", e.Command, e.Status, statusMeaning(e.Status))
}

// IsTimeout reports whether the target did not answer in time.
func (e *StatusError) IsTimeout() bool {
	return e.Status == 0x01
}

// IsTargetGone reports whether the target left the field.
func (e *StatusError) IsTargetGone() bool {
	return e.Status == 0x29 || e.Status == 0x2B
}

// statusMeaning returns a readable meaning for PN532 status codes
// (PN532 User Manual section 7.1).
func statusMeaning(code byte) string {
	switch code {
	case 0x01:
		return "timeout"
	case 0x02:
		return "CRC error"
	case 0x03:
		return "parity error"
	case 0x0A:
		return "RF field not activated in time"
	case 0x0B:
		return "RF protocol error"
	case 0x0D:
		return "overheating"
	case 0x0E:
		return "internal buffer overflow"
	case 0x10:
		return "invalid parameter"
	case 0x14:
		return "authentication error"
	case 0x27:
		return "wrong context for command"
	case 0x29:
		return "target released by initiator"
	case 0x2B:
		return "card disappeared"
	case 0x81:
		return "command not supported"
	default:
		return "unknown error"
	}
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.IsTimeout()
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrNoACK),
		errors.Is(err, ErrNACKReceived),
		errors.Is(err, ErrFrameCorrupted):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the device or connection is
// gone and polling should stop entirely.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Type == ErrorTypePermanent
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // only device-gone errors are of interest
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrDeviceNotFound),
		errors.Is(err, ErrDeviceNotSupported),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// platformError tags err with the thixx sentinel the session layer
// classifies it by. Context errors pass through unchanged.
func platformError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var sentinel error
	var se *StatusError
	switch {
	case errors.Is(err, os.ErrPermission), errors.Is(err, syscall.EACCES):
		sentinel = thixx.ErrPermissionDenied
	case errors.Is(err, ErrDeviceNotFound), errors.Is(err, ErrDeviceNotSupported),
		errors.Is(err, ErrTagUnsupported), errors.Is(err, ErrTagNotNDEF), errors.Is(err, ErrTagReadOnly):
		sentinel = thixx.ErrUnsupported
	case errors.Is(err, ErrTagNotFound):
		sentinel = thixx.ErrTagNotFound
	case errors.As(err, &se) && se.IsTargetGone():
		sentinel = thixx.ErrTagNotFound
	case errors.Is(err, ErrTagReadFailed):
		sentinel = thixx.ErrTagUnreadable
	default:
		// capacity overflow lands here too
		sentinel = thixx.ErrIO
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
