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

// Package pn532 drives a PN532 NFC controller and the NTAG21x tags it
// finds, and adapts the pair to the session.Radio interface.
package pn532

import (
	"context"
	"time"
)

// Transport defines the interface for communication with PN532 devices.
// This can be implemented by UART or I2C backends.
type Transport interface {
	// SendCommand sends a command to the PN532 and waits for its response.
	// The response starts with the response code (command code plus one).
	SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error)

	// SetTimeout sets the read timeout for the transport
	SetTimeout(timeout time.Duration) error

	// Close closes the transport connection
	Close() error

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportI2C represents I2C bus transport.
	TransportI2C TransportType = "i2c"
	// TransportMock represents the in-memory tag simulator.
	TransportMock TransportType = "mock"
)
