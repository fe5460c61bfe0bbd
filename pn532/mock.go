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
	"fmt"
	"sync"
	"time"
)

// NTAG215 geometry used by the simulator
const (
	mockPages     = 135
	mockUserPages = 126
	mockCCSize    = 0x3E
)

// MockTransport simulates a PN532 with an optional NTAG215 in its field.
// It backs the tests and the "mock" device of the command line tool.
type MockTransport struct {
	errorMap  map[byte]error
	callCount map[byte]int
	uid       []byte
	memory    []byte
	timeout   time.Duration
	delay     time.Duration
	writes    int
	failAfter int
	mu        sync.Mutex
	present   bool
	closed    bool
}

// NewMockTransport creates a simulator with no tag in the field.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		errorMap:  make(map[byte]error),
		callCount: make(map[byte]int),
		timeout:   DefaultTimeout,
		failAfter: -1,
	}
}

// BlankNTAG215 returns the memory of a formatted NTAG215 holding an empty
// NDEF message.
func BlankNTAG215(uid []byte) []byte {
	mem := make([]byte, mockPages*ntagPageSize)
	copy(mem, uid)
	copy(mem[ntagPageCC*ntagPageSize:], []byte{ccMagic, 0x10, mockCCSize, 0x00})
	copy(mem[ntagPageUser*ntagPageSize:], []byte{0x03, 0x00, 0xFE})
	return mem
}

// PlaceTag puts a tag with the given UID and memory into the field. A nil
// memory places a blank NTAG215.
func (m *MockTransport) PlaceTag(uid, memory []byte) {
	if memory == nil {
		memory = BlankNTAG215(uid)
	}
	m.mu.Lock()
	m.uid = append([]byte(nil), uid...)
	m.memory = append([]byte(nil), memory...)
	m.present = true
	m.mu.Unlock()
}

// RemoveTag takes the tag out of the field. Its memory is kept.
func (m *MockTransport) RemoveTag() {
	m.mu.Lock()
	m.present = false
	m.mu.Unlock()
}

// Memory returns a copy of the simulated tag memory.
func (m *MockTransport) Memory() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.memory...)
}

// SetError configures an error to be returned for a specific command
func (m *MockTransport) SetError(cmd byte, err error) {
	m.mu.Lock()
	m.errorMap[cmd] = err
	m.mu.Unlock()
}

// ClearError removes error injection for a command
func (m *MockTransport) ClearError(cmd byte) {
	m.mu.Lock()
	delete(m.errorMap, cmd)
	m.mu.Unlock()
}

// FailWritesAfter makes every page write after the first n fail as if the
// tag had left the field. A negative n disables the fault.
func (m *MockTransport) FailWritesAfter(n int) {
	m.mu.Lock()
	m.failAfter = n
	m.writes = 0
	m.mu.Unlock()
}

// SetDelay configures a delay to simulate hardware response time
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// GetCallCount returns how many times a command was called
func (m *MockTransport) GetCallCount(cmd byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount[cmd]
}

// SendCommand implements Transport
func (m *MockTransport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	delay := m.delay
	m.mu.Unlock()
	if delay > 0 && !sleepWithContext(ctx, delay) {
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrTransportClosed
	}
	m.callCount[cmd]++
	if err, ok := m.errorMap[cmd]; ok {
		return nil, err
	}

	switch cmd {
	case cmdSAMConfiguration:
		return []byte{cmd + 1}, nil
	case cmdGetFirmwareVersion:
		return []byte{cmd + 1, 0x32, 0x01, 0x06, 0x07}, nil
	case cmdInListPassiveTarget:
		return m.listTarget(cmd), nil
	case cmdInRelease:
		return []byte{cmd + 1, 0x00}, nil
	case cmdInDataExchange:
		return m.exchange(cmd, args), nil
	default:
		return nil, fmt.Errorf("%w: mock does not handle command 0x%02X", ErrInvalidResponse, cmd)
	}
}

func (m *MockTransport) listTarget(cmd byte) []byte {
	if !m.present {
		return []byte{cmd + 1, 0x00}
	}
	res := []byte{cmd + 1, 0x01, 0x01, 0x00, 0x44, 0x00, byte(len(m.uid))}
	return append(res, m.uid...)
}

// exchange answers the NTAG READ and WRITE commands. Status 0x01 stands in
// for a target that does not answer.
func (m *MockTransport) exchange(cmd byte, args []byte) []byte {
	if !m.present || len(args) < 3 {
		return []byte{cmd + 1, 0x01}
	}

	page := int(args[2])
	switch args[1] {
	case ntagCmdRead:
		if page >= mockPages {
			return []byte{cmd + 1, 0x01}
		}
		res := []byte{cmd + 1, 0x00}
		for i := range ntagPageSize * ntagReadPages {
			res = append(res, m.memory[(page*ntagPageSize+i)%len(m.memory)])
		}
		return res
	case ntagCmdWrite:
		if len(args) != 3+ntagPageSize || page < ntagPageCC || page >= ntagPageUser+mockUserPages {
			return []byte{cmd + 1, 0x01}
		}
		if m.failAfter >= 0 && m.writes >= m.failAfter {
			return []byte{cmd + 1, 0x01}
		}
		m.writes++
		copy(m.memory[page*ntagPageSize:], args[3:])
		return []byte{cmd + 1, 0x00}
	default:
		return []byte{cmd + 1, 0x27}
	}
}

// SetTimeout implements Transport
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	m.timeout = timeout
	m.mu.Unlock()
	return nil
}

// Close implements Transport
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Type implements Transport
func (*MockTransport) Type() TransportType {
	return TransportMock
}
