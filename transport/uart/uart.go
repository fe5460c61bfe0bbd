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

// Package uart talks to a PN532 over a serial port (HSU mode, 115200 8N1).
package uart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/ZaparooProject/thixx/internal/frame"
	"github.com/ZaparooProject/thixx/pn532"
)

// BaudRate is the PN532 HSU default.
const BaudRate = 115200

const (
	ackTimeout    = 100 * time.Millisecond
	wakeDelay     = 6 * time.Millisecond
	maxPreAckScan = 32
)

// wakeUp is sent before every command; 0x55 followed by zeros brings the
// PN532 out of power down over HSU.
var wakeUp = []byte{
	0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// port is the part of serial.Port the transport uses.
type port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Drain() error
	ResetInputBuffer() error
	SetReadTimeout(t time.Duration) error
	Close() error
}

// Transport implements pn532.Transport over UART.
type Transport struct {
	port    port
	name    string
	timeout time.Duration
	mu      sync.Mutex
}

var _ pn532.Transport = (*Transport)(nil)

// pollTimeout is the per read timeout of the serial port. Windows drivers
// need a longer one.
func pollTimeout() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// New opens portName at 115200 8N1.
func New(portName string) (*Transport, error) {
	p, err := serial.Open(portName, &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open UART port %s: %w", portName, err)
	}
	return newTransport(p, portName)
}

func newTransport(p port, name string) (*Transport, error) {
	if err := p.SetReadTimeout(pollTimeout()); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("set UART read timeout: %w", err)
	}
	return &Transport{port: p, name: name, timeout: pn532.DefaultTimeout}, nil
}

// SendCommand sends a command frame, waits for the ACK and returns the
// response code followed by the response data.
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	req, err := frame.Build(cmd, args)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pn532.ErrInvalidResponse, err)
	}

	if err := t.write("wake up", wakeUp); err != nil {
		return nil, err
	}
	if err := t.write("send frame", req); err != nil {
		return nil, err
	}

	pending, err := t.waitAck(ctx)
	if err != nil {
		return nil, err
	}

	time.Sleep(wakeDelay)
	res, err := t.receive(ctx, pending)
	if err != nil {
		return nil, err
	}
	if res.Code != cmd+1 {
		return nil, pn532.NewTransportError("receive", t.name,
			fmt.Errorf("%w: response 0x%02X to command 0x%02X", pn532.ErrInvalidResponse, res.Code, cmd))
	}

	// ACK the response so the PN532 drops it from its buffer
	if err := t.write("send ACK", frame.Ack); err != nil {
		return nil, err
	}
	return append([]byte{res.Code}, res.Data...), nil
}

func (t *Transport) write(op string, data []byte) error {
	n, err := t.port.Write(data)
	if err != nil {
		return pn532.NewTransportError(op, t.name, fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err))
	}
	if n != len(data) {
		return pn532.NewTransportError(op, t.name,
			fmt.Errorf("%w: wrote %d of %d bytes", pn532.ErrTransportWrite, n, len(data)))
	}
	return t.drain(op)
}

// drain retries interrupted system calls, which Linux reports when a
// signal arrives during tcdrain.
func (t *Transport) drain(op string) error {
	delay := 2 * time.Millisecond
	var err error
	for range 3 {
		if err = t.port.Drain(); err == nil || !isInterrupted(err) {
			break
		}
		time.Sleep(delay)
		delay *= 2
	}
	if err != nil {
		return pn532.NewTransportError(op, t.name, fmt.Errorf("%w: drain: %w", pn532.ErrTransportWrite, err))
	}
	return nil
}

func isInterrupted(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "interrupted system call") || strings.Contains(s, "eintr")
}

// waitAck reads until an ACK frame shows up. Bytes seen before the ACK are
// returned; some drivers deliver the response ahead of the ACK.
func (t *Transport) waitAck(ctx context.Context) ([]byte, error) {
	deadline := time.Now().Add(ackTimeout)
	buf := make([]byte, 0, 2*len(frame.Ack))
	chunk := make([]byte, 16)

	for {
		if i := bytes.Index(buf, frame.Ack); i >= 0 {
			pending := append([]byte(nil), buf[:i]...)
			return append(pending, buf[i+len(frame.Ack):]...), nil
		}
		if frame.IsNack(buf) {
			return nil, pn532.NewTransportError("wait ACK", t.name, pn532.ErrNACKReceived)
		}
		if len(buf) > maxPreAckScan+len(frame.Ack) || time.Now().After(deadline) {
			return nil, pn532.NewTransportError("wait ACK", t.name, pn532.ErrNoACK)
		}

		n, err := t.read(ctx, chunk)
		if err != nil {
			return nil, err
		}
		buf = append(buf, chunk[:n]...)
	}
}

// receive reads until a complete response frame parses or the transport
// timeout passes.
func (t *Transport) receive(ctx context.Context, buf []byte) (frame.Response, error) {
	deadline := time.Now().Add(t.timeout)
	chunk := make([]byte, 64)

	for {
		res, _, err := frame.Parse(buf)
		switch {
		case err == nil:
			return res, nil
		case errors.Is(err, frame.ErrIncomplete), errors.Is(err, frame.ErrNoStartCode):
		case errors.Is(err, frame.ErrApplication):
			return frame.Response{}, pn532.NewTransportError("receive", t.name,
				fmt.Errorf("%w: %w", pn532.ErrInvalidResponse, err))
		default:
			_ = t.port.ResetInputBuffer()
			return frame.Response{}, pn532.NewTransportError("receive", t.name,
				fmt.Errorf("%w: %w", pn532.ErrFrameCorrupted, err))
		}

		if time.Now().After(deadline) {
			return frame.Response{}, pn532.NewTransportError("receive", t.name, pn532.ErrTransportTimeout)
		}
		n, err := t.read(ctx, chunk)
		if err != nil {
			return frame.Response{}, err
		}
		buf = append(buf, chunk[:n]...)
	}
}

func (t *Transport) read(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := t.port.Read(p)
	if err != nil {
		return 0, pn532.NewTransportError("read", t.name, fmt.Errorf("%w: %w", pn532.ErrTransportRead, err))
	}
	return n, nil
}

// SetTimeout sets how long SendCommand waits for a response frame.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("invalid timeout %v", timeout)
	}
	t.mu.Lock()
	t.timeout = timeout
	t.mu.Unlock()
	return nil
}

// Close closes the serial port
func (t *Transport) Close() error {
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportUART
}
