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

// Package i2c talks to a PN532 on an I2C bus through periph.io.
package i2c

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/ZaparooProject/thixx/internal/frame"
	"github.com/ZaparooProject/thixx/pn532"
)

const (
	// Address is the PN532 7-bit I2C address. The datasheet's 0x48 is the
	// 8-bit write address.
	Address = 0x24

	// pn532Ready is the status byte prepended to every read once the PN532
	// has data.
	pn532Ready = 0x01

	maxClockFreq = 400 * physic.KiloHertz

	// status byte + preamble/start/len/lcs + body + dcs/postamble
	maxReadLen = 1 + 5 + frame.MaxDataLength + 2

	ackTimeout  = 100 * time.Millisecond
	readyPeriod = 2 * time.Millisecond
)

// Transport implements pn532.Transport on an I2C bus.
type Transport struct {
	dev     conn.Conn
	bus     i2c.BusCloser
	busName string
	timeout time.Duration
	mu      sync.Mutex
}

var _ pn532.Transport = (*Transport)(nil)

// parseBusPath strips an address suffix such as "/dev/i2c-1:0x24".
func parseBusPath(path string) string {
	bus, _, _ := strings.Cut(path, ":")
	return bus
}

// New opens busName ("1", "/dev/i2c-1" or "" for the first bus) and
// addresses the PN532 on it.
func New(busName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(parseBusPath(busName))
	if err != nil {
		return nil, fmt.Errorf("open I2C bus %q: %w", busName, err)
	}
	// not every adapter supports setting the clock; the default works
	_ = bus.SetSpeed(maxClockFreq)

	t := newTransport(&i2c.Dev{Addr: Address, Bus: bus}, busName)
	t.bus = bus
	return t, nil
}

func newTransport(dev conn.Conn, name string) *Transport {
	return &Transport{dev: dev, busName: name, timeout: pn532.DefaultTimeout}
}

// SendCommand writes a command frame, waits for the ACK and reads the
// response frame. The result starts with the response code.
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
	if err := t.dev.Tx(req, nil); err != nil {
		return nil, pn532.NewTransportError("send frame", t.busName, fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err))
	}

	ack, err := t.readFrame(ctx, ackTimeout, len(frame.Ack))
	if err != nil {
		if errors.Is(err, pn532.ErrTransportTimeout) {
			return nil, pn532.NewTransportError("wait ACK", t.busName, pn532.ErrNoACK)
		}
		return nil, err
	}
	switch {
	case frame.IsNack(ack):
		return nil, pn532.NewTransportError("wait ACK", t.busName, pn532.ErrNACKReceived)
	case !frame.IsAck(ack):
		return nil, pn532.NewTransportError("wait ACK", t.busName,
			fmt.Errorf("%w: got % X", pn532.ErrNoACK, ack))
	}

	buf, err := t.readFrame(ctx, t.timeout, maxReadLen-1)
	if err != nil {
		return nil, err
	}
	res, _, err := frame.Parse(buf)
	if err != nil {
		return nil, pn532.NewTransportError("receive", t.busName, fmt.Errorf("%w: %w", pn532.ErrFrameCorrupted, err))
	}
	if res.Code != cmd+1 {
		return nil, pn532.NewTransportError("receive", t.busName,
			fmt.Errorf("%w: response 0x%02X to command 0x%02X", pn532.ErrInvalidResponse, res.Code, cmd))
	}

	if err := t.dev.Tx(frame.Ack, nil); err != nil {
		return nil, pn532.NewTransportError("send ACK", t.busName, fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err))
	}
	return append([]byte{res.Code}, res.Data...), nil
}

// readFrame polls the status byte until the PN532 is ready, then returns
// n bytes with the status byte stripped.
func (t *Transport) readFrame(ctx context.Context, timeout time.Duration, n int) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, n+1)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := t.dev.Tx(nil, buf); err != nil {
			return nil, pn532.NewTransportError("read", t.busName, fmt.Errorf("%w: %w", pn532.ErrTransportRead, err))
		}
		if buf[0] == pn532Ready {
			return bytes.Clone(buf[1:]), nil
		}
		if time.Now().After(deadline) {
			return nil, pn532.NewTransportError("read", t.busName, pn532.ErrTransportTimeout)
		}

		timer := time.NewTimer(readyPeriod)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
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

// Close releases the bus file descriptor.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bus == nil {
		return nil
	}
	if err := t.bus.Close(); err != nil {
		return fmt.Errorf("close I2C bus: %w", err)
	}
	t.bus = nil
	return nil
}

// Type returns the transport type
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportI2C
}
