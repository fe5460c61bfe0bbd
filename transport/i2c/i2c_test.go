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

package i2c

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"

	"github.com/ZaparooProject/thixx/internal/frame"
	"github.com/ZaparooProject/thixx/pn532"
)

func responseFrame(code byte, data ...byte) []byte {
	body := append([]byte{frame.PN532ToHost, code}, data...)
	out := []byte{0x00, 0x00, 0xFF, byte(len(body)), frame.Checksum([]byte{byte(len(body))})}
	out = append(out, body...)
	return append(out, frame.Checksum(body), 0x00)
}

// fakeDev is an I2C device that answers command frames with scripted
// reads. Each scripted read is preceded by notReady busy polls.
type fakeDev struct {
	txErr    error
	replies  map[byte][][]byte
	writes   [][]byte
	reads    [][]byte
	mu       sync.Mutex
	notReady int
	busy     int
}

func newFakeDev() *fakeDev {
	return &fakeDev{replies: make(map[byte][][]byte)}
}

func (d *fakeDev) String() string { return "fake-pn532" }

func (*fakeDev) Duplex() conn.Duplex { return conn.Half }

func (d *fakeDev) Tx(w, r []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.txErr != nil {
		return d.txErr
	}

	if len(w) > 0 {
		d.writes = append(d.writes, append([]byte(nil), w...))
		if len(w) > 6 && w[5] == frame.HostToPN532 {
			d.reads = append(d.reads, d.replies[w[6]]...)
			d.busy = d.notReady
		}
	}
	if len(r) == 0 {
		return nil
	}

	clear(r)
	if len(d.reads) == 0 || d.busy > 0 {
		d.busy--
		return nil
	}
	r[0] = pn532Ready
	copy(r[1:], d.reads[0])
	d.reads = d.reads[1:]
	d.busy = d.notReady
	return nil
}

var _ conn.Conn = (*fakeDev)(nil)

func TestTransport_SendCommand(t *testing.T) {
	t.Parallel()

	dev := newFakeDev()
	dev.notReady = 2
	dev.replies[0x02] = [][]byte{frame.Ack, responseFrame(0x03, 0x32, 0x01, 0x06, 0x07)}
	tr := newTransport(dev, "fake")

	res, err := tr.SendCommand(context.Background(), 0x02, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x32, 0x01, 0x06, 0x07}, res)

	dev.mu.Lock()
	defer dev.mu.Unlock()
	require.Len(t, dev.writes, 2)
	want, err := frame.Build(0x02, nil)
	require.NoError(t, err)
	assert.Equal(t, want, dev.writes[0])
	assert.Equal(t, frame.Ack, dev.writes[1])
}

func TestTransport_Errors(t *testing.T) {
	t.Parallel()

	corrupt := responseFrame(0x03, 0x32)
	corrupt[len(corrupt)-2] ^= 0xFF

	tests := []struct {
		want    error
		name    string
		replies [][]byte
	}{
		{name: "no ack", replies: nil, want: pn532.ErrNoACK},
		{name: "nack", replies: [][]byte{frame.Nack}, want: pn532.ErrNACKReceived},
		{name: "garbage instead of ack", replies: [][]byte{{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}}, want: pn532.ErrNoACK},
		{name: "no response", replies: [][]byte{frame.Ack}, want: pn532.ErrTransportTimeout},
		{name: "corrupt response", replies: [][]byte{frame.Ack, corrupt}, want: pn532.ErrFrameCorrupted},
		{name: "wrong code", replies: [][]byte{frame.Ack, responseFrame(0x15)}, want: pn532.ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dev := newFakeDev()
			dev.replies[0x02] = tt.replies
			tr := newTransport(dev, "fake")
			require.NoError(t, tr.SetTimeout(50*time.Millisecond))

			_, err := tr.SendCommand(context.Background(), 0x02, nil)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTransport_BusError(t *testing.T) {
	t.Parallel()

	dev := newFakeDev()
	dev.txErr = errors.New("remote I/O error")
	tr := newTransport(dev, "fake")

	_, err := tr.SendCommand(context.Background(), 0x02, nil)
	require.ErrorIs(t, err, pn532.ErrTransportWrite)
	var te *pn532.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "fake", te.Port)
}

func TestTransport_ContextCancelledWhileWaiting(t *testing.T) {
	t.Parallel()

	dev := newFakeDev()
	dev.replies[0x4A] = [][]byte{frame.Ack}
	tr := newTransport(dev, "fake")
	require.NoError(t, tr.SetTimeout(5*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := tr.SendCommand(ctx, 0x4A, []byte{0x01, 0x00})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestTransport_DeviceOverFakeBus(t *testing.T) {
	t.Parallel()

	dev := newFakeDev()
	dev.replies[0x14] = [][]byte{frame.Ack, responseFrame(0x15)}
	dev.replies[0x02] = [][]byte{frame.Ack, responseFrame(0x03, 0x32, 0x01, 0x06, 0x07)}
	device := pn532.New(newTransport(dev, "fake"))

	require.NoError(t, device.Init(context.Background()))
	assert.Equal(t, "1.6", device.Firmware().Version)
	require.NoError(t, device.Close())
}

func TestParseBusPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/dev/i2c-1", parseBusPath("/dev/i2c-1:0x24"))
	assert.Equal(t, "/dev/i2c-1", parseBusPath("/dev/i2c-1"))
	assert.Empty(t, parseBusPath(""))
	assert.Equal(t, pn532.TransportI2C, newTransport(newFakeDev(), "").Type())
}
