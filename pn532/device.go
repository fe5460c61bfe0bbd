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
	"time"

	"github.com/ZaparooProject/thixx/internal/syncutil"
)

// Command codes
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdInDataExchange      = 0x40
	cmdInListPassiveTarget = 0x4A
	cmdInRelease           = 0x52
)

// Baud rate and modulation for InListPassiveTarget; NTAG21x tags are
// ISO14443A at 106 kbps.
const brTy106kbpsTypeA = 0x00

// SAMMode represents the SAM configuration mode
type SAMMode byte

const (
	// SAMModeNormal - normal mode (default)
	SAMModeNormal SAMMode = 0x01
	// SAMModeVirtualCard - Virtual Card mode
	SAMModeVirtualCard SAMMode = 0x02
)

// DefaultTimeout is the transport timeout used for regular commands.
const DefaultTimeout = time.Second

// FirmwareVersion contains PN532 firmware information
type FirmwareVersion struct {
	Version          string
	IC               byte
	SupportIso14443a bool
	SupportIso14443b bool
	SupportIso18092  bool
}

// Target is a tag selected by InListPassiveTarget.
type Target struct {
	UID    []byte
	ATQ    []byte
	Number byte
	SAK    byte
}

// UIDString returns the UID as lower case hex.
func (t *Target) UIDString() string {
	return fmt.Sprintf("%x", t.UID)
}

// IsNTAG reports whether the target answers like a Type 2 tag.
// NTAG21x and Ultralight report SAK 0x00 and ATQA 0x0044.
func (t *Target) IsNTAG() bool {
	return t.SAK == 0x00 && len(t.ATQ) == 2 && t.ATQ[1] == 0x44
}

// Device represents a PN532 NFC reader. Commands are serialised so a
// Device may be shared between goroutines.
type Device struct {
	transport Transport
	firmware  *FirmwareVersion
	retry     RetryConfig
	mu        syncutil.Mutex
}

// New creates a Device on transport t. Init must be called before use.
func New(t Transport) *Device {
	return &Device{transport: t, retry: DefaultRetryConfig()}
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// Init wakes the PN532, switches it to normal mode and reads its firmware
// version as a health check.
func (d *Device) Init(ctx context.Context) error {
	if err := d.transport.SetTimeout(DefaultTimeout); err != nil {
		return fmt.Errorf("set timeout: %w", err)
	}
	if err := d.SAMConfiguration(ctx, SAMModeNormal, 0x14, 0x01); err != nil {
		return fmt.Errorf("SAM configuration: %w", err)
	}
	fw, err := d.GetFirmwareVersion(ctx)
	if err != nil {
		return fmt.Errorf("get firmware version: %w", err)
	}
	if !fw.SupportIso14443a {
		return fmt.Errorf("%w: firmware %s lacks ISO14443A", ErrDeviceNotSupported, fw.Version)
	}

	d.mu.Lock()
	d.firmware = fw
	d.mu.Unlock()
	debugf("PN532 ready: firmware %s on %s", fw.Version, d.transport.Type())
	return nil
}

// Firmware returns the version read by Init, or nil before Init.
func (d *Device) Firmware() *FirmwareVersion {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firmware
}

// Close closes the transport
func (d *Device) Close() error {
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// send issues one command, retrying transient transport failures, and
// checks the response code.
func (d *Device) send(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var res []byte
	err := retry(ctx, d.retry, func() error {
		var err error
		res, err = d.transport.SendCommand(ctx, cmd, args)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(res) == 0 || res[0] != cmd+1 {
		return nil, fmt.Errorf("%w: command 0x%02X answered with % X", ErrInvalidResponse, cmd, res)
	}
	return res[1:], nil
}

// SAMConfiguration configures the Security Access Module.
func (d *Device) SAMConfiguration(ctx context.Context, mode SAMMode, timeout, irq byte) error {
	_, err := d.send(ctx, cmdSAMConfiguration, []byte{byte(mode), timeout, irq})
	return err
}

// GetFirmwareVersion reads the IC and firmware version.
func (d *Device) GetFirmwareVersion(ctx context.Context) (*FirmwareVersion, error) {
	res, err := d.send(ctx, cmdGetFirmwareVersion, nil)
	if err != nil {
		return nil, err
	}
	if len(res) < 4 {
		return nil, fmt.Errorf("%w: firmware response % X", ErrInvalidResponse, res)
	}
	if res[0] != 0x32 {
		return nil, fmt.Errorf("%w: unexpected IC 0x%02X", ErrDeviceNotSupported, res[0])
	}
	return &FirmwareVersion{
		IC:               res[0],
		Version:          fmt.Sprintf("%d.%d", res[1], res[2]),
		SupportIso14443a: res[3]&0x01 != 0,
		SupportIso14443b: res[3]&0x02 != 0,
		SupportIso18092:  res[3]&0x04 != 0,
	}, nil
}

// InListPassiveTarget looks for one ISO14443A target. mxRtyATR is the
// number of passive activation retries the PN532 performs itself, each
// about 150ms. ErrTagNotFound is returned when no target answered.
func (d *Device) InListPassiveTarget(ctx context.Context, mxRtyATR byte) (*Target, error) {
	prev := DefaultTimeout
	if err := d.transport.SetTimeout(listTimeout(ctx, mxRtyATR, prev)); err == nil {
		defer func() { _ = d.transport.SetTimeout(prev) }()
	}

	res, err := d.send(ctx, cmdInListPassiveTarget, []byte{0x01, brTy106kbpsTypeA, mxRtyATR})
	if err != nil {
		if errors.Is(err, ErrTransportTimeout) {
			return nil, ErrTagNotFound
		}
		return nil, err
	}
	return parseTarget(res)
}

// listTimeout derives the host side timeout for InListPassiveTarget from
// the hardware retry count, bounded by the context deadline.
func listTimeout(ctx context.Context, mxRtyATR byte, fallback time.Duration) time.Duration {
	expected := time.Duration(mxRtyATR)*150*time.Millisecond + 300*time.Millisecond
	expected = min(max(expected, fallback), 8*time.Second)
	if deadline, ok := ctx.Deadline(); ok {
		if rem := time.Until(deadline); rem > 0 && rem < expected {
			return rem
		}
	}
	return expected
}

func parseTarget(res []byte) (*Target, error) {
	if len(res) < 1 {
		return nil, fmt.Errorf("%w: empty InListPassiveTarget response", ErrInvalidResponse)
	}
	if res[0] == 0 {
		return nil, ErrTagNotFound
	}

	// Tg, SENS_RES(2), SEL_RES, NFCIDLength, NFCID
	if len(res) < 6 {
		return nil, fmt.Errorf("%w: target data truncated", ErrInvalidResponse)
	}
	uidLen := int(res[5])
	if len(res) < 6+uidLen {
		return nil, fmt.Errorf("%w: UID truncated", ErrInvalidResponse)
	}
	return &Target{
		Number: res[1],
		ATQ:    append([]byte(nil), res[2:4]...),
		SAK:    res[4],
		UID:    append([]byte(nil), res[6:6+uidLen]...),
	}, nil
}

// InDataExchange sends data to target tg and returns its answer.
func (d *Device) InDataExchange(ctx context.Context, tg byte, data []byte) ([]byte, error) {
	args := make([]byte, 0, len(data)+1)
	args = append(args, tg)
	args = append(args, data...)

	res, err := d.send(ctx, cmdInDataExchange, args)
	if err != nil {
		return nil, err
	}
	if len(res) < 1 {
		return nil, fmt.Errorf("%w: empty InDataExchange response", ErrInvalidResponse)
	}
	if status := res[0] & 0x3F; status != 0 {
		return nil, &StatusError{Command: "InDataExchange", Status: status}
	}
	return res[1:], nil
}

// InRelease releases target tg. Zero releases all targets.
func (d *Device) InRelease(ctx context.Context, tg byte) error {
	res, err := d.send(ctx, cmdInRelease, []byte{tg})
	if err != nil {
		return err
	}
	if len(res) < 1 {
		return fmt.Errorf("%w: empty InRelease response", ErrInvalidResponse)
	}
	if res[0] != 0 {
		return &StatusError{Command: "InRelease", Status: res[0]}
	}
	return nil
}
