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

	"github.com/ZaparooProject/thixx/pkg/ndef"
)

// NTAG commands and memory layout
const (
	ntagCmdRead  = 0x30
	ntagCmdWrite = 0xA2

	ntagPageSize  = 4
	ntagReadPages = 4 // READ returns 16 bytes
	ntagPageCC    = 3
	ntagPageUser  = 4

	ccMagic       = 0xE1
	ccWriteDenied = 0x0F
)

// Capability is the decoded capability container of a Type 2 tag.
type Capability struct {
	Version byte
	// DataSize is the NDEF data area in bytes.
	DataSize int
	Access   byte
}

// Writable reports whether the access byte grants write access.
func (c Capability) Writable() bool {
	return c.Access&ccWriteDenied == 0
}

// ParseCapability decodes page 3 of a Type 2 tag.
func ParseCapability(page []byte) (Capability, error) {
	if len(page) < ntagPageSize || page[0] != ccMagic {
		return Capability{}, fmt.Errorf("%w: capability container % X", ErrTagNotNDEF, page)
	}
	return Capability{Version: page[1], DataSize: int(page[2]) * 8, Access: page[3]}, nil
}

// Model guesses the NTAG21x variant from the data area size.
func (c Capability) Model() string {
	switch c.DataSize {
	case 144:
		return "NTAG213"
	case 496:
		return "NTAG215"
	case 872:
		return "NTAG216"
	default:
		return fmt.Sprintf("Type 2 (%d bytes)", c.DataSize)
	}
}

// NTAG is an NTAG21x tag selected on a Device.
type NTAG struct {
	device *Device
	target *Target
	cc     *Capability
}

// NewNTAG wraps target for page level access through device.
func NewNTAG(device *Device, target *Target) *NTAG {
	return &NTAG{device: device, target: target}
}

// UID returns the tag UID as hex.
func (t *NTAG) UID() string {
	return t.target.UIDString()
}

// Read returns the 16 bytes starting at page. The tag wraps around at the
// end of its memory.
func (t *NTAG) Read(ctx context.Context, page byte) ([]byte, error) {
	var data []byte
	err := retry(ctx, t.device.retry.withAttempts(pageReadRetries), func() error {
		var err error
		data, err = t.device.InDataExchange(ctx, t.target.Number, []byte{ntagCmdRead, page})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w (page %d): %w", ErrTagReadFailed, page, err)
	}
	if len(data) < ntagPageSize*ntagReadPages {
		return nil, fmt.Errorf("%w (page %d): short read of %d bytes", ErrTagReadFailed, page, len(data))
	}
	return data[:ntagPageSize*ntagReadPages], nil
}

// WritePage writes one 4 byte page.
func (t *NTAG) WritePage(ctx context.Context, page byte, data []byte) error {
	if len(data) != ntagPageSize {
		return fmt.Errorf("invalid page size: expected %d, got %d", ntagPageSize, len(data))
	}

	cmd := make([]byte, 0, 2+ntagPageSize)
	cmd = append(cmd, ntagCmdWrite, page)
	cmd = append(cmd, data...)

	err := retry(ctx, t.device.retry.withAttempts(pageWriteRetries), func() error {
		_, err := t.device.InDataExchange(ctx, t.target.Number, cmd)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w (page %d): %w", ErrTagWriteFailed, page, err)
	}
	return nil
}

// Capability reads and caches the capability container.
func (t *NTAG) Capability(ctx context.Context) (Capability, error) {
	if t.cc != nil {
		return *t.cc, nil
	}
	data, err := t.Read(ctx, ntagPageCC)
	if err != nil {
		return Capability{}, err
	}
	cc, err := ParseCapability(data[:ntagPageSize])
	if err != nil {
		return Capability{}, err
	}
	debugf("NTAG %s: %s, CC % X", t.UID(), cc.Model(), data[:ntagPageSize])
	t.cc = &cc
	return cc, nil
}

// ReadNDEF reads the NDEF message stored in the data area. A tag with an
// empty Message TLV returns a message without records.
func (t *NTAG) ReadNDEF(ctx context.Context) (*ndef.Message, error) {
	cc, err := t.Capability(ctx)
	if err != nil {
		return nil, err
	}

	head, err := t.Read(ctx, ntagPageUser)
	if err != nil {
		return nil, err
	}
	total, err := ndef.MessageLength(head)
	if errors.Is(err, ndef.ErrNoNDEFTLV) {
		return &ndef.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTagReadFailed, err)
	}
	if total > cc.DataSize {
		return nil, fmt.Errorf("%w: TLV of %d bytes in %d byte data area", ErrTagReadFailed, total, cc.DataSize)
	}

	data := head
	for page := byte(ntagPageUser + ntagReadPages); len(data) < total; page += ntagReadPages {
		chunk, err := t.Read(ctx, page)
		if err != nil {
			return nil, err
		}
		data = append(data, chunk...)
	}

	raw, err := ndef.FindMessage(data[:total])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTagReadFailed, err)
	}
	if len(raw) == 0 {
		return &ndef.Message{}, nil
	}
	msg, err := ndef.ParseMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTagReadFailed, err)
	}
	return msg, nil
}

// WriteNDEF stores msg in the data area, wrapped in a Message TLV and
// followed by a Terminator TLV.
func (t *NTAG) WriteNDEF(ctx context.Context, msg *ndef.Message) error {
	cc, err := t.Capability(ctx)
	if err != nil {
		return err
	}
	if !cc.Writable() {
		return ErrTagReadOnly
	}

	raw, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("encode NDEF message: %w", err)
	}
	data, err := ndef.WrapTLV(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTagCapacity, err)
	}
	if len(data) > cc.DataSize {
		return fmt.Errorf("%w: %d bytes, %s holds %d", ErrTagCapacity, len(data), cc.Model(), cc.DataSize)
	}

	for i := 0; i < len(data); i += ntagPageSize {
		page := make([]byte, ntagPageSize)
		copy(page, data[i:])
		if err := t.WritePage(ctx, byte(ntagPageUser+i/ntagPageSize), page); err != nil {
			return err
		}
	}
	debugf("NTAG %s: wrote %d bytes", t.UID(), len(data))
	return nil
}
