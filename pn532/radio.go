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

	"github.com/ZaparooProject/thixx/pkg/ndef"
	"github.com/ZaparooProject/thixx/session"
)

// Polling defaults
const (
	DefaultPollInterval = 100 * time.Millisecond
	// pollRetries keeps each InListPassiveTarget short so removal and
	// cancellation are noticed quickly.
	pollRetries = 0x02
	// maxReadFailures bounds how often one tag may fail to read before
	// the scan ends with that failure.
	maxReadFailures = 3
)

// Radio exposes a Device as a session.Radio for NTAG21x tags carrying a
// single NDEF Text record.
type Radio struct {
	device   *Device
	language string
	interval time.Duration
}

var _ session.Radio = (*Radio)(nil)

// RadioOption configures a Radio.
type RadioOption func(*Radio)

// WithLanguage sets the language code of written Text records.
func WithLanguage(lang string) RadioOption {
	return func(r *Radio) { r.language = lang }
}

// WithPollInterval sets the pause between two target polls.
func WithPollInterval(d time.Duration) RadioOption {
	return func(r *Radio) {
		if d > 0 {
			r.interval = d
		}
	}
}

// NewRadio wraps an initialised device.
func NewRadio(device *Device, opts ...RadioOption) *Radio {
	r := &Radio{device: device, language: ndef.DefaultLanguage, interval: DefaultPollInterval}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scan polls for tags until ctx ends. Each tag is reported once per
// presence in the field; it has to leave before it is reported again.
func (r *Radio) Scan(ctx context.Context) (<-chan session.TagEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	events := make(chan session.TagEvent)
	go func() {
		defer close(events)
		r.poll(ctx, events)
	}()
	return events, nil
}

func (r *Radio) poll(ctx context.Context, events chan<- session.TagEvent) {
	var (
		lastUID    string
		failedUID  string
		readFailed int
	)
	for {
		target, err := r.device.InListPassiveTarget(ctx, pollRetries)
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, ErrTagNotFound):
			if lastUID != "" {
				debugf("tag %s left the field", lastUID)
			}
			lastUID, failedUID, readFailed = "", "", 0
		case err != nil:
			if IsFatal(err) {
				debugf("polling stopped: %v", err)
				r.fail(ctx, events, session.TagEvent{Err: err})
				return
			}
			debugf("poll failed: %v", err)
		case target.UIDString() != lastUID:
			ev, readErr := r.read(ctx, target)
			r.release(target)
			if readErr != nil {
				if target.UIDString() != failedUID {
					failedUID, readFailed = target.UIDString(), 0
				}
				readFailed++
				if readFailed < maxReadFailures {
					debugf("read of tag %s failed (%d/%d), polling again: %v",
						failedUID, readFailed, maxReadFailures, readErr)
					break
				}
				r.fail(ctx, events, session.TagEvent{UID: failedUID, Err: readErr})
				return
			}
			lastUID, failedUID, readFailed = ev.UID, "", 0
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		default:
			r.release(target)
		}

		if !sleepWithContext(ctx, r.interval) {
			return
		}
	}
}

// fail delivers the error that ends a scan.
func (r *Radio) fail(ctx context.Context, events chan<- session.TagEvent, ev session.TagEvent) {
	ev.Err = platformError(ev.Err)
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// read turns the tag content into an event. Tags without an NDEF data
// area are reported as empty.
func (r *Radio) read(ctx context.Context, target *Target) (session.TagEvent, error) {
	ev := session.TagEvent{UID: target.UIDString()}
	if !target.IsNTAG() {
		debugf("tag %s is not a Type 2 tag (SAK 0x%02X)", ev.UID, target.SAK)
		return ev, nil
	}

	msg, err := NewNTAG(r.device, target).ReadNDEF(ctx)
	if errors.Is(err, ErrTagNotNDEF) {
		return ev, nil
	}
	if err != nil {
		return ev, err
	}

	ev.Records = len(msg.Records)
	if text, err := msg.FirstText(); err == nil {
		ev.Text, ev.HasText = text.Text, true
	} else if uri, err := msg.FirstURI(); err == nil {
		ev.Text, ev.HasText = uri, true
	}
	return ev, nil
}

// Write waits for a tag and stores payload in it as a Text record.
func (r *Radio) Write(ctx context.Context, payload string) error {
	rec, err := ndef.NewTextRecord(payload, r.language)
	if err != nil {
		return fmt.Errorf("build text record: %w", err)
	}
	msg := ndef.NewMessage(rec)

	target, err := r.waitForTag(ctx)
	if err != nil {
		return platformError(err)
	}
	defer r.release(target)

	if !target.IsNTAG() {
		return platformError(fmt.Errorf("%w: SAK 0x%02X", ErrTagUnsupported, target.SAK))
	}
	if err := NewNTAG(r.device, target).WriteNDEF(ctx, msg); err != nil {
		return platformError(err)
	}
	return nil
}

func (r *Radio) waitForTag(ctx context.Context) (*Target, error) {
	for {
		target, err := r.device.InListPassiveTarget(ctx, pollRetries)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil {
			return target, nil
		}
		if !errors.Is(err, ErrTagNotFound) && !IsRetryable(err) {
			return nil, err
		}
		if !sleepWithContext(ctx, r.interval) {
			return nil, ctx.Err()
		}
	}
}

// release frees the target without the caller's context, which may
// already be cancelled.
func (r *Radio) release(target *Target) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	if err := r.device.InRelease(ctx, target.Number); err != nil {
		debugf("release of target %d failed: %v", target.Number, err)
	}
}
