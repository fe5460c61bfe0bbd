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

package session

import (
	"context"
	"time"

	"github.com/ZaparooProject/thixx"
)

// TagEvent is a single tag detection delivered by a Radio.
type TagEvent struct {
	// UID is the hex encoded tag identifier.
	UID string
	// Text is the content of the first NDEF Text record.
	Text string
	// Records is the number of NDEF records found on the tag.
	Records int
	// HasText is set when a Text record was found.
	HasText bool
	// Err reports a reader failure instead of a detection. The radio
	// closes the channel after sending it.
	Err error
}

// Radio is the NFC hardware as seen by the controller. The controller is the
// only caller and never runs two operations at once.
//
// Scan starts listening and delivers tag detections until ctx ends, then
// closes the channel and releases the hardware. A failure that ends the
// scan is delivered as an event with Err set. Write blocks until payload
// has been written to a tag or ctx ends. Failures should wrap one of the
// thixx platform sentinels.
type Radio interface {
	Scan(ctx context.Context) (<-chan TagEvent, error)
	Write(ctx context.Context, payload string) error
}

// Result is the single outcome of an interaction.
type Result struct {
	Err      error
	Record   thixx.Record
	Payload  string
	Duration time.Duration
	Attempts int
	Mode     Mode
	State    State
	Kind     thixx.ErrorKind
}

// Callbacks receive controller notifications. They are called in order
// from outside the controller lock and may call back into the controller.
type Callbacks struct {
	// OnRecordReady receives the sanitized record of a successful read.
	OnRecordReady func(thixx.Record)
	// OnStatus is called on every state change with a display message.
	OnStatus func(State, string)
	// OnResult is called once per interaction with its outcome.
	OnResult func(Result)
}

// Observer receives session telemetry.
type Observer interface {
	SessionStarted(mode Mode)
	WriteAttempt(attempt int, err error)
	SessionFinished(result Result)
}

type nopObserver struct{}

func (nopObserver) SessionStarted(Mode)     {}
func (nopObserver) WriteAttempt(int, error) {}
func (nopObserver) SessionFinished(Result)  {}
