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
	"fmt"
	"time"
)

// State is a step of the session state machine.
type State int

const (
	StateIdle State = iota
	StateArming
	StateScanning
	StateWriting
	StateSucceeded
	StateFailed
	StateTimedOut
	StateCancelled
	StateGracePeriod
	StateCooldown
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateArming:      "arming",
	StateScanning:    "scanning",
	StateWriting:     "writing",
	StateSucceeded:   "succeeded",
	StateFailed:      "failed",
	StateTimedOut:    "timed out",
	StateCancelled:   "cancelled",
	StateGracePeriod: "grace period",
	StateCooldown:    "cooldown",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether s is an outcome of an interaction.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateTimedOut, StateCancelled:
		return true
	default:
		return false
	}
}

// Mode selects what an interaction does with the tag.
type Mode int

const (
	ModeRead Mode = iota
	ModeWrite
)

func (m Mode) String() string {
	if m == ModeWrite {
		return "write"
	}
	return "read"
}

// safeTimerStop stops a timer created with time.AfterFunc. The callback may
// already be running, so callers must still check the handle it captured.
func safeTimerStop(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}
