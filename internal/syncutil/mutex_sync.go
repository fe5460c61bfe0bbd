//go:build !deadlock

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

// Package syncutil provides the mutex types used across thixx. Plain sync
// types are used by default; building with -tags=deadlock swaps in
// github.com/sasha-s/go-deadlock so lock-order bugs in the session
// controller show up in tests.
package syncutil

import (
	"sync"
	"time"
)

// Mutex wraps sync.Mutex.
//
//nolint:gocritic // embedded to expose Lock/Unlock
type Mutex struct {
	sync.Mutex
}

// RWMutex wraps sync.RWMutex.
//
//nolint:gocritic // embedded to expose the RWMutex methods
type RWMutex struct {
	sync.RWMutex
}

// DeadlockDetection reports whether the deadlock detector is compiled in.
const DeadlockDetection = false

// SetLockTimeout sets how long a lock may wait before it is reported as a
// deadlock. It has no effect without the deadlock build tag.
func SetLockTimeout(time.Duration) {}
