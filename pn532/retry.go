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
	"math/rand/v2"
	"time"
)

// RetryConfig configures retry behavior for PN532 commands.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (1 = no retry)
	MaxAttempts int
	// InitialBackoff is the delay before the second attempt
	InitialBackoff time.Duration
	// MaxBackoff caps the delay between attempts
	MaxBackoff time.Duration
	// Jitter adds up to this fraction of the backoff at random
	Jitter float64
}

// Retry counts for the operations that need them.
const (
	commandRetries   = 3
	pageReadRetries  = 3
	pageWriteRetries = 2
)

// DefaultRetryConfig returns the retry configuration used for commands.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    commandRetries,
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     200 * time.Millisecond,
		Jitter:         0.1,
	}
}

func (c RetryConfig) withAttempts(n int) RetryConfig {
	c.MaxAttempts = n
	return c
}

// retry runs fn until it succeeds, returns an error IsRetryable rejects,
// the attempts run out or ctx ends. The last error is returned.
func retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	backoff := cfg.InitialBackoff
	for attempt := range cfg.MaxAttempts {
		if ctx.Err() != nil {
			if lastErr != nil {
				return lastErr
			}
			return ctx.Err()
		}

		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		debugf("retrying after attempt %d/%d: %v", attempt+1, cfg.MaxAttempts, lastErr)
		if !sleepWithContext(ctx, jittered(backoff, cfg.Jitter)) {
			return lastErr
		}
		backoff = min(backoff*2, cfg.MaxBackoff)
	}
	return lastErr
}

func jittered(d time.Duration, factor float64) time.Duration {
	if factor <= 0 || d <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*factor*float64(d))
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
