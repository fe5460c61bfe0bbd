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
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/thixx"
)

// Config holds the timings of an NFC interaction.
type Config struct {
	// ActionTimeout bounds every read or write from start to terminal state.
	// Default: 5 seconds
	ActionTimeout time.Duration `yaml:"action_timeout"`

	// GracePeriod is how long the radio is held open after a successful
	// write so a lingering tag cannot trigger a duplicate detection.
	// Default: 2.5 seconds
	GracePeriod time.Duration `yaml:"grace_period"`

	// Cooldown is the quiet time after every interaction during which new
	// actions are rejected. Default: 2 seconds
	Cooldown time.Duration `yaml:"cooldown"`

	// RetryBackoff is the pause between write attempts.
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// MaxWriteAttempts is the total number of write attempts. Default: 3
	MaxWriteAttempts int `yaml:"max_write_attempts"`

	// PayloadLimit is the largest payload accepted for writing, in bytes.
	PayloadLimit int `yaml:"payload_limit"`
}

// DefaultConfig returns the timings of the field application.
func DefaultConfig() *Config {
	return &Config{
		ActionTimeout:    5 * time.Second,
		GracePeriod:      2500 * time.Millisecond,
		Cooldown:         2 * time.Second,
		RetryBackoff:     200 * time.Millisecond,
		MaxWriteAttempts: 3,
		PayloadLimit:     thixx.MaxPayloadSize,
	}
}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid session config")

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch {
	case c.ActionTimeout <= 0:
		return fmt.Errorf("%w: action_timeout must be positive", ErrInvalidConfig)
	case c.GracePeriod < 0:
		return fmt.Errorf("%w: grace_period must not be negative", ErrInvalidConfig)
	case c.Cooldown < 0:
		return fmt.Errorf("%w: cooldown must not be negative", ErrInvalidConfig)
	case c.RetryBackoff < 0:
		return fmt.Errorf("%w: retry_backoff must not be negative", ErrInvalidConfig)
	case c.MaxWriteAttempts < 1:
		return fmt.Errorf("%w: max_write_attempts must be at least 1", ErrInvalidConfig)
	case c.PayloadLimit < 1:
		return fmt.Errorf("%w: payload_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
