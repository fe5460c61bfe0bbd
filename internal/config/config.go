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

// Package config loads the thixx YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ZaparooProject/thixx/pkg/ndef"
	"github.com/ZaparooProject/thixx/session"
)

// Device types
const (
	DeviceUART = "uart"
	DeviceI2C  = "i2c"
	DeviceMock = "mock"
)

// Log formats
const (
	FormatAuto = "auto"
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the complete configuration file.
type Config struct {
	Device  DeviceConfig   `yaml:"device"`
	Tag     TagConfig      `yaml:"tag"`
	Log     LogConfig      `yaml:"log"`
	Metrics MetricsConfig  `yaml:"metrics"`
	Store   StoreConfig    `yaml:"store"`
	Session session.Config `yaml:"session"`
}

// DeviceConfig selects the PN532 connection.
type DeviceConfig struct {
	// Type is uart, i2c or mock.
	Type string `yaml:"type"`
	// Path is the serial port or I2C bus. Empty picks the first serial
	// port or the default bus.
	Path         string        `yaml:"path"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// TagConfig controls what is written to tags.
type TagConfig struct {
	// Language is the Text record language code.
	Language string `yaml:"language"`
	// URLBase switches writes to the URL format when set.
	URLBase string `yaml:"url_base"`
}

// LogConfig controls the log outputs.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File receives a copy of every record when set.
	File string `yaml:"file"`
	// EventLogSize is the number of entries kept for display.
	EventLogSize int `yaml:"event_log_size"`
	// Journal also sends records to the systemd journal.
	Journal bool `yaml:"journal"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address; empty disables the endpoint.
	Addr string `yaml:"addr"`
}

// StoreConfig locates the settings and history database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Device:  DeviceConfig{Type: DeviceUART, PollInterval: 100 * time.Millisecond},
		Tag:     TagConfig{Language: ndef.DefaultLanguage},
		Log:     LogConfig{Level: "info", Format: FormatAuto, EventLogSize: 15},
		Store:   StoreConfig{Path: defaultStorePath()},
		Session: *session.DefaultConfig(),
	}
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "thixx.db"
	}
	return filepath.Join(dir, "thixx", "thixx.db")
}

// Load reads path on top of the defaults. An empty path returns the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults and validates the result.
// Unknown keys are rejected.
func Parse(raw []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Device.Type = strings.ToLower(strings.TrimSpace(c.Device.Type))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Tag.Language == "" {
		c.Tag.Language = ndef.DefaultLanguage
	}
}

// Validate reports the first unusable setting.
func (c *Config) Validate() error {
	switch c.Device.Type {
	case DeviceUART, DeviceI2C, DeviceMock:
	default:
		return fmt.Errorf("device.type %q: must be uart, i2c or mock", c.Device.Type)
	}
	if c.Device.PollInterval <= 0 {
		return errors.New("device.poll_interval must be positive")
	}
	if len(c.Tag.Language) > 63 {
		return fmt.Errorf("tag.language %q is too long", c.Tag.Language)
	}
	if c.Tag.URLBase != "" && !strings.HasPrefix(c.Tag.URLBase, "http://") &&
		!strings.HasPrefix(c.Tag.URLBase, "https://") {
		return fmt.Errorf("tag.url_base %q must be an http or https URL", c.Tag.URLBase)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q: must be debug, info, warn or error", c.Log.Level)
	}
	switch c.Log.Format {
	case FormatAuto, FormatText, FormatJSON:
	default:
		return fmt.Errorf("log.format %q: must be auto, text or json", c.Log.Format)
	}
	if c.Log.EventLogSize < 1 {
		return errors.New("log.event_log_size must be at least 1")
	}
	if c.Store.Path == "" {
		return errors.New("store.path is required")
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	return nil
}
