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

package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ZaparooProject/thixx"
	"github.com/ZaparooProject/thixx/internal/config"
	"github.com/ZaparooProject/thixx/internal/logs"
	"github.com/ZaparooProject/thixx/internal/metrics"
	"github.com/ZaparooProject/thixx/pn532"
	"github.com/ZaparooProject/thixx/session"
	"github.com/ZaparooProject/thixx/store"
	"github.com/ZaparooProject/thixx/transport/i2c"
	"github.com/ZaparooProject/thixx/transport/uart"
)

// Settings keys.
const (
	settingLastPort = "uart.last_port"
	settingMockTag  = "mock.tag"
)

var mockUID = []byte{0x04, 0x7A, 0x3B, 0x12, 0x6C, 0x55, 0x80}

type app struct {
	cfg     *config.Config
	logs    *logs.Logs
	log     *slog.Logger
	store   *store.Store
	device  *pn532.Device
	mock    *pn532.MockTransport
	metrics *metrics.Server
	obs     session.Observer
	stderr  io.Writer
	debug   bool
}

func newApp(g *globalFlags, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	applyDeviceFlag(cfg, g.device)
	if g.metrics != "" {
		cfg.Metrics.Addr = g.metrics
	}

	l, err := logs.New(logs.Options{
		Console:      stderr,
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		File:         cfg.Log.File,
		EventLogSize: cfg.Log.EventLogSize,
		Journal:      cfg.Log.Journal,
		Debug:        g.debug,
	})
	if err != nil {
		return nil, err
	}
	switch {
	case g.debug:
		pn532.SetLogger(l.Logger)
		pn532.SetDebugEnabled(true)
	case g.quiet:
		l.SetLevel(slog.LevelError)
		pn532.SetLogger(logs.Discard())
	default:
		pn532.SetLogger(l.Logger)
	}

	a := &app{cfg: cfg, logs: l, log: l.Logger, stderr: stderr, debug: g.debug}

	a.store, err = store.Open(cfg.Store.Path)
	if err != nil {
		a.close()
		return nil, err
	}

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		obs, err := metrics.NewObserver(reg)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		a.obs = obs
		a.metrics = metrics.NewServer(cfg.Metrics.Addr, reg, a.log)
		a.metrics.Start()
		a.log.Info("serving metrics", "addr", cfg.Metrics.Addr)
	}
	return a, nil
}

// applyDeviceFlag lets -device override the configured reader. "mock"
// selects the simulator and a path naming an I2C bus selects I2C.
func applyDeviceFlag(cfg *config.Config, device string) {
	switch {
	case device == "":
		return
	case strings.EqualFold(device, config.DeviceMock):
		cfg.Device.Type = config.DeviceMock
		return
	case strings.Contains(strings.ToLower(device), "i2c"):
		cfg.Device.Type = config.DeviceI2C
	case cfg.Device.Type == config.DeviceMock:
		cfg.Device.Type = config.DeviceUART
	}
	cfg.Device.Path = device
}

func (a *app) close() {
	if a.device != nil {
		a.saveMockTag()
		if err := a.device.Close(); err != nil {
			a.log.Warn("failed to close device", "error", err)
		}
		a.device = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("failed to close store", "error", err)
		}
		a.store = nil
	}
	if a.metrics != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.metrics.Shutdown(ctx); err != nil {
			a.log.Warn("failed to stop metrics server", "error", err)
		}
		cancel()
		a.metrics = nil
	}
	_ = a.logs.Close()
}

// openDevice connects to the configured reader and initialises it.
func (a *app) openDevice(ctx context.Context) (*pn532.Device, error) {
	t, err := a.openTransport(ctx)
	if err != nil {
		return nil, err
	}

	device := pn532.New(t)
	if err := device.Init(ctx); err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("failed to initialize PN532: %w", err)
	}
	a.device = device

	if t.Type() == pn532.TransportUART {
		if err := a.store.SetSetting(ctx, settingLastPort, a.cfg.Device.Path); err != nil {
			a.log.Warn("failed to remember port", "error", err)
		}
	}
	a.log.Debug("PN532 connected", "transport", t.Type(), "path", a.cfg.Device.Path,
		"firmware", device.Firmware().Version)
	return device, nil
}

func (a *app) openTransport(ctx context.Context) (pn532.Transport, error) {
	switch a.cfg.Device.Type {
	case config.DeviceMock:
		return a.openMock(ctx)
	case config.DeviceI2C:
		t, err := i2c.New(a.cfg.Device.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport: %w", err)
		}
		return t, nil
	default:
		if a.cfg.Device.Path == "" {
			path, err := a.pickPort(ctx)
			if err != nil {
				return nil, err
			}
			a.cfg.Device.Path = path
		}
		t, err := uart.New(a.cfg.Device.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		return t, nil
	}
}

// pickPort prefers the port that worked last time.
func (a *app) pickPort(ctx context.Context) (string, error) {
	ports, err := uart.Ports()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", fmt.Errorf("%w: no serial ports found", pn532.ErrDeviceNotFound)
	}
	last, err := a.store.GetSetting(ctx, settingLastPort)
	if err != nil {
		return "", err
	}
	if last != "" && slices.Contains(ports, last) {
		return last, nil
	}
	return ports[0], nil
}

// openMock returns the simulator with the tag left by the previous run in
// its field.
func (a *app) openMock(ctx context.Context) (pn532.Transport, error) {
	mem := pn532.BlankNTAG215(mockUID)
	saved, err := a.store.GetSetting(ctx, settingMockTag)
	if err != nil {
		return nil, err
	}
	if saved != "" {
		raw, err := hex.DecodeString(saved)
		if err != nil || len(raw) != len(mem) {
			a.log.Warn("discarding saved mock tag", "bytes", len(raw), "error", err)
		} else {
			mem = raw
		}
	}

	m := pn532.NewMockTransport()
	m.PlaceTag(mockUID, mem)
	a.mock = m
	return m, nil
}

func (a *app) saveMockTag() {
	if a.mock == nil {
		return
	}
	if err := a.store.SetSetting(context.Background(), settingMockTag, hex.EncodeToString(a.mock.Memory())); err != nil {
		a.log.Warn("failed to save mock tag", "error", err)
	}
}

// interact runs one controller interaction and waits for its result.
func (a *app) interact(ctx context.Context, start func(*session.Controller) error) (session.Result, error) {
	device, err := a.openDevice(ctx)
	if err != nil {
		return session.Result{}, err
	}
	radio := pn532.NewRadio(device,
		pn532.WithLanguage(a.cfg.Tag.Language),
		pn532.WithPollInterval(a.cfg.Device.PollInterval))

	results := make(chan session.Result, 1)
	settled := make(chan struct{})
	var settle sync.Once
	ctrl := session.NewController(radio, &a.cfg.Session,
		session.WithLogger(a.log),
		session.WithObserver(a.obs),
		session.WithURLBase(a.cfg.Tag.URLBase),
		session.WithCallbacks(session.Callbacks{
			OnStatus: func(s session.State, msg string) {
				switch s {
				case session.StateScanning, session.StateWriting:
					_, _ = fmt.Fprintln(a.stderr, msg)
				case session.StateCooldown, session.StateIdle:
					settle.Do(func() { close(settled) })
				default:
				}
			},
			OnResult: func(res session.Result) {
				select {
				case results <- res:
				default:
				}
			},
		}))
	defer func() { _ = ctrl.Close() }()

	if err := start(ctrl); err != nil {
		return session.Result{}, errors.New(thixx.Describe(err))
	}

	var res session.Result
	select {
	case res = <-results:
	case <-ctx.Done():
		ctrl.Cancel("interrupted")
		return session.Result{}, ctx.Err()
	}
	if res.Err != nil {
		a.printEvents()
		return res, fmt.Errorf("%s: %w", strings.TrimSuffix(thixx.Describe(res.Err), "."), res.Err)
	}

	// Close ends the grace period, so wait until it is over.
	select {
	case <-settled:
	case <-ctx.Done():
		ctrl.Cancel("interrupted")
	}
	return res, nil
}

func (a *app) printEvents() {
	if !a.debug {
		return
	}
	_, _ = fmt.Fprintln(a.stderr, "Recent events:")
	for _, e := range a.logs.Events.Entries() {
		_, _ = fmt.Fprintf(a.stderr, "  %s\n", e)
	}
}

func (a *app) remember(ctx context.Context, res session.Result) {
	payload := res.Payload
	if payload == "" {
		payload = thixx.EncodeCompact(res.Record)
	}
	id, err := a.store.AddHistory(ctx, res.Mode.String(), payload, res.Record)
	if err != nil {
		a.log.Warn("failed to record history", "error", err)
		return
	}
	a.log.Debug("history recorded", "id", id)
}

func (a *app) runRead(ctx context.Context, stdout io.Writer) error {
	res, err := a.interact(ctx, (*session.Controller).StartRead)
	if err != nil {
		return err
	}
	a.remember(ctx, res)
	return thixx.ExportJSON(stdout, res.Record)
}

func (a *app) runWrite(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	var in recordInput
	fs := flag.NewFlagSet("write", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	in.register(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	ed, err := in.editor(stdin, a.cfg.Session.PayloadLimit)
	if err != nil {
		return err
	}

	res, err := a.interact(ctx, func(c *session.Controller) error { return c.StartWrite(ed.Snapshot()) })
	if err != nil {
		return err
	}
	a.remember(ctx, res)
	_, _ = fmt.Fprintf(stdout, "Tag written: %s in %d attempt(s)\n",
		thixx.StatusOf(res.Payload, a.cfg.Session.PayloadLimit), res.Attempts)
	return nil
}

func (a *app) runHistory(ctx context.Context, args []string, stdout io.Writer) error {
	var (
		limit    int
		clearAll bool
		id       string
	)
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.IntVar(&limit, "n", 20, "Number of entries to show (0 for all)")
	fs.BoolVar(&clearAll, "clear", false, "Delete the history")
	fs.StringVar(&id, "id", "", "Print the record of one entry as JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	switch {
	case clearAll:
		return a.store.ClearHistory(ctx)
	case id != "":
		e, err := a.store.HistoryEntry(ctx, id)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.stderr, "%s  %s  %s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Mode, thixx.StatusOf(e.Payload, a.cfg.Session.PayloadLimit))
		return thixx.ExportJSON(stdout, e.Record)
	}

	entries, err := a.store.History(ctx, limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fields := make([]string, 0, len(e.Record))
		for _, f := range e.Record.Entries() {
			fields = append(fields, f.Field.Name+"="+f.Value)
		}
		_, _ = fmt.Fprintf(stdout, "%s  %-5s  %s  %s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Mode, e.ID, strings.Join(fields, ", "))
	}
	return nil
}

// maxSettingWidth shortens long values such as the saved mock tag.
const maxSettingWidth = 48

func (a *app) runSettings(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("settings", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	settings, err := a.store.Settings(ctx)
	if err != nil {
		return err
	}
	keys := slices.Sorted(maps.Keys(settings))
	for _, k := range keys {
		v := settings[k]
		if len(v) > maxSettingWidth {
			v = fmt.Sprintf("%s... (%d bytes)", v[:maxSettingWidth], len(v))
		}
		_, _ = fmt.Fprintf(stdout, "%s = %s\n", k, v)
	}
	return nil
}
