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
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ZaparooProject/thixx"
	"github.com/ZaparooProject/thixx/internal/syncutil"
)

var (
	// ErrBusy is returned when an action is started while another one, its
	// grace period or its cooldown is still running.
	ErrBusy = errors.New("nfc session already active")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("controller closed")
	// ErrCancelled is the cause of an interaction stopped by Cancel.
	ErrCancelled = errors.New("session cancelled")

	errReleased = errors.New("radio released")
)

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for session diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.log = logger
		}
	}
}

// WithObserver sets the telemetry observer.
func WithObserver(obs Observer) Option {
	return func(c *Controller) {
		if obs != nil {
			c.obs = obs
		}
	}
}

// WithCallbacks sets the notification callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(c *Controller) {
		c.cb = cb
	}
}

// WithURLBase makes writes use the URL format with base instead of the
// compact format.
func WithURLBase(base string) Option {
	return func(c *Controller) {
		c.urlBase = base
	}
}

// handle is the cancellation scope of one interaction. Every asynchronous
// completion checks that its handle is still current and not done before
// acting, so a late hardware event cannot override a timeout and the other
// way around.
type handle struct {
	ctx      context.Context
	started  time.Time
	timeout  *time.Timer
	grace    *time.Timer
	cancel   context.CancelCauseFunc
	record   thixx.Record
	payload  string
	id       uint64
	attempts int
	mode     Mode
	done     bool // outcome claimed by exactly one path
	reported bool // Result delivered
}

// Controller runs NFC interactions one at a time. It owns the Radio: no
// other component may scan or write while a controller is in use.
type Controller struct {
	radio       Radio
	obs         Observer
	log         *slog.Logger
	cfg         *Config
	current     *handle
	cooldown    *time.Timer
	cb          Callbacks
	urlBase     string
	pending     []func()
	wg          sync.WaitGroup
	seq         uint64
	cooldownSeq uint64
	mu          syncutil.Mutex
	state       State
	flushing    bool
	closed      bool
}

// NewController creates an idle controller. A nil cfg selects DefaultConfig.
func NewController(radio Radio, cfg *Config, opts ...Option) *Controller {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &Controller{
		radio: radio,
		cfg:   cfg,
		obs:   nopObserver{},
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StartRead arms a scan for a single tag.
func (c *Controller) StartRead() error {
	return c.start(ModeRead, nil)
}

// StartWrite writes a snapshot of r to the next tag. The record is copied
// before this returns, so later edits do not change the submitted payload.
// A record that fails validation or exceeds the payload limit is rejected
// with the returned error and the controller goes through Failed and
// Cooldown without touching the radio.
func (c *Controller) StartWrite(r thixx.Record) error {
	return c.start(ModeWrite, r.Clone())
}

func (c *Controller) start(mode Mode, record thixx.Record) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		c.log.Debug("nfc action rejected", "mode", mode.String(), "state", state.String())
		return fmt.Errorf("%w: %s", ErrBusy, state)
	}

	c.seq++
	ctx, cancel := context.WithCancelCause(context.Background())
	h := &handle{
		id:      c.seq,
		mode:    mode,
		ctx:     ctx,
		cancel:  cancel,
		record:  record,
		started: time.Now(),
	}
	c.current = h
	obs := c.obs
	c.emit(func() { obs.SessionStarted(mode) })
	c.setStateLocked(StateArming, "Preparing NFC reader")
	h.timeout = time.AfterFunc(c.cfg.ActionTimeout, func() { c.onTimeout(h) })

	var err error
	if mode == ModeWrite {
		err = thixx.Validate(record)
		if err == nil {
			h.payload, err = c.encode(record)
		}
		if err == nil {
			err = thixx.CheckPayload(h.payload, c.cfg.PayloadLimit)
		}
	}

	if err != nil {
		h.done = true
		c.completeLocked(h, nil, err)
	} else {
		c.wg.Add(1)
		if mode == ModeRead {
			go c.runRead(h)
		} else {
			go c.runWrite(h)
		}
	}
	c.mu.Unlock()
	c.flush()
	return err
}

func (c *Controller) encode(r thixx.Record) (string, error) {
	if c.urlBase == "" {
		return thixx.EncodeCompact(r), nil
	}
	payload, err := thixx.EncodeURL(r, c.urlBase)
	if err != nil {
		return "", fmt.Errorf("encode url: %w", err)
	}
	return payload, nil
}

// Cancel stops whatever the controller is doing and returns it to Idle at
// once, skipping grace period and cooldown. An interaction that had not yet
// produced a Result reports StateCancelled.
func (c *Controller) Cancel(reason string) {
	c.mu.Lock()
	c.cancelLocked(reason)
	c.mu.Unlock()
	c.flush()
}

// Close cancels any interaction and waits for its goroutines to exit. It
// must not be called from a callback.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancelLocked("controller closed")
	c.mu.Unlock()
	c.flush()

	c.wg.Wait()
	return nil
}

func (c *Controller) cancelLocked(reason string) {
	safeTimerStop(c.cooldown)
	c.cooldown = nil
	c.cooldownSeq++

	h := c.current
	c.current = nil
	if h != nil {
		safeTimerStop(h.timeout)
		safeTimerStop(h.grace)
		err := thixx.NewError(h.mode.String(), thixx.KindUserCancelled,
			fmt.Errorf("%w: %s", ErrCancelled, reason))
		h.done = true
		h.cancel(err)
		if !h.reported {
			c.log.Info("nfc session cancelled", "mode", h.mode.String(), "reason", reason)
			c.reportLocked(h, Result{
				Err:   err,
				State: StateCancelled,
				Kind:  thixx.KindUserCancelled,
			})
		}
	}

	if c.state != StateIdle {
		c.setStateLocked(StateIdle, reason)
	}
}

func (c *Controller) runRead(h *handle) {
	defer c.wg.Done()

	if !c.transition(h, StateScanning, "Hold a tag to the reader") {
		return
	}

	events, err := c.radio.Scan(h.ctx)
	if err != nil {
		if c.claim(h) {
			c.complete(h, nil, fmt.Errorf("start scan: %w", err))
		}
		return
	}

	select {
	case <-h.ctx.Done():
		// timeout or cancel owns the outcome
	case ev, ok := <-events:
		if !c.claim(h) {
			return
		}
		if !ok {
			c.complete(h, nil, fmt.Errorf("scan ended without a tag: %w", thixx.ErrIO))
			return
		}
		h.cancel(errReleased)
		if ev.Err != nil {
			c.complete(h, nil, fmt.Errorf("scan: %w", ev.Err))
			return
		}
		rec, decodeErr := decodeEvent(ev)
		c.log.Debug("tag read", "uid", ev.UID, "records", ev.Records, "bytes", len(ev.Text))
		c.complete(h, rec, decodeErr)
	}
}

func (c *Controller) runWrite(h *handle) {
	defer c.wg.Done()

	if !c.transition(h, StateWriting, "Hold a tag to the reader to write") {
		return
	}

	err := c.writeWithRetry(h)
	if !c.claim(h) {
		return
	}
	c.complete(h, nil, err)
	if err == nil {
		c.holdRadio(h)
	}
}

// writeWithRetry calls Radio.Write until it succeeds, the attempts run out
// or the error kind is not retryable. Only the last error is returned.
func (c *Controller) writeWithRetry(h *handle) error {
	maxAttempts := c.cfg.MaxWriteAttempts
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if !c.beginAttempt(h, attempt) {
			return err
		}

		err = c.radio.Write(h.ctx, h.payload)
		c.obs.WriteAttempt(attempt, err)
		if err == nil {
			return nil
		}
		if h.ctx.Err() != nil {
			return err
		}

		kind := thixx.ClassifyPayload(err, h.payload, c.cfg.PayloadLimit)
		if !kind.Retryable() || attempt == maxAttempts {
			return err
		}
		c.log.Debug("write attempt failed",
			"attempt", attempt, "max", maxAttempts, "kind", kind.String(), "error", err)

		if !sleepWithContext(h.ctx, c.cfg.RetryBackoff) {
			return err
		}
	}
	return err
}

func (c *Controller) beginAttempt(h *handle, attempt int) bool {
	c.mu.Lock()
	if c.current != h || h.done {
		c.mu.Unlock()
		return false
	}
	h.attempts = attempt
	if attempt > 1 {
		c.setStateLocked(StateWriting, fmt.Sprintf("Write attempt %d/%d", attempt, c.cfg.MaxWriteAttempts))
	}
	c.mu.Unlock()
	c.flush()
	return true
}

// holdRadio keeps a silent scan open during the grace period. A tag that is
// still in the field is detected again here and dropped.
func (c *Controller) holdRadio(h *handle) {
	if h.ctx.Err() != nil {
		return
	}
	events, err := c.radio.Scan(h.ctx)
	if err != nil {
		c.log.Debug("grace listener not started", "error", err)
		return
	}
	for {
		select {
		case <-h.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.log.Debug("discarded tag event during grace period", "uid", ev.UID)
		}
	}
}

func (c *Controller) onTimeout(h *handle) {
	c.mu.Lock()
	if c.current != h || h.done {
		c.mu.Unlock()
		return
	}
	h.done = true
	h.cancel(thixx.ErrTimeout)
	c.completeLocked(h, nil, thixx.NewError(h.mode.String(), thixx.KindTimeout, thixx.ErrTimeout))
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) endGrace(h *handle) {
	c.mu.Lock()
	if c.current != h || c.state != StateGracePeriod {
		c.mu.Unlock()
		return
	}
	h.cancel(errReleased)
	c.enterCooldownLocked()
	c.mu.Unlock()
	c.flush()
}

func (c *Controller) endCooldown(seq uint64) {
	c.mu.Lock()
	if c.cooldownSeq != seq || c.state != StateCooldown {
		c.mu.Unlock()
		return
	}
	c.cooldown = nil
	c.setStateLocked(StateIdle, "Ready")
	c.mu.Unlock()
	c.flush()
}

// transition moves h to state if h still owns the controller.
func (c *Controller) transition(h *handle, state State, msg string) bool {
	c.mu.Lock()
	if c.current != h || h.done {
		c.mu.Unlock()
		return false
	}
	c.setStateLocked(state, msg)
	c.mu.Unlock()
	c.flush()
	return true
}

// claim marks h as done on behalf of the caller. Only the first of the
// hardware path, the timeout and Cancel gets true.
func (c *Controller) claim(h *handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != h || h.done {
		return false
	}
	h.done = true
	safeTimerStop(h.timeout)
	return true
}

func (c *Controller) complete(h *handle, rec thixx.Record, err error) {
	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		return
	}
	c.completeLocked(h, rec, err)
	c.mu.Unlock()
	c.flush()
}

// completeLocked reports the outcome of a claimed handle and moves on to the
// grace period or the cooldown.
func (c *Controller) completeLocked(h *handle, rec thixx.Record, err error) {
	safeTimerStop(h.timeout)

	res := Result{Record: rec, State: StateSucceeded}
	if h.mode == ModeWrite {
		res.Record = h.record
	}
	if err != nil {
		res.Err = err
		res.Kind = thixx.ClassifyPayload(err, h.payload, c.cfg.PayloadLimit)
		res.State = terminalState(res.Kind)
	}

	c.setStateLocked(res.State, statusMessage(h.mode, res))
	if err != nil {
		c.log.Warn("nfc session failed", "session", h.id,
			"mode", h.mode.String(), "kind", res.Kind.String(), "attempts", h.attempts, "error", err)
	} else {
		c.log.Info("nfc session succeeded", "session", h.id, "mode", h.mode.String(), "attempts", h.attempts)
	}

	if res.State == StateSucceeded && h.mode == ModeRead && c.cb.OnRecordReady != nil {
		onRecord, clone := c.cb.OnRecordReady, rec.Clone()
		c.emit(func() { onRecord(clone) })
	}
	c.reportLocked(h, res)

	if res.State == StateSucceeded && h.mode == ModeWrite && c.cfg.GracePeriod > 0 {
		c.setStateLocked(StateGracePeriod, "Remove the tag")
		h.grace = time.AfterFunc(c.cfg.GracePeriod, func() { c.endGrace(h) })
		return
	}

	h.cancel(errReleased)
	c.enterCooldownLocked()
}

func (c *Controller) reportLocked(h *handle, res Result) {
	h.reported = true
	res.Mode = h.mode
	res.Payload = h.payload
	res.Attempts = h.attempts
	res.Duration = time.Since(h.started)
	if res.Record == nil && h.mode == ModeWrite {
		res.Record = h.record
	}

	obs, onResult := c.obs, c.cb.OnResult
	c.emit(func() { obs.SessionFinished(res) })
	if onResult != nil {
		c.emit(func() { onResult(res) })
	}
}

func (c *Controller) enterCooldownLocked() {
	c.current = nil
	if c.cfg.Cooldown <= 0 {
		c.setStateLocked(StateIdle, "Ready")
		return
	}
	c.cooldownSeq++
	seq := c.cooldownSeq
	c.setStateLocked(StateCooldown, "Please wait")
	c.cooldown = time.AfterFunc(c.cfg.Cooldown, func() { c.endCooldown(seq) })
}

func (c *Controller) setStateLocked(state State, msg string) {
	prev := c.state
	c.state = state
	c.log.Debug("nfc session state", "from", prev.String(), "to", state.String(), "message", msg)
	if onStatus := c.cb.OnStatus; onStatus != nil {
		c.emit(func() { onStatus(state, msg) })
	}
}

// emit queues a notification. Must be called with mu held.
func (c *Controller) emit(fn func()) {
	c.pending = append(c.pending, fn)
}

// flush delivers queued notifications outside the lock. Only one goroutine
// delivers at a time, which keeps notifications in order and lets callbacks
// re-enter the controller.
func (c *Controller) flush() {
	c.mu.Lock()
	if c.flushing {
		c.mu.Unlock()
		return
	}
	c.flushing = true
	for len(c.pending) > 0 {
		batch := c.pending
		c.pending = nil
		c.mu.Unlock()
		for _, fn := range batch {
			c.safeCall(fn)
		}
		c.mu.Lock()
	}
	c.flushing = false
	c.mu.Unlock()
}

func (c *Controller) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("session callback panicked", "panic", r)
		}
	}()
	fn()
}

func decodeEvent(ev TagEvent) (thixx.Record, error) {
	if !ev.HasText {
		if ev.Records == 0 {
			return nil, &thixx.FormatError{Reason: thixx.FormatEmpty}
		}
		return nil, &thixx.FormatError{Reason: thixx.FormatNoText}
	}
	rec, err := thixx.Decode(ev.Text)
	if err != nil {
		return rec, err
	}
	clean := thixx.Sanitize(rec)
	if len(clean) == 0 {
		return clean, &thixx.FormatError{Reason: thixx.FormatNoData, Detail: "no known fields"}
	}
	return clean, nil
}

func terminalState(kind thixx.ErrorKind) State {
	switch kind {
	case thixx.KindTimeout:
		return StateTimedOut
	case thixx.KindUserCancelled:
		return StateCancelled
	default:
		return StateFailed
	}
}

func statusMessage(mode Mode, res Result) string {
	if res.Err != nil {
		return thixx.Describe(res.Err)
	}
	if mode == ModeWrite {
		return "Tag written"
	}
	return "Tag read"
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
