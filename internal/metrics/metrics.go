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

// Package metrics exports session telemetry to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ZaparooProject/thixx/session"
)

// Observer implements session.Observer with Prometheus collectors.
type Observer struct {
	started  *prometheus.CounterVec
	finished *prometheus.CounterVec
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   prometheus.Gauge
}

var _ session.Observer = (*Observer)(nil)

// NewObserver creates the collectors and registers them with reg.
func NewObserver(reg prometheus.Registerer) (*Observer, error) {
	o := &Observer{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thixx_sessions_started_total",
			Help: "NFC interactions started, by mode.",
		}, []string{"mode"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thixx_sessions_finished_total",
			Help: "NFC interactions finished, by mode, terminal state and error kind.",
		}, []string{"mode", "state", "kind"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thixx_write_attempts_total",
			Help: "Tag write attempts, by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "thixx_session_duration_seconds",
			Help:    "Time from start to terminal state.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"mode"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thixx_sessions_active",
			Help: "Interactions currently running.",
		}),
	}

	for _, c := range []prometheus.Collector{o.started, o.finished, o.attempts, o.duration, o.active} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// SessionStarted implements session.Observer.
func (o *Observer) SessionStarted(mode session.Mode) {
	o.started.WithLabelValues(mode.String()).Inc()
	o.active.Inc()
}

// WriteAttempt implements session.Observer.
func (o *Observer) WriteAttempt(_ int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	o.attempts.WithLabelValues(outcome).Inc()
}

// SessionFinished implements session.Observer.
func (o *Observer) SessionFinished(res session.Result) {
	kind := "none"
	if res.Err != nil {
		kind = res.Kind.String()
	}
	o.finished.WithLabelValues(res.Mode.String(), res.State.String(), kind).Inc()
	o.duration.WithLabelValues(res.Mode.String()).Observe(res.Duration.Seconds())
	o.active.Dec()
}

// Server serves /metrics and /healthz.
type Server struct {
	srv *http.Server
	log *slog.Logger
}

// NewServer returns a server for g on addr. It does not listen until Start.
func NewServer(addr string, g prometheus.Gatherer, log *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &Server{
		srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log: log,
	}
}

// Handler returns the server's mux.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start listens in the background.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server exited", "addr", s.srv.Addr, "error", err)
		}
	}()
}

// Shutdown stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
