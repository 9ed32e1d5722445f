// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metrics exposes Prometheus counters for the browser engine and
// serves them on a dedicated listener when enabled.
package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// BrowserMetrics counts listing and bulk-operation activity.
type BrowserMetrics struct {
	PagesLoaded        prometheus.Counter
	BulkOperationsRun  *prometheus.CounterVec
	BulkItemsSucceeded prometheus.Counter
	BulkItemsFailed    *prometheus.CounterVec
	RecoveryRounds     prometheus.Counter
	RecoveryRecovered  prometheus.Counter
	RecoveryExhausted  prometheus.Counter
	BulkDuration       prometheus.Histogram
}

// NewBrowserMetrics creates and registers the browser engine metrics.
func NewBrowserMetrics() *BrowserMetrics {
	return &BrowserMetrics{
		PagesLoaded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rdwatch_listing_pages_loaded_total",
			Help: "Total number of listing pages fetched from the debrid API",
		}),
		BulkOperationsRun: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rdwatch_bulk_operations_total",
			Help: "Total number of bulk operations by type",
		}, []string{"type"}),
		BulkItemsSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rdwatch_bulk_items_succeeded_total",
			Help: "Total number of bulk operation targets that completed",
		}),
		BulkItemsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "rdwatch_bulk_items_failed_total",
			Help: "Total number of bulk operation targets that failed by failure kind",
		}, []string{"kind"}),
		RecoveryRounds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rdwatch_recovery_rounds_total",
			Help: "Total number of recovery retry rounds executed",
		}),
		RecoveryRecovered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rdwatch_recovery_recovered_total",
			Help: "Total number of targets recovered by retry rounds",
		}),
		RecoveryExhausted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "rdwatch_recovery_exhausted_total",
			Help: "Total number of targets still failed after the retry budget",
		}),
		BulkDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "rdwatch_bulk_operation_duration_seconds",
			Help:    "Time spent running bulk operations end to end",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Server serves the Prometheus scrape endpoint on its own listener.
type Server struct {
	httpServer *http.Server
}

func NewServer(host string, port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &Server{
		httpServer: &http.Server{
			Addr:              net.JoinHostPort(host, fmt.Sprintf("%d", port)),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// ListenAndServe blocks serving scrapes until the listener fails or the
// server shuts down.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("Starting metrics server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
