// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package discovery

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// scannerTracerName is the OTel tracer name for repository scans.
const scannerTracerName = "codetree.discovery"

var (
	// scanDuration measures full-repository scan time.
	scanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "codetree",
			Subsystem: "discovery",
			Name:      "scan_duration_seconds",
			Help:      "Duration of repository scans in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		},
		[]string{"status"},
	)

	// filesDiscovered counts inventory entries produced per scan.
	filesDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "codetree",
			Subsystem: "discovery",
			Name:      "files_discovered_total",
			Help:      "Total source files added to inventories.",
		},
	)

	// filesSkipped counts entries the scan saw but excluded.
	filesSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "codetree",
			Subsystem: "discovery",
			Name:      "files_skipped_total",
			Help:      "Total entries recorded as skipped during scans.",
		},
	)
)

// startScanSpan begins an OTel span for a repository scan.
func startScanSpan(ctx context.Context, root string) (context.Context, oteltrace.Span) {
	return otel.Tracer(scannerTracerName).Start(ctx, "discovery.Scan",
		oteltrace.WithAttributes(
			attribute.String("root", root),
		),
	)
}

// setScanSpanResult records the scan outcome on the span.
func setScanSpanResult(span oteltrace.Span, files, skipped int) {
	span.SetAttributes(
		attribute.Int("files", files),
		attribute.Int("skipped", skipped),
	)
}

// recordScanMetrics records Prometheus metrics for a completed scan.
func recordScanMetrics(duration time.Duration, repo *Repository, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	scanDuration.WithLabelValues(status).Observe(duration.Seconds())

	if repo == nil {
		return
	}
	filesDiscovered.Add(float64(len(repo.Files)))
	filesSkipped.Add(float64(len(repo.Skipped)))
}
