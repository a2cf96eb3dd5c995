// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ast

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// parserTracerName is the shared OTel tracer name for all analyzers.
const parserTracerName = "codetree.ast"

// Package-level Prometheus metrics for file analysis.
// Auto-registered via promauto so no explicit registry wiring is needed.
var (
	// parseDuration measures per-file analysis time.
	//
	// Labels:
	//   - language: "python", "java", "javascript", ...
	//   - status: "success" or "error"
	parseDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "codetree",
			Subsystem: "ast",
			Name:      "parse_duration_seconds",
			Help:      "Duration of per-file analysis in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"language", "status"},
	)

	// symbolsExtracted counts symbols extracted per language.
	symbolsExtracted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codetree",
			Subsystem: "ast",
			Name:      "symbols_extracted_total",
			Help:      "Total symbols extracted, by language.",
		},
		[]string{"language"},
	)

	// parseDiagnostics counts files that produced a parse diagnostic.
	parseDiagnostics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codetree",
			Subsystem: "ast",
			Name:      "parse_diagnostics_total",
			Help:      "Total files that produced a parse diagnostic.",
		},
		[]string{"language"},
	)
)

// startParseSpan begins an OTel span for a single file analysis.
func startParseSpan(ctx context.Context, language, filePath string, size int) (context.Context, oteltrace.Span) {
	return otel.Tracer(parserTracerName).Start(ctx, "ast.Parse",
		oteltrace.WithAttributes(
			attribute.String("language", language),
			attribute.String("file", filePath),
			attribute.Int("size_bytes", size),
		),
	)
}

// setParseSpanResult records the analysis outcome on the span.
func setParseSpanResult(span oteltrace.Span, symbols, references int, diagnostic string) {
	span.SetAttributes(
		attribute.Int("symbols", symbols),
		attribute.Int("references", references),
		attribute.Bool("diagnostic", diagnostic != ""),
	)
}

// recordParseMetrics records Prometheus metrics for a completed analysis.
func recordParseMetrics(language string, duration time.Duration, result *ParseResult, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	parseDuration.WithLabelValues(language, status).Observe(duration.Seconds())

	if result == nil {
		return
	}
	symbolsExtracted.WithLabelValues(language).Add(float64(countSymbols(result.Symbols)))
	if result.Diagnostic != "" {
		parseDiagnostics.WithLabelValues(language).Inc()
	}
}

// countSymbols counts all symbols in a tree, including children.
func countSymbols(syms []*Symbol) int {
	total := 0
	for _, sym := range syms {
		if sym == nil {
			continue
		}
		total += 1 + countSymbols(sym.Children)
	}
	return total
}
