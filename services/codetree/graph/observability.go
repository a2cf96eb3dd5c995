// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// resolverTracerName is the OTel tracer name for dependency resolution.
const resolverTracerName = "codetree.graph"

var (
	// resolveDuration measures full-batch resolution time.
	resolveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "codetree",
			Subsystem: "graph",
			Name:      "resolve_duration_seconds",
			Help:      "Duration of dependency resolution in seconds.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// edgesResolved counts produced edges by confidence.
	edgesResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codetree",
			Subsystem: "graph",
			Name:      "edges_resolved_total",
			Help:      "Total dependency edges produced, by confidence.",
		},
		[]string{"confidence"},
	)

	// referencesWithoutEdge counts external and unresolved outcomes.
	referencesWithoutEdge = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "codetree",
			Subsystem: "graph",
			Name:      "references_without_edge_total",
			Help:      "Total references that produced no edge, by outcome.",
		},
		[]string{"outcome"},
	)
)

// startResolveSpan begins an OTel span for a resolution batch.
func startResolveSpan(ctx context.Context, files, analyses int) (context.Context, oteltrace.Span) {
	return otel.Tracer(resolverTracerName).Start(ctx, "graph.Resolve",
		oteltrace.WithAttributes(
			attribute.Int("inventory_files", files),
			attribute.Int("analyses", analyses),
		),
	)
}

// setResolveSpanResult records the resolution outcome on the span.
func setResolveSpanResult(span oteltrace.Span, edges int) {
	span.SetAttributes(attribute.Int("edges", edges))
}

// recordResolveMetrics records Prometheus metrics for a completed batch.
func recordResolveMetrics(duration time.Duration, g *Graph) {
	resolveDuration.Observe(duration.Seconds())
	if g == nil {
		return
	}
	for _, edge := range g.Edges {
		edgesResolved.WithLabelValues(string(edge.Confidence)).Inc()
	}
	for _, diag := range g.Diagnostics {
		referencesWithoutEdge.WithLabelValues("external").Add(float64(diag.ExternalCount))
		referencesWithoutEdge.WithLabelValues("unresolved").Add(float64(diag.UnresolvedCount))
	}
}
