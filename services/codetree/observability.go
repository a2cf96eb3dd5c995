// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package codetree

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/codetree/services/codetree/artifact"
)

// pipelineTracerName is the OTel tracer name for full pipeline runs.
const pipelineTracerName = "codetree.pipeline"

var (
	// pipelineDuration measures end-to-end run time.
	pipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "codetree",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Duration of full pipeline runs in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 30, 120},
		},
		[]string{"status"},
	)

	// artifactsBuilt counts completed runs.
	artifactsBuilt = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "codetree",
			Subsystem: "pipeline",
			Name:      "artifacts_built_total",
			Help:      "Total artifacts assembled.",
		},
	)
)

// startPipelineSpan begins an OTel span for one pipeline run.
func startPipelineSpan(ctx context.Context, root string) (context.Context, oteltrace.Span) {
	return otel.Tracer(pipelineTracerName).Start(ctx, "codetree.BuildCodeTree",
		oteltrace.WithAttributes(
			attribute.String("root", root),
		),
	)
}

// setPipelineSpanResult records the run outcome on the span.
func setPipelineSpanResult(span oteltrace.Span, files, edges, runErrors int) {
	span.SetAttributes(
		attribute.Int("files", files),
		attribute.Int("edges", edges),
		attribute.Int("run_errors", runErrors),
	)
}

// recordPipelineMetrics records Prometheus metrics for a completed run.
func recordPipelineMetrics(duration time.Duration, art *artifact.Artifact, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	pipelineDuration.WithLabelValues(status).Observe(duration.Seconds())
	if art != nil && err == nil {
		artifactsBuilt.Inc()
	}
}
