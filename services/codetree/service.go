// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package codetree orchestrates the analysis pipeline: repository
// discovery, parallel per-file analysis, dependency resolution, and
// artifact assembly.
package codetree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/codetree/services/codetree/artifact"
	"github.com/AleutianAI/codetree/services/codetree/ast"
	"github.com/AleutianAI/codetree/services/codetree/discovery"
	"github.com/AleutianAI/codetree/services/codetree/graph"
)

// Service runs the code tree pipeline.
//
// Description:
//
//	The pipeline has four statically ordered stages. Discovery produces
//	the inventory; per-file analysis runs in parallel with each worker
//	writing into its own result slot; resolution waits for every slot
//	(any file may be a resolution target for any other); assembly merges
//	everything into the artifact. Only discovery can fail the run —
//	every per-file problem degrades to a diagnostic carried in the
//	artifact.
//
// Thread Safety: Safe for concurrent BuildCodeTree calls.
type Service struct{}

// NewService creates a pipeline service.
func NewService() *Service {
	return &Service{}
}

// analysisSlot is one file's analysis outcome. Each worker writes exactly
// one slot; slots are read only after the errgroup barrier.
type analysisSlot struct {
	result *ast.ParseResult
	runErr string
}

// BuildCodeTree runs the full pipeline for the configured target root.
//
// Outputs:
//   - *artifact.Artifact: the complete artifact. Never nil on success.
//   - error: *discovery.DiscoveryError when the root is unusable, a
//     context error when the run is canceled, or a write error when
//     Config.OutputPath is set and cannot be written. Nothing else is
//     fatal.
func (s *Service) BuildCodeTree(ctx context.Context, cfg Config) (*artifact.Artifact, error) {
	ctx, span := startPipelineSpan(ctx, cfg.TargetRoot)
	defer span.End()

	start := time.Now()

	repo, err := discovery.NewScanner(cfg.scannerOptions()...).Scan(ctx, cfg.TargetRoot)
	if err != nil {
		recordPipelineMetrics(time.Since(start), nil, err)
		return nil, err
	}

	slots, err := s.analyzeAll(ctx, repo, cfg.workerCount())
	if err != nil {
		recordPipelineMetrics(time.Since(start), nil, err)
		return nil, err
	}

	analyses := make([]graph.FileAnalysis, len(repo.Files))
	for i, f := range repo.Files {
		analyses[i] = graph.FileAnalysis{File: f}
		if slots[i].result != nil {
			analyses[i].References = slots[i].result.References
		}
	}
	dependencyGraph := graph.NewResolver(repo.Files).Resolve(ctx, analyses)

	inputs := make([]artifact.Input, len(repo.Files))
	var runErrors []string
	for _, skip := range repo.Skipped {
		runErrors = append(runErrors, fmt.Sprintf("%s: %s", skip.Path, skip.Reason))
	}
	for i, f := range repo.Files {
		inputs[i] = artifact.Input{File: f, Result: slots[i].result}
		if slots[i].runErr != "" {
			runErrors = append(runErrors, slots[i].runErr)
		}
	}

	art := artifact.Assemble(repo.Root, inputs, dependencyGraph, runErrors)

	if cfg.OutputPath != "" {
		if err := artifact.WriteFile(art, cfg.OutputPath); err != nil {
			recordPipelineMetrics(time.Since(start), art, err)
			return nil, err
		}
	}

	setPipelineSpanResult(span, len(art.Files), len(art.Dependencies), len(art.Errors))
	recordPipelineMetrics(time.Since(start), art, nil)

	slog.Info("code tree built",
		slog.String("root", art.RepoRoot),
		slog.Int("files", len(art.Files)),
		slog.Int("edges", len(art.Dependencies)),
		slog.Int("errors", len(art.Errors)),
		slog.Duration("elapsed", time.Since(start)))

	return art, nil
}

// analyzeAll reads and analyzes every inventory file in parallel. Each
// worker owns one slot, so no synchronization beyond the barrier is needed.
func (s *Service) analyzeAll(ctx context.Context, repo *discovery.Repository, workers int) ([]analysisSlot, error) {
	slots := make([]analysisSlot, len(repo.Files))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i, file := range repo.Files {
		i, file := i, file
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}

			full := filepath.Join(repo.Root, filepath.FromSlash(file.Path))
			content, err := os.ReadFile(full)
			if err != nil {
				slots[i].runErr = fmt.Sprintf("%s: read failed: %v", file.Path, err)
				return nil
			}

			parser := ast.ForLanguage(file.Language)
			if parser == nil {
				slots[i].runErr = fmt.Sprintf("%s: no analyzer for language %q", file.Path, file.Language)
				return nil
			}

			result, err := parser.Parse(egCtx, content, file.Path)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				// Oversized or undecodable content: keep the file in the
				// artifact with an empty tree and the diagnostic.
				slots[i].result = &ast.ParseResult{
					FilePath:   file.Path,
					Language:   file.Language,
					Symbols:    []*ast.Symbol{},
					References: []ast.Reference{},
					Diagnostic: err.Error(),
				}
				return nil
			}
			slots[i].result = result
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return slots, nil
}
