// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command codetree analyzes a repository and writes a versioned code tree
// artifact: per-file symbol trees plus the resolved dependency graph.
//
// Usage:
//
//	go run ./cmd/codetree /path/to/repo
//	go run ./cmd/codetree /path/to/repo --out artifacts/codetree.json
//	go run ./cmd/codetree /path/to/repo --ext .py --ext .java --workers 4
//	go run ./cmd/codetree /path/to/repo --ignore vendor --ignore "*.gen.js"
//
// A codetree.config.yaml in the target root supplies per-repository
// defaults; flags override it.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	codetree "github.com/AleutianAI/codetree/services/codetree"
	"github.com/AleutianAI/codetree/services/codetree/artifact"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		outPath     string
		extensions  []string
		ignores     []string
		maxFileSize int64
		workers     int
		noGitignore bool
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:          "codetree <target-root>",
		Short:        "Build a code tree artifact for a repository",
		Long:         "Scans a repository, analyzes Python, Java, and JS/TS sources, resolves the dependency graph, and writes one versioned JSON artifact.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			cfg, err := codetree.LoadConfig(args[0])
			if err != nil {
				return err
			}

			if len(extensions) > 0 {
				cfg.IncludeExtensions = extensions
			}
			if len(ignores) > 0 {
				cfg.IgnorePatterns = ignores
			}
			if cmd.Flags().Changed("max-file-size") {
				cfg.MaxFileSizeBytes = maxFileSize
			}
			if workers > 0 {
				cfg.Workers = workers
			}
			if noGitignore {
				off := false
				cfg.UseGitignore = &off
			}
			// The artifact goes to stdout unless a path is given, so the
			// service never writes; this command does.
			cfg.OutputPath = ""

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			art, err := codetree.NewService().BuildCodeTree(ctx, cfg)
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := artifact.WriteFile(art, outPath); err != nil {
					return err
				}
				slog.Info("artifact written", slog.String("path", outPath))
				return nil
			}

			data, err := artifact.Marshal(art)
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "write the artifact to this path instead of stdout")
	cmd.Flags().StringSliceVar(&extensions, "ext", nil, "restrict the scan to these extensions (repeatable)")
	cmd.Flags().StringSliceVar(&ignores, "ignore", nil, "replace the default ignore globs (repeatable)")
	cmd.Flags().Int64Var(&maxFileSize, "max-file-size", 0, "skip files larger than this many bytes")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent analysis workers (default: number of CPUs)")
	cmd.Flags().BoolVar(&noGitignore, "no-gitignore", false, "do not apply the root .gitignore")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}
