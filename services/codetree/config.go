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
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/codetree/services/codetree/discovery"
)

// ConfigFileName is looked up in the target root for per-repository
// overrides. A missing file is not an error (zero-config works out of the
// box).
const ConfigFileName = "codetree.config.yaml"

// Config is the full configuration surface of a pipeline run.
//
// Thread Safety: Safe for concurrent reads after construction.
type Config struct {
	// TargetRoot is the repository root to analyze.
	TargetRoot string `yaml:"target_root"`

	// IncludeExtensions restricts the scan to the given extensions (with
	// or without leading dot). Empty means every supported extension.
	IncludeExtensions []string `yaml:"include_extensions"`

	// IgnorePatterns replaces the default ignore globs when non-empty.
	// Patterns match directory and file names as well as relative paths.
	IgnorePatterns []string `yaml:"ignore_patterns"`

	// MaxFileSizeBytes skips files above this size. Zero disables the
	// limit at discovery time; analyzers still enforce their own cap.
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes"`

	// Workers bounds concurrent file analysis. Zero means GOMAXPROCS.
	Workers int `yaml:"workers"`

	// UseGitignore also prunes paths matched by the root .gitignore.
	UseGitignore *bool `yaml:"use_gitignore"`

	// OutputPath is where the artifact JSON is written. Empty means the
	// caller handles output itself.
	OutputPath string `yaml:"output_path"`
}

// DefaultConfig returns the zero-config defaults for a target root.
func DefaultConfig(targetRoot string) Config {
	return Config{
		TargetRoot:       targetRoot,
		MaxFileSizeBytes: 2 * 1024 * 1024,
	}
}

// LoadConfig builds the effective configuration for a target root:
// defaults, overridden by codetree.config.yaml in the root when present.
//
// Outputs:
//   - Config: the merged configuration.
//   - error: non-nil only if the config file exists but has invalid YAML.
func LoadConfig(targetRoot string) (Config, error) {
	cfg := DefaultConfig(targetRoot)

	configPath := filepath.Join(targetRoot, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading %s: %w", ConfigFileName, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", ConfigFileName, err)
	}
	// The file cannot redirect the run at a different repository.
	cfg.TargetRoot = targetRoot
	return cfg, nil
}

// workerCount resolves the effective analysis parallelism.
func (c Config) workerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// scannerOptions translates the configuration into discovery options.
func (c Config) scannerOptions() []discovery.ScannerOption {
	var opts []discovery.ScannerOption
	if len(c.IncludeExtensions) > 0 {
		opts = append(opts, discovery.WithIncludeExtensions(c.IncludeExtensions))
	}
	if len(c.IgnorePatterns) > 0 {
		opts = append(opts, discovery.WithIgnorePatterns(c.IgnorePatterns))
	}
	if c.MaxFileSizeBytes > 0 {
		opts = append(opts, discovery.WithMaxFileSize(c.MaxFileSizeBytes))
	}
	if c.UseGitignore != nil {
		opts = append(opts, discovery.WithGitignore(*c.UseGitignore))
	}
	return opts
}
