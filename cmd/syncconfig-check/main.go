// Command syncconfig-check validates a sync configuration JSON document
// against the module graph the engine accepts, and can print the default
// configuration as a starting point.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"examcore/pkg/domain"
)

var exitFunc = os.Exit

var knownModules = map[domain.Module]struct{}{
	domain.ModuleExams:     {},
	domain.ModuleAcademic:  {},
	domain.ModuleStudents:  {},
	domain.ModuleResources: {},
	domain.ModuleFinance:   {},
	domain.ModuleDocuments: {},
}

func main() {
	code := cli(os.Args[1:], os.Stdout, os.Stderr)
	exitFunc(code)
}

func cli(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("syncconfig-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var configPath string
	var printDefault bool
	fs.StringVar(&configPath, "config", "syncconfig.json", "path to sync configuration json")
	fs.BoolVar(&printDefault, "print-default", false, "print the default configuration and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if printDefault {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(domain.DefaultSyncConfig()); err != nil {
			fmt.Fprintf(stderr, "encode default configuration: %v\n", err)
			return 1
		}
		return 0
	}
	if err := run(configPath); err != nil {
		fmt.Fprintf(stderr, "Sync configuration validation failed: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, "Sync configuration validation passed.")
	return 0
}

// validatePath rejects absolute and path-traversing references so the tool
// only reads files inside the working tree.
func validatePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(p) {
		return "", fmt.Errorf("absolute paths not allowed: %s", p)
	}
	clean := filepath.Clean(p)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("path traversal not allowed: %s", p)
	}
	return clean, nil
}

func run(configPath string) error {
	safePath, err := validatePath(configPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(safePath) // #nosec G304: path validated by validatePath
	if err != nil {
		return fmt.Errorf("read configuration: %w", err)
	}
	var cfg domain.SyncConfig
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return fmt.Errorf("parse configuration: %w", err)
	}
	return validateConfig(cfg)
}

func validateConfig(cfg domain.SyncConfig) error {
	if len(cfg.EnabledModules) == 0 {
		return fmt.Errorf("enabled_modules is empty")
	}
	seen := make(map[domain.Module]struct{}, len(cfg.EnabledModules))
	for i, m := range cfg.EnabledModules {
		if _, ok := knownModules[m]; !ok {
			return fmt.Errorf("enabled_modules[%d]: unknown module %q", i, m)
		}
		if _, dup := seen[m]; dup {
			return fmt.Errorf("enabled_modules[%d]: module %q listed twice", i, m)
		}
		seen[m] = struct{}{}
	}
	for source, targets := range cfg.SyncRules {
		if _, ok := knownModules[source]; !ok {
			return fmt.Errorf("sync_rules: unknown source module %q", source)
		}
		if len(targets) == 0 {
			return fmt.Errorf("sync_rules[%s]: target list is empty", source)
		}
		targetSeen := make(map[domain.Module]struct{}, len(targets))
		for i, target := range targets {
			if _, ok := knownModules[target]; !ok {
				return fmt.Errorf("sync_rules[%s][%d]: unknown target module %q", source, i, target)
			}
			if target == source {
				return fmt.Errorf("sync_rules[%s][%d]: module targets itself", source, i)
			}
			if _, dup := targetSeen[target]; dup {
				return fmt.Errorf("sync_rules[%s][%d]: target %q listed twice", source, i, target)
			}
			targetSeen[target] = struct{}{}
		}
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", cfg.BatchSize)
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative, got %d", cfg.MaxRetries)
	}
	return nil
}
