package main

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"examcore/pkg/domain"
)

func writeConfig(t *testing.T, name string, cfg any) {
	t.Helper()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// chdir changes into dir for the duration of the test, restoring the
// previous working directory on cleanup (t.Chdir requires Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restore chdir: %v", err)
		}
	})
}

func TestCLIAcceptsDefaultConfig(t *testing.T) {
	chdir(t, t.TempDir())
	writeConfig(t, "syncconfig.json", domain.DefaultSyncConfig())

	var stdout, stderr bytes.Buffer
	if code := cli(nil, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr %s)", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "passed") {
		t.Fatalf("unexpected stdout %q", stdout.String())
	}
}

func TestCLIRejectsBrokenConfigs(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*domain.SyncConfig)
		message string
	}{
		{"no enabled modules", func(c *domain.SyncConfig) { c.EnabledModules = nil }, "enabled_modules is empty"},
		{"unknown module", func(c *domain.SyncConfig) {
			c.EnabledModules = append(c.EnabledModules, domain.Module("payroll"))
		}, "unknown module"},
		{"duplicate module", func(c *domain.SyncConfig) {
			c.EnabledModules = append(c.EnabledModules, domain.ModuleExams)
		}, "listed twice"},
		{"self target", func(c *domain.SyncConfig) {
			c.SyncRules[domain.ModuleExams] = []domain.Module{domain.ModuleExams}
		}, "targets itself"},
		{"empty targets", func(c *domain.SyncConfig) {
			c.SyncRules[domain.ModuleExams] = nil
		}, "target list is empty"},
		{"zero batch size", func(c *domain.SyncConfig) { c.BatchSize = 0 }, "batch_size"},
		{"negative retries", func(c *domain.SyncConfig) { c.MaxRetries = -1 }, "max_retries"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			cfg := domain.DefaultSyncConfig()
			tc.mutate(&cfg)
			writeConfig(t, "syncconfig.json", cfg)

			var stdout, stderr bytes.Buffer
			if code := cli(nil, &stdout, &stderr); code != 1 {
				t.Fatalf("expected exit 1, got %d", code)
			}
			if !strings.Contains(stderr.String(), tc.message) {
				t.Fatalf("expected %q in stderr, got %q", tc.message, stderr.String())
			}
		})
	}
}

func TestCLIRejectsUnknownFieldsAndBadPaths(t *testing.T) {
	chdir(t, t.TempDir())
	if err := os.WriteFile("syncconfig.json", []byte(`{"enabled_modules":["exams"],"batch":5}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	var stdout, stderr bytes.Buffer
	if code := cli(nil, &stdout, &stderr); code != 1 {
		t.Fatalf("expected unknown field rejection, got %d", code)
	}

	stderr.Reset()
	if code := cli([]string{"-config", "/etc/syncconfig.json"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected absolute path rejection, got %d", code)
	}
	if !strings.Contains(stderr.String(), "absolute paths not allowed") {
		t.Fatalf("unexpected stderr %q", stderr.String())
	}

	stderr.Reset()
	if code := cli([]string{"-config", "../escape.json"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected traversal rejection, got %d", code)
	}
}

func TestCLIPrintDefault(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := cli([]string{"-print-default"}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr %s)", code, stderr.String())
	}
	var cfg domain.SyncConfig
	if err := json.Unmarshal(stdout.Bytes(), &cfg); err != nil {
		t.Fatalf("decode printed config: %v", err)
	}
	if !cfg.AutoSync || len(cfg.EnabledModules) == 0 {
		t.Fatalf("unexpected default config %+v", cfg)
	}
}
