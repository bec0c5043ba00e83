package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/tokamak-network/ai-tokamak/internal/config"
)

// clearUmask sets the process umask to 0 so file permission assertions are
// deterministic. It restores the original umask when the test completes.
func clearUmask(t *testing.T) {
	t.Helper()
	old := syscall.Umask(0)
	t.Cleanup(func() { syscall.Umask(old) })
}

func TestRunInit_FreshDirectory(t *testing.T) {
	clearUmask(t)
	dir := t.TempDir()
	var buf bytes.Buffer

	if err := runInit(&buf, dir); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	for _, sub := range []string{"data", "skills"} {
		info, err := os.Stat(filepath.Join(dir, sub))
		if err != nil {
			t.Errorf("expected directory %s: %v", sub, err)
		} else if !info.IsDir() {
			t.Errorf("%s is not a directory", sub)
		}
	}

	cfgPath := filepath.Join(dir, "config.yaml")
	cfgInfo, err := os.Stat(cfgPath)
	if err != nil {
		t.Fatalf("config.yaml not created: %v", err)
	}
	if got := cfgInfo.Mode().Perm(); got != 0o600 {
		t.Errorf("config.yaml permissions = %o, want 0600", got)
	}
	data, _ := os.ReadFile(cfgPath)
	if !bytes.Equal(data, config.DefaultYAML) {
		t.Error("config.yaml does not match the embedded default")
	}

	for _, name := range []string{"tokamak-docs", "github-releases"} {
		p := filepath.Join(dir, "skills", name, "SKILL.md")
		info, err := os.Stat(p)
		if err != nil {
			t.Errorf("skill %s not installed: %v", name, err)
			continue
		}
		if got := info.Mode().Perm(); got != 0o644 {
			t.Errorf("%s permissions = %o, want 0644", p, got)
		}
	}

	if !strings.Contains(buf.String(), "✓") {
		t.Errorf("output missing progress marks: %q", buf.String())
	}
}

func TestRunInit_KeepsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("custom: true\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	skillPath := filepath.Join(dir, "skills", "tokamak-docs", "SKILL.md")
	if err := os.MkdirAll(filepath.Dir(skillPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(skillPath, []byte("mine"), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := runInit(&buf, dir); err != nil {
		t.Fatalf("runInit failed: %v", err)
	}

	tests := []struct {
		path string
		want string
	}{
		{cfgPath, "custom: true\n"},
		{skillPath, "mine"},
	}
	for _, tt := range tests {
		got, err := os.ReadFile(tt.path)
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != tt.want {
			t.Errorf("%s overwritten: %q", tt.path, got)
		}
	}
	if !strings.Contains(buf.String(), "exists, kept") {
		t.Errorf("output does not report kept files: %q", buf.String())
	}
}

func TestRunInit_ViaCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "fresh")
	var stdout, stderr bytes.Buffer
	if err := run(t.Context(), &stdout, &stderr, []string{"init", dir}); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config.yaml missing: %v", err)
	}
}
