package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "meshnet.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesSubstitutionAndValidates(t *testing.T) {
	path := writeConfig(t, `{
		"environ": {"HOME": "/srv/mesh"},
		"socket_type": "tcp",
		"bootstrap_nodes": ["dns:bootstrap.example"],
		"work_dir": "${HOME}/data",
		"log_level": "info",
		"bind_url": "mocknet://local"
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WorkDir != "/srv/mesh/data" {
		t.Fatalf("expected substitution to apply, got %s", cfg.WorkDir)
	}
	if cfg.BindURL != "mocknet://local" {
		t.Fatalf("unexpected bind url: %s", cfg.BindURL)
	}
}

func TestLoadRejectsMissingBindURL(t *testing.T) {
	path := writeConfig(t, `{"socket_type": "tcp"}`)
	if _, err := Load(path); err != ErrNoBindURL {
		t.Fatalf("expected ErrNoBindURL, got %v", err)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/meshnet.json"); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
