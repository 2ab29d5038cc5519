package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.ChunkMethod != "naive" {
		t.Fatalf("expected default chunk method naive, got %q", cfg.ChunkMethod)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("expected default poll interval 5s, got %s", cfg.PollInterval)
	}
	if cfg.MaxWaitTime != 300*time.Second {
		t.Fatalf("expected default max wait 300s, got %s", cfg.MaxWaitTime)
	}
}

func TestLoadReadsDurationEnv(t *testing.T) {
	t.Setenv("RAGFLOW_POLL_INTERVAL_SECONDS", "2")
	t.Setenv("RAGFLOW_MAX_WAIT_SECONDS", "60")

	cfg := Load()

	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("expected 2s poll interval, got %s", cfg.PollInterval)
	}
	if cfg.MaxWaitTime != 60*time.Second {
		t.Fatalf("expected 60s max wait, got %s", cfg.MaxWaitTime)
	}
}

func TestLoadIgnoresInvalidDurationEnv(t *testing.T) {
	t.Setenv("RAGFLOW_POLL_INTERVAL_SECONDS", "not-a-number")

	cfg := Load()

	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("expected fallback poll interval, got %s", cfg.PollInterval)
	}
}

func TestLoadFileOverlaysValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "base_url: https://ragflow.internal\ndataset_id: ds-override\nminio:\n  bucket: contracts\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	base := Load()
	cfg, err := LoadFile(path, base)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.BaseURL != "https://ragflow.internal" {
		t.Fatalf("expected overridden base url, got %q", cfg.BaseURL)
	}
	if cfg.DatasetID != "ds-override" {
		t.Fatalf("expected overridden dataset id, got %q", cfg.DatasetID)
	}
	if cfg.Minio.Bucket != "contracts" {
		t.Fatalf("expected overridden bucket, got %q", cfg.Minio.Bucket)
	}
	// Fields absent from the file keep their env-derived values.
	if cfg.ChunkMethod != base.ChunkMethod {
		t.Fatalf("expected chunk method preserved, got %q", cfg.ChunkMethod)
	}
	if cfg.PollInterval != base.PollInterval {
		t.Fatalf("expected poll interval preserved, got %s", cfg.PollInterval)
	}
}

func TestLoadFileMissingFileFails(t *testing.T) {
	if _, err := LoadFile("/does/not/exist.yaml", Load()); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
