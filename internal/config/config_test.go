package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_FullConfig(t *testing.T) {
	content := `
server:
  port: 9000
  title: "Reading Room"
viewers:
  - id: main
    rendering_mode: composite
    default_preset: ct-bone
  - id: compare
    rendering_mode: maximum-intensity
cache:
  preview_size_mb: 64
history:
  sqlite_path: "/data/voluscope/history.db"
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Server.Title != "Reading Room" {
		t.Errorf("unexpected title: %q", cfg.Server.Title)
	}
	if len(cfg.Viewers) != 2 {
		t.Fatalf("expected 2 viewers, got %d", len(cfg.Viewers))
	}
	if cfg.Viewers[0].ID != "main" || cfg.Viewers[0].DefaultPreset != "ct-bone" {
		t.Errorf("unexpected first viewer: %+v", cfg.Viewers[0])
	}
	if cfg.Viewers[1].RenderingMode != "maximum-intensity" {
		t.Errorf("unexpected second viewer mode: %q", cfg.Viewers[1].RenderingMode)
	}
	if cfg.Cache.PreviewSizeMB != 64 {
		t.Errorf("expected preview cache 64MB, got %d", cfg.Cache.PreviewSizeMB)
	}
	if cfg.History.SQLitePath != "/data/voluscope/history.db" {
		t.Errorf("unexpected sqlite path: %s", cfg.History.SQLitePath)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	content := `
server:
  port: 0
viewers:
  - id: main
`
	cfg := loadFromString(t, content)

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Viewers[0].RenderingMode != "composite" {
		t.Errorf("expected default rendering mode, got %q", cfg.Viewers[0].RenderingMode)
	}
	if cfg.Cache.PreviewSizeMB != 256 {
		t.Errorf("expected default preview cache 256, got %d", cfg.Cache.PreviewSizeMB)
	}
	if cfg.Render.PreviewSize != 512 {
		t.Errorf("expected default preview size 512, got %d", cfg.Render.PreviewSize)
	}
	if cfg.History.SQLitePath == "" {
		t.Error("expected a default sqlite path")
	}
}

func TestLoad_NoViewersSection(t *testing.T) {
	content := `
server:
  port: 8080
`
	cfg := loadFromString(t, content)

	if len(cfg.Viewers) != 1 || cfg.Viewers[0].ID != "main" {
		t.Errorf("expected single default viewer 'main', got %+v", cfg.Viewers)
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
}

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}
