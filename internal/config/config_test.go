package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "holyc.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DefaultMode != "jit" || !cfg.Strict {
		t.Fatalf("expected default config, got %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holyc.json")
	body := `{"include_roots": ["./lib"], "default_mode": "aot", "strict": false}`

	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DefaultMode != "aot" || cfg.Strict {
		t.Fatalf("expected overridden config, got %+v", cfg)
	}

	if len(cfg.IncludeRoots) != 1 || cfg.IncludeRoots[0] != "./lib" {
		t.Fatalf("expected include roots to survive, got %+v", cfg.IncludeRoots)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holyc.json")

	cfg := Default()
	cfg.DefaultOptLevel = "2"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if reloaded.DefaultOptLevel != "2" {
		t.Fatalf("expected opt level to round trip, got %+v", reloaded)
	}
}

func TestLoadRejectsMalformedJson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holyc.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for malformed config json")
	}
}
