package config

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store != StoreMemory || cfg.Session != "default" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Tick != 50*time.Millisecond || cfg.MaxIterations != 10000 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORYFLOW_PROGRAM", "story.hcl")
	t.Setenv("STORYFLOW_STORE", "sqlite")
	t.Setenv("STORYFLOW_STORE_DSN", "saves.db")
	t.Setenv("STORYFLOW_WAYPOINTS", "cellar,attic")
	t.Setenv("STORYFLOW_TICK", "10ms")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Program != "story.hcl" || cfg.Store != StoreSQLite || cfg.StoreDSN != "saves.db" {
		t.Errorf("unexpected config %+v", cfg)
	}
	if !reflect.DeepEqual(cfg.Waypoints, []string{"cellar", "attic"}) {
		t.Errorf("unexpected waypoints %v", cfg.Waypoints)
	}
	if cfg.Tick != 10*time.Millisecond {
		t.Errorf("unexpected tick %s", cfg.Tick)
	}
}

func TestLoadDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("STORYFLOW_SESSION=from-file\nSTORYFLOW_SEED=abc\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// Real environment wins over the file.
	t.Setenv("STORYFLOW_SEED", "from-env")
	t.Cleanup(func() { os.Unsetenv("STORYFLOW_SESSION") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Session != "from-file" {
		t.Errorf("expected session from dotenv, got %q", cfg.Session)
	}
	if cfg.Seed != "from-env" {
		t.Errorf("expected env to win, got %q", cfg.Seed)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"bad int", "STORYFLOW_MAX_ITERATIONS", "lots", "parse env:"},
		{"bad store", "STORYFLOW_STORE", "floppy", "unknown store"},
		{"missing dsn", "STORYFLOW_STORE", "redis", "requires STORYFLOW_STORE_DSN"},
		{"zero tick", "STORYFLOW_TICK", "0s", "tick must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{LogLevel: "warn", LogFormat: "json"}
	log := cfg.Logger(&buf)

	log.Info("hidden")
	log.Warn("shown", "block", "intro")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("expected info to be filtered at warn level")
	}
	if !strings.Contains(out, `"block":"intro"`) {
		t.Errorf("expected JSON output, got %q", out)
	}
}
