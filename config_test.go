package isorender

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRenderPasses = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for zero pass cap")
	}

	cfg = DefaultConfig()
	cfg.PreRenderTimeout = -time.Second
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for negative timeout")
	}
}

func TestLoadConfigOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "isorender.yaml")
	body := "maxRenderPasses: 4\npreRenderTimeout: 250ms\ndefaultRequestTTL: 1m\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MaxRenderPasses != 4 {
		t.Fatalf("maxRenderPasses = %d, want 4", cfg.MaxRenderPasses)
	}
	if cfg.PreRenderTimeout != 250*time.Millisecond {
		t.Fatalf("preRenderTimeout = %v, want 250ms", cfg.PreRenderTimeout)
	}
	if cfg.DefaultRequestTTL != time.Minute {
		t.Fatalf("defaultRequestTTL = %v, want 1m", cfg.DefaultRequestTTL)
	}
	// untouched fields keep defaults
	if cfg.SnapshotTTL != DefaultConfig().SnapshotTTL {
		t.Fatalf("snapshotTTL = %v, want default", cfg.SnapshotTTL)
	}
}

func TestLoadConfigBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "isorender.yaml")
	if err := os.WriteFile(path, []byte("preRenderTimeout: soon\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected parse error for bad duration")
	}
}
