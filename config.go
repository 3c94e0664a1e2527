package isorender

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config controls render loop and cache timing behavior.
type Config struct {
	// MaxRenderPasses bounds the render/await loop. When a tree still
	// registers new work on the final pass, the snapshot is produced from
	// whatever state has settled and flagged Incomplete.
	MaxRenderPasses int

	// PreRenderTimeout bounds the wait on externally supplied "must resolve
	// before first paint" work. On expiry rendering proceeds with whatever
	// state is available.
	PreRenderTimeout time.Duration

	// DefaultRequestTTL applies to cache reads that supply no TTL of their
	// own. Zero means entries never go stale once fetched.
	DefaultRequestTTL time.Duration

	// SnapshotTTL bounds how long a finalized snapshot may be served from
	// the shared snapshot cache, when one is configured.
	SnapshotTTL time.Duration
}

// DefaultConfig returns a config tuned for typical page trees.
func DefaultConfig() Config {
	return Config{
		MaxRenderPasses:   10,
		PreRenderTimeout:  5 * time.Second,
		DefaultRequestTTL: 0,
		SnapshotTTL:       30 * time.Second,
	}
}

// Validate ensures config values are safe.
func (c Config) Validate() error {
	if c.MaxRenderPasses <= 0 {
		return fmt.Errorf("MaxRenderPasses must be >0")
	}
	if c.PreRenderTimeout < 0 {
		return fmt.Errorf("PreRenderTimeout cannot be negative")
	}
	if c.DefaultRequestTTL < 0 {
		return fmt.Errorf("DefaultRequestTTL cannot be negative")
	}
	if c.SnapshotTTL < 0 {
		return fmt.Errorf("SnapshotTTL cannot be negative")
	}
	return nil
}

type rawConfig struct {
	MaxRenderPasses   *int    `yaml:"maxRenderPasses"`
	PreRenderTimeout  *string `yaml:"preRenderTimeout"`
	DefaultRequestTTL *string `yaml:"defaultRequestTTL"`
	SnapshotTTL       *string `yaml:"snapshotTTL"`
}

// LoadConfig reads a YAML config file, overlaying it on DefaultConfig.
// Durations use Go syntax ("250ms", "5s").
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if raw.MaxRenderPasses != nil {
		cfg.MaxRenderPasses = *raw.MaxRenderPasses
	}
	if err := overlayDuration(&cfg.PreRenderTimeout, raw.PreRenderTimeout, "preRenderTimeout"); err != nil {
		return cfg, err
	}
	if err := overlayDuration(&cfg.DefaultRequestTTL, raw.DefaultRequestTTL, "defaultRequestTTL"); err != nil {
		return cfg, err
	}
	if err := overlayDuration(&cfg.SnapshotTTL, raw.SnapshotTTL, "snapshotTTL"); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func overlayDuration(dst *time.Duration, src *string, field string) error {
	if src == nil {
		return nil
	}
	d, err := time.ParseDuration(*src)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}
