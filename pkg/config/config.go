// Package config loads engine settings from a TOML or YAML file, falling
// back to defaults when no file exists.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/airlift/pkg/errors"
	"github.com/arthur-debert/airlift/pkg/paths"
)

// DefaultDiskSpaceMargin is the free-space floor required on the target
// volume before any staging is created.
const DefaultDiskSpaceMargin = 1 << 30 // 1 GiB

// DefaultRetryRounds bounds per-file re-extraction attempts during
// verification.
const DefaultRetryRounds = 3

// DefaultProgressRate is the ceiling on progress events per second.
const DefaultProgressRate = 60

// Config holds the engine's tunable settings.
type Config struct {
	// ScratchRoot is where staging areas are created.
	ScratchRoot string `toml:"scratch_root" yaml:"scratch_root"`

	// DiskSpaceMargin is the minimum free bytes required on the target
	// volume before an install starts.
	DiskSpaceMargin int64 `toml:"disk_space_margin" yaml:"disk_space_margin"`

	// RetryRounds is the number of re-extraction rounds for files that
	// fail hash verification.
	RetryRounds int `toml:"retry_rounds" yaml:"retry_rounds"`

	// VerifyByDefault enables hash verification for tasks that don't
	// specify otherwise.
	VerifyByDefault bool `toml:"verify_by_default" yaml:"verify_by_default"`

	// ProgressRate is the maximum progress events emitted per second.
	ProgressRate int `toml:"progress_rate" yaml:"progress_rate"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ScratchRoot:     paths.DefaultScratchRoot(),
		DiskSpaceMargin: DefaultDiskSpaceMargin,
		RetryRounds:     DefaultRetryRounds,
		VerifyByDefault: true,
		ProgressRate:    DefaultProgressRate,
	}
}

// Load reads a config file, picking the parser from the file extension.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, errors.ErrConfigLoad, "reading config %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		return cfg, errors.Newf(errors.ErrConfigParse, "unsupported config format %q", filepath.Ext(path))
	}
	if err != nil {
		return cfg, errors.Wrapf(err, errors.ErrConfigParse, "parsing config %s", path)
	}

	return cfg.Normalized(), nil
}

// LoadDefault loads the config from the default XDG location. A missing
// file is not an error: defaults are returned.
func LoadDefault() (Config, error) {
	base := paths.DefaultConfigFile()
	candidates := []string{
		base,
		strings.TrimSuffix(base, ".toml") + ".yaml",
		strings.TrimSuffix(base, ".toml") + ".yml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Default(), nil
}

// Normalized fills zero-valued fields with defaults.
func (c Config) Normalized() Config {
	if c.ScratchRoot == "" {
		c.ScratchRoot = paths.DefaultScratchRoot()
	}
	if c.DiskSpaceMargin <= 0 {
		c.DiskSpaceMargin = DefaultDiskSpaceMargin
	}
	if c.RetryRounds <= 0 {
		c.RetryRounds = DefaultRetryRounds
	}
	if c.ProgressRate <= 0 {
		c.ProgressRate = DefaultProgressRate
	}
	return c
}
