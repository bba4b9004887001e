// Package config loads the optional holyc.json project file: include
// roots, default execution mode, default optimization level, and the
// strict/permissive default. Grounded on the teacher's
// internal/cli.LoadConfig/SaveConfig (cmd/orizon's common.go) - flat
// encoding/json over a struct, defaulted when the file is absent. CLI
// flags always take precedence over whatever this loads.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the shape of holyc.json.
type Config struct {
	IncludeRoots    []string `json:"include_roots"`
	DefaultMode     string   `json:"default_mode"`      // "jit" or "aot"
	DefaultOptLevel string   `json:"default_opt_level"` // "0".."3", "s", "z"
	Strict          bool     `json:"strict"`
}

// Default returns the configuration used when no holyc.json is present,
// matching spec.md §6.1's "--strict default is strict".
func Default() *Config {
	return &Config{
		DefaultMode:     "jit",
		DefaultOptLevel: "0",
		Strict:          true,
	}
}

// Load reads path (defaulting to "holyc.json" in the current directory
// when path is empty) and merges it over Default(). A missing file is
// not an error - it's the common case for a project with no
// holyc.json at all.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = "holyc.json"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes cfg to path as indented JSON, mirroring the teacher's
// Config.SaveConfig.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}

	return nil
}
