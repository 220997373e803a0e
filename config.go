// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the file form of the context options.
//
//	[atlas]
//	size = 1024
//	max_size = 4096
//	padding = 1
//
//	[canvas]
//	circle_segments = 48
//
//	[font]
//	default = "assets/Inter.ttf"
//
//	[log]
//	level = "debug"
//
// Zero values keep the defaults.
type Config struct {
	Atlas  AtlasConfig  `toml:"atlas"`
	Canvas CanvasConfig `toml:"canvas"`
	Font   FontConfig   `toml:"font"`
	Log    LogConfig    `toml:"log"`
}

// AtlasConfig configures the font atlas store.
type AtlasConfig struct {
	Size    int `toml:"size"`
	MaxSize int `toml:"max_size"`
	Padding int `toml:"padding"`
}

// CanvasConfig configures canvases created by the context.
type CanvasConfig struct {
	CircleSegments int `toml:"circle_segments"`
}

// FontConfig selects the default font.
type FontConfig struct {
	// Default is a path to a TTF or OTF file. Empty keeps Go Regular.
	Default string `toml:"default"`

	// Disable turns the default font off.
	Disable bool `toml:"disable"`
}

// LogConfig enables logging to stderr.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error". Empty keeps
	// logging off.
	Level string `toml:"level"`
}

// LoadConfig decodes a TOML configuration. Unknown keys are an error.
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return nil, fmt.Errorf("gfx: decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("gfx: unknown config keys: %s", strings.Join(keys, ", "))
	}
	return &cfg, nil
}

// LoadConfigFile reads and decodes the TOML file at path.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gfx: open config: %w", err)
	}
	defer f.Close()
	return LoadConfig(f)
}

// Options converts the configuration into context options. It reads the
// default font file when one is named.
func (c *Config) Options() ([]Option, error) {
	var opts []Option
	if c.Atlas.Size > 0 {
		opts = append(opts, WithAtlasSize(c.Atlas.Size))
	}
	if c.Atlas.MaxSize > 0 {
		opts = append(opts, WithMaxAtlasSize(c.Atlas.MaxSize))
	}
	if c.Atlas.Padding > 0 {
		opts = append(opts, WithAtlasPadding(c.Atlas.Padding))
	}
	if c.Canvas.CircleSegments > 0 {
		opts = append(opts, WithCircleSegments(c.Canvas.CircleSegments))
	}

	switch {
	case c.Font.Disable:
		opts = append(opts, WithDefaultFont(nil))
	case c.Font.Default != "":
		data, err := os.ReadFile(c.Font.Default)
		if err != nil {
			return nil, fmt.Errorf("gfx: read default font: %w", err)
		}
		opts = append(opts, WithDefaultFont(data))
	}

	if c.Log.Level != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
			return nil, fmt.Errorf("gfx: log level: %w", err)
		}
		opts = append(opts, WithLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))))
	}
	return opts, nil
}
