// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/image/font/gofont/gomono"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(`
[atlas]
size = 256
max_size = 1024
padding = 2

[canvas]
circle_segments = 12

[log]
level = "warn"
`))
	if err != nil {
		t.Fatalf("LoadConfig() = %v", err)
	}
	if cfg.Atlas.Size != 256 || cfg.Atlas.MaxSize != 1024 || cfg.Atlas.Padding != 2 {
		t.Errorf("atlas = %+v", cfg.Atlas)
	}
	if cfg.Canvas.CircleSegments != 12 {
		t.Errorf("circle_segments = %d", cfg.Canvas.CircleSegments)
	}

	opts, err := cfg.Options()
	if err != nil {
		t.Fatalf("Options() = %v", err)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.atlasSize != 256 || o.maxAtlasSize != 1024 || o.atlasPadding != 2 || o.circleSegments != 12 {
		t.Errorf("options = %+v", o)
	}
	if o.logger == nil {
		t.Error("log level did not install a logger")
	}
	if o.defaultFont == nil {
		t.Error("default font dropped without [font] disable")
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown key", "[atlas]\nsise = 3\n", "atlas.sise"},
		{"wrong type", "[atlas]\nsize = \"big\"\n", "decode config"},
		{"syntax", "[atlas\n", "decode config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(strings.NewReader(tt.doc))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("LoadConfig() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestConfigFontOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.ttf")
	if err := os.WriteFile(path, gomono.TTF, 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		font     FontConfig
		wantNil  bool
		wantData []byte
		wantErr  bool
	}{
		{name: "file", font: FontConfig{Default: path}, wantData: gomono.TTF},
		{name: "disable", font: FontConfig{Disable: true}, wantNil: true},
		{name: "missing", font: FontConfig{Default: filepath.Join(t.TempDir(), "none.ttf")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := (&Config{Font: tt.font}).Options()
			if tt.wantErr {
				if err == nil {
					t.Fatal("Options() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			o := defaultOptions()
			for _, opt := range opts {
				opt(&o)
			}
			if tt.wantNil && o.defaultFont != nil {
				t.Error("default font not disabled")
			}
			if tt.wantData != nil && len(o.defaultFont) != len(tt.wantData) {
				t.Errorf("default font is %d bytes, want %d", len(o.defaultFont), len(tt.wantData))
			}
		})
	}
}

func TestConfigBadLogLevel(t *testing.T) {
	if _, err := (&Config{Log: LogConfig{Level: "loud"}}).Options(); err == nil {
		t.Error("Options() accepted an unknown log level")
	}
}
