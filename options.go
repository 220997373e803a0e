// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"log/slog"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/gogpu/gfx/text"
)

// Option configures a Context during creation.
//
// Example:
//
//	ctx, err := gfx.New(gpu,
//	    gfx.WithAtlasSize(1024),
//	    gfx.WithCircleSegments(48),
//	)
type Option func(*options)

// options holds optional configuration for Context creation.
type options struct {
	atlasSize      int
	maxAtlasSize   int
	atlasPadding   int
	circleSegments int
	defaultFont    []byte
	rasterizer     text.Rasterizer
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		atlasSize:    text.DefaultAtlasSize,
		maxAtlasSize: text.DefaultMaxAtlasSize,
		atlasPadding: text.DefaultAtlasPadding,
		defaultFont:  goregular.TTF,
	}
}

// WithAtlasSize sets the initial edge of each font atlas texture.
func WithAtlasSize(n int) Option {
	return func(o *options) {
		o.atlasSize = n
	}
}

// WithMaxAtlasSize caps font atlas growth. The backend's texture limit
// applies as well.
func WithMaxAtlasSize(n int) Option {
	return func(o *options) {
		o.maxAtlasSize = n
	}
}

// WithAtlasPadding sets the gap between glyphs in the atlas.
func WithAtlasPadding(n int) Option {
	return func(o *options) {
		o.atlasPadding = n
	}
}

// WithCircleSegments sets the tessellation of circles drawn by canvases
// created from the context.
func WithCircleSegments(n int) Option {
	return func(o *options) {
		o.circleSegments = n
	}
}

// WithDefaultFont replaces the Go Regular default font with TTF or OTF
// data. Passing nil disables the default font; DrawText then requires an
// explicit font.
func WithDefaultFont(data []byte) Option {
	return func(o *options) {
		o.defaultFont = data
	}
}

// WithRasterizer replaces the glyph rasterizer used by the font atlas.
func WithRasterizer(r text.Rasterizer) Option {
	return func(o *options) {
		o.rasterizer = r
	}
}

// WithLogger installs l as the package logger, like calling SetLogger.
//
// The logger is process-wide: every package of the module logs through it,
// so a later session created WithLogger redirects the logs of sessions that
// already exist. Sessions created without WithLogger leave it unchanged.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}
