// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import (
	"errors"
	"image"
	"sync"

	"github.com/gogpu/gfx/canvas"
	"github.com/gogpu/gfx/internal/logger"
	"github.com/gogpu/gfx/render"
	"github.com/gogpu/gfx/scene"
	"github.com/gogpu/gfx/text"
	"github.com/gogpu/gfx/texture"
)

// ErrClosed is returned by Context methods after Close.
var ErrClosed = errors.New("gfx: context is closed")

// asciiRunes is the glyph set pre-rasterized by LoadFont.
var asciiRunes = func() []rune {
	rs := make([]rune, 0, 0x7f-0x20)
	for r := rune(0x20); r < 0x7f; r++ {
		rs = append(rs, r)
	}
	return rs
}()

// Context is a rendering session over one shared GPU handle.
//
// It owns the font atlas store and texture registry that every canvas and
// scene created from it shares. Canvases and scenes are independent: each
// keeps its own geometry and is drawn explicitly, and the order of their
// Draw calls is the order they appear on screen.
//
// Context methods are safe for concurrent use. The canvases it creates are
// not.
type Context struct {
	gpu      *render.Handle
	atlas    *text.AtlasStore
	textures *texture.Registry
	opts     options
	font     *text.Font

	mu       sync.Mutex
	canvases map[*canvas.Canvas]struct{}
	scenes   map[*scene.Scene]struct{}
	closed   bool
}

// New creates a session bound to gpu. The context holds a reference to
// gpu until Close.
//
// Unless disabled with WithDefaultFont(nil), the Go Regular font is loaded
// as the default for DrawText.
func New(gpu *render.Handle, opts ...Option) (*Context, error) {
	if gpu == nil || gpu.Closed() {
		return nil, render.ErrContextUnavailable
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		SetLogger(o.logger)
	}

	c := &Context{
		gpu:  gpu.Retain(),
		opts: o,
		atlas: text.NewAtlasStore(gpu, text.AtlasConfig{
			InitialSize: o.atlasSize,
			MaxSize:     o.maxAtlasSize,
			Padding:     o.atlasPadding,
			Rasterizer:  o.rasterizer,
		}),
		textures: texture.NewRegistry(gpu),
		canvases: make(map[*canvas.Canvas]struct{}),
		scenes:   make(map[*scene.Scene]struct{}),
	}
	if o.defaultFont != nil {
		f, err := c.LoadFont(o.defaultFont)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.font = f
	}
	caps := gpu.Capabilities()
	logger.Get().Info("gfx: session created", "backend", caps.Name, "max_texture", caps.MaxTextureSize)
	return c, nil
}

// Handle returns the shared GPU handle.
func (c *Context) Handle() *render.Handle { return c.gpu }

// Atlas returns the shared font atlas store.
func (c *Context) Atlas() *text.AtlasStore { return c.atlas }

// Textures returns the shared texture registry.
func (c *Context) Textures() *texture.Registry { return c.textures }

// DefaultFont returns the font used by canvases that draw text without one.
// It is nil when the context was created with WithDefaultFont(nil).
func (c *Context) DefaultFont() *text.Font { return c.font }

// NewCanvas creates an empty canvas using the session's default font and
// circle tessellation. opts are applied after those defaults.
func (c *Context) NewCanvas(opts ...canvas.Option) (*canvas.Canvas, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	all := make([]canvas.Option, 0, len(opts)+3)
	if c.font != nil {
		all = append(all, canvas.WithFont(c.font))
	}
	if c.opts.circleSegments > 0 {
		all = append(all, canvas.WithCircleSegments(c.opts.circleSegments))
	}
	all = append(all, opts...)
	// OnClose goes last; caller options must not replace it.
	all = append(all, canvas.OnClose(c.forgetCanvas))
	cv := canvas.New(c.gpu, c.atlas, all...)
	c.canvases[cv] = struct{}{}
	return cv, nil
}

// NewScene creates an empty 3D scene.
func (c *Context) NewScene() (*scene.Scene, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	s := scene.New(c.gpu, scene.OnClose(c.forgetScene))
	c.scenes[s] = struct{}{}
	return s, nil
}

func (c *Context) forgetCanvas(cv *canvas.Canvas) {
	c.mu.Lock()
	delete(c.canvases, cv)
	c.mu.Unlock()
}

func (c *Context) forgetScene(s *scene.Scene) {
	c.mu.Lock()
	delete(c.scenes, s)
	c.mu.Unlock()
}

// LoadFont parses TTF or OTF data and pre-rasterizes printable ASCII at
// text.DefaultPopulateSize. Malformed data fails with *render.DecodeError.
func (c *Context) LoadFont(data []byte) (*text.Font, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	f, err := text.ParseFont(data)
	if err != nil {
		return nil, err
	}
	if err := c.atlas.Populate(f, asciiRunes, text.DefaultPopulateSize); err != nil {
		return nil, err
	}
	logger.Get().Debug("gfx: font loaded", "font", f.Name(), "glyphs", len(asciiRunes))
	return f, nil
}

// LoadTexture decodes PNG, JPEG, GIF, BMP, TIFF or WebP data and registers
// it as a texture.
func (c *Context) LoadTexture(data []byte) (*texture.Handle, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	return c.textures.Load(data)
}

// RegisterTexture uploads premultiplied RGBA8 pixels as a texture.
func (c *Context) RegisterTexture(pixels []byte, width, height int) (*texture.Handle, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	return c.textures.Register(pixels, width, height)
}

// RegisterImage uploads img as a texture.
func (c *Context) RegisterImage(img image.Image) (*texture.Handle, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	return c.textures.RegisterImage(img)
}

// Clear clears the render target. A nil color, depth or stencil leaves
// that buffer untouched. Clearing is usually the first thing done each frame, before
// any canvas or scene is drawn.
func (c *Context) Clear(color *render.Color, depth *float32, stencil *uint32) error {
	sess, err := c.gpu.Lock()
	if err != nil {
		return err
	}
	defer sess.Unlock()
	return sess.Backend().Clear(color, depth, stencil)
}

// Flush submits work the backend has buffered.
func (c *Context) Flush() error {
	sess, err := c.gpu.Lock()
	if err != nil {
		return err
	}
	defer sess.Unlock()
	return sess.Backend().Flush()
}

// Stats reports shared resource usage.
func (c *Context) Stats() Stats {
	c.mu.Lock()
	canvases, scenes := len(c.canvases), len(c.scenes)
	c.mu.Unlock()
	return Stats{
		Canvases: canvases,
		Scenes:   scenes,
		Atlas:    c.atlas.Stats(),
		Textures: c.textures.Stats(),
	}
}

// Stats is a snapshot of session resources.
type Stats struct {
	// Canvases and Scenes count those created by the context and not yet
	// closed.
	Canvases int
	Scenes   int
	Atlas    text.AtlasStats
	Textures texture.Stats
}

func (c *Context) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close releases every canvas and scene created by the context, then the
// font atlases and textures, and finally its reference to the GPU handle.
// Close is idempotent.
func (c *Context) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	canvases, scenes := c.canvases, c.scenes
	c.canvases, c.scenes = nil, nil
	c.mu.Unlock()

	for cv := range canvases {
		if err := cv.Close(); err != nil {
			logger.Get().Warn("gfx: canvas close failed", "err", err)
		}
	}
	for s := range scenes {
		s.Close()
	}
	c.atlas.Close()
	c.textures.Close()
	c.gpu.Release()
	logger.Get().Info("gfx: session closed")
}
