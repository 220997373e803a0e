// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ebiten

import (
	"errors"
	"fmt"
	"image"
	"math"

	eb "github.com/hajimehoshi/ebiten/v2"

	"github.com/gogpu/gfx/render"
	"github.com/gogpu/gputypes"
)

// ErrNoTarget is returned when drawing before a destination image is set.
var ErrNoTarget = errors.New("ebiten: no destination image")

// DefaultMaxTextureSize bounds texture creation. Ebiten pages large images
// internally, so the limit only keeps atlases within a sane size.
const DefaultMaxTextureSize = 4096

// Stats counts work submitted to ebiten.
type Stats struct {
	Draws     int // DrawTriangles calls
	Triangles int
	Uploads   int // buffer and texture writes
}

// Backend implements render.Backend by drawing triangles into an ebiten
// image, usually the screen passed to Game.Draw.
//
// Vertex buffers live on the CPU and are transformed there, so the backend
// suits 2D canvases; it has no depth buffer and scenes draw in submission
// order.
type Backend struct {
	dst        *eb.Image
	white      *eb.Image // 3x3 opaque white, sampled at its center texel
	maxTexture int

	nextID   uint32
	buffers  map[render.BufferID][]byte
	textures map[render.TextureID]*eb.Image

	uniforms render.Uniforms
	state    render.PipelineState

	verts []eb.Vertex
	idx   []uint16
	stats Stats
}

var _ render.Backend = (*Backend)(nil)

// New creates a backend drawing into dst. A nil dst is allowed when the
// destination is only known per frame; call SetTarget before drawing.
func New(dst *eb.Image) *Backend {
	white := eb.NewImage(3, 3)
	white.Fill(image.White)
	return &Backend{
		dst:        dst,
		white:      white,
		maxTexture: DefaultMaxTextureSize,
		buffers:    make(map[render.BufferID][]byte),
		textures:   make(map[render.TextureID]*eb.Image),
		uniforms:   render.Uniforms{Transform: render.Identity()},
	}
}

// SetTarget changes the destination image.
func (b *Backend) SetTarget(dst *eb.Image) { b.dst = dst }

// SetMaxTextureSize changes the largest accepted texture edge.
func (b *Backend) SetMaxTextureSize(n int) { b.maxTexture = n }

// Stats returns the work counters.
func (b *Backend) Stats() Stats { return b.stats }

// Capabilities implements render.Backend.
func (b *Backend) Capabilities() render.Capabilities {
	return render.Capabilities{Name: "ebiten", MaxTextureSize: b.maxTexture}
}

// TargetSize implements render.Backend.
func (b *Backend) TargetSize() (int, int) {
	if b.dst == nil {
		return 0, 0
	}
	s := b.dst.Bounds().Size()
	return s.X, s.Y
}

// Clear implements render.Backend. There are no depth or stencil buffers
// to clear.
func (b *Backend) Clear(c *render.Color, _ *float32, _ *uint32) error {
	if c == nil {
		return nil
	}
	if b.dst == nil {
		return ErrNoTarget
	}
	b.dst.Fill(*c)
	return nil
}

func (b *Backend) allocID() uint32 {
	b.nextID++
	return b.nextID
}

// CreateBuffer implements render.Backend.
func (b *Backend) CreateBuffer(kind render.BufferKind, size int) (render.BufferID, error) {
	if size <= 0 {
		return 0, fmt.Errorf("ebiten: invalid %s buffer size %d", kind, size)
	}
	id := render.BufferID(b.allocID())
	b.buffers[id] = make([]byte, size)
	return id, nil
}

// UpdateBuffer implements render.Backend.
func (b *Backend) UpdateBuffer(id render.BufferID, data []byte) error {
	buf, ok := b.buffers[id]
	if !ok {
		return fmt.Errorf("ebiten: buffer %d: %w", id, render.ErrInvalidID)
	}
	if len(data) > len(buf) {
		return fmt.Errorf("ebiten: %d bytes into %d byte buffer: %w", len(data), len(buf), render.ErrBufferOverflow)
	}
	copy(buf, data)
	b.stats.Uploads++
	return nil
}

// DestroyBuffer implements render.Backend.
func (b *Backend) DestroyBuffer(id render.BufferID) {
	delete(b.buffers, id)
}

// CreateTexture implements render.Backend.
func (b *Backend) CreateTexture(desc render.TextureDescriptor, pixels []byte) (render.TextureID, error) {
	if desc.Format != gputypes.TextureFormatRGBA8Unorm && desc.Format != gputypes.TextureFormatUndefined {
		return 0, &render.UnsupportedFormatError{Width: desc.Width, Height: desc.Height, Format: desc.Format}
	}
	if desc.Width <= 0 || desc.Height <= 0 || desc.Width > b.maxTexture || desc.Height > b.maxTexture {
		return 0, &render.UnsupportedFormatError{Width: desc.Width, Height: desc.Height, Format: desc.Format, Limit: b.maxTexture}
	}
	if pixels != nil && len(pixels) != desc.Width*desc.Height*4 {
		return 0, fmt.Errorf("ebiten: texture data is %d bytes, want %d", len(pixels), desc.Width*desc.Height*4)
	}
	img := eb.NewImage(desc.Width, desc.Height)
	if pixels != nil {
		img.WritePixels(pixels)
		b.stats.Uploads++
	}
	id := render.TextureID(b.allocID())
	b.textures[id] = img
	return id, nil
}

// UpdateTexture implements render.Backend.
func (b *Backend) UpdateTexture(id render.TextureID, x, y, w, h int, pixels []byte) error {
	img, ok := b.textures[id]
	if !ok {
		return fmt.Errorf("ebiten: texture %d: %w", id, render.ErrInvalidID)
	}
	r := image.Rect(x, y, x+w, y+h)
	if w <= 0 || h <= 0 || !r.In(img.Bounds()) {
		return fmt.Errorf("ebiten: region %v outside texture %v", r, img.Bounds())
	}
	if len(pixels) < w*h*4 {
		return fmt.Errorf("ebiten: region data is %d bytes, want %d", len(pixels), w*h*4)
	}
	img.SubImage(r).(*eb.Image).WritePixels(pixels[:w*h*4])
	b.stats.Uploads++
	return nil
}

// DestroyTexture implements render.Backend.
func (b *Backend) DestroyTexture(id render.TextureID) {
	if img, ok := b.textures[id]; ok {
		img.Deallocate()
		delete(b.textures, id)
	}
}

// SetUniforms implements render.Backend.
func (b *Backend) SetUniforms(u render.Uniforms) error {
	b.uniforms = u
	return nil
}

// BindState implements render.Backend. Depth flags are ignored.
func (b *Backend) BindState(state render.PipelineState) error {
	if state.Shader != 0 {
		return fmt.Errorf("ebiten: shader %d: %w", state.Shader, render.ErrInvalidID)
	}
	if state.Texture != 0 {
		if _, ok := b.textures[state.Texture]; !ok {
			return fmt.Errorf("ebiten: texture %d: %w", state.Texture, render.ErrInvalidID)
		}
	}
	b.state = state
	return nil
}

// Draw implements render.Backend.
func (b *Backend) Draw(vertices, indices render.BufferID, firstIndex, count, baseVertex int) error {
	if b.dst == nil {
		return ErrNoTarget
	}
	vdata, ok := b.buffers[vertices]
	if !ok {
		return fmt.Errorf("ebiten: vertex buffer %d: %w", vertices, render.ErrInvalidID)
	}
	idata, ok := b.buffers[indices]
	if !ok {
		return fmt.Errorf("ebiten: index buffer %d: %w", indices, render.ErrInvalidID)
	}
	if firstIndex < 0 || count < 0 || (firstIndex+count)*render.IndexSize > len(idata) {
		return fmt.Errorf("ebiten: indices [%d,%d) outside %d byte buffer: %w",
			firstIndex, firstIndex+count, len(idata), render.ErrBufferOverflow)
	}
	if count < 3 {
		return nil
	}
	count -= count % 3

	src, srcRect := b.white, image.Rect(1, 1, 2, 2)
	if b.state.Texture != 0 {
		img, ok := b.textures[b.state.Texture]
		if !ok {
			return fmt.Errorf("ebiten: bound texture %d: %w", b.state.Texture, render.ErrInvalidID)
		}
		src, srcRect = img, img.Bounds()
	}

	var lo, hi int
	b.idx, lo, hi = indexRange(b.idx, idata, firstIndex, count, baseVertex)
	if lo < 0 || (hi+1)*render.VertexSize > len(vdata) {
		return fmt.Errorf("ebiten: vertices [%d,%d] outside %d byte buffer: %w",
			lo, hi, len(vdata), render.ErrBufferOverflow)
	}
	if hi-lo > math.MaxUint16 {
		return fmt.Errorf("ebiten: draw spans %d vertices", hi-lo+1)
	}

	w, h := b.TargetSize()
	b.verts = b.verts[:0]
	for i := lo; i <= hi; i++ {
		b.verts = append(b.verts, toScreen(render.DecodeVertex(vdata, i), b.uniforms.Transform, w, h, srcRect))
	}

	opts := &eb.DrawTrianglesOptions{
		ColorScaleMode: eb.ColorScaleModeStraightAlpha,
		Blend:          blendFor(b.state.Blend),
		Filter:         eb.FilterNearest,
	}
	for start := 0; start < len(b.idx); start += eb.MaxIndicesCount {
		end := min(start+eb.MaxIndicesCount, len(b.idx))
		b.dst.DrawTriangles(b.verts, b.idx[start:end], src, opts)
		b.stats.Draws++
	}
	b.stats.Triangles += count / 3
	return nil
}

// Flush implements render.Backend. Ebiten submits its command queue at the
// end of each frame, so there is nothing to do.
func (b *Backend) Flush() error { return nil }

// Destroy releases every texture image.
func (b *Backend) Destroy() {
	for id, img := range b.textures {
		img.Deallocate()
		delete(b.textures, id)
	}
	clear(b.buffers)
	b.white.Deallocate()
}
