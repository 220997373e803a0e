// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package render

import (
	"fmt"
	"math"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/gfx/internal/parallel"
)

// DefaultSoftwareMaxTexture is the texture edge limit of SoftwareBackend.
const DefaultSoftwareMaxTexture = 8192

// SoftwareStats counts the work a SoftwareBackend has executed.
type SoftwareStats struct {
	Clears    int
	Binds     int
	Draws     int
	Triangles int
	Uploads   int
	Flushes   int
}

// SoftwareBackend is a CPU implementation of Backend drawing into a
// PixmapTarget.
//
// It rasterizes triangles with nearest-neighbor texture sampling, a
// top-left fill rule, optional float32 depth and 8-bit stencil planes and the same blend
// equations as BlendMode.State. It exists as the reference for GPU
// backends and for headless use.
type SoftwareBackend struct {
	target     *PixmapTarget
	depth      []float32
	stencil    []uint8
	buffers    map[BufferID][]byte
	textures   map[TextureID]*softwareTexture
	nextID     uint32
	state      PipelineState
	uniforms   Uniforms
	maxTexture int
	stats      SoftwareStats

	pool *parallel.Pool // nil rasterizes on the caller's goroutine
	tris [][3]screenVertex
}

type softwareTexture struct {
	width, height int
	pix           []byte
}

// NewSoftwareBackend creates a backend rendering into target.
func NewSoftwareBackend(target *PixmapTarget) *SoftwareBackend {
	return &SoftwareBackend{
		target:     target,
		buffers:    make(map[BufferID][]byte),
		textures:   make(map[TextureID]*softwareTexture),
		uniforms:   Uniforms{Transform: PixelOrtho(target.Width(), target.Height())},
		maxTexture: DefaultSoftwareMaxTexture,
	}
}

// SetMaxTextureSize overrides the reported texture limit.
func (b *SoftwareBackend) SetMaxTextureSize(n int) {
	b.maxTexture = n
}

// SetWorkers rasterizes each draw on n goroutines, each owning a band of
// target rows. Triangles keep their submission order within a band, so
// the output is identical to sequential rendering. n <= 1 turns the
// workers off.
func (b *SoftwareBackend) SetWorkers(n int) {
	if b.pool != nil {
		b.pool.Close()
		b.pool = nil
	}
	if n > 1 {
		b.pool = parallel.NewPool(n)
	}
}

// Destroy stops the rasterization workers.
func (b *SoftwareBackend) Destroy() {
	if b.pool != nil {
		b.pool.Close()
		b.pool = nil
	}
}

// Target returns the color target.
func (b *SoftwareBackend) Target() *PixmapTarget {
	return b.target
}

// Stats returns the work counters.
func (b *SoftwareBackend) Stats() SoftwareStats {
	return b.stats
}

// ResetStats zeroes the work counters.
func (b *SoftwareBackend) ResetStats() {
	b.stats = SoftwareStats{}
}

// LiveBuffers returns the number of buffers not yet destroyed.
func (b *SoftwareBackend) LiveBuffers() int { return len(b.buffers) }

// LiveTextures returns the number of textures not yet destroyed.
func (b *SoftwareBackend) LiveTextures() int { return len(b.textures) }

// TexturePixels returns the premultiplied RGBA contents of a texture.
func (b *SoftwareBackend) TexturePixels(id TextureID) ([]byte, int, int, bool) {
	t, ok := b.textures[id]
	if !ok {
		return nil, 0, 0, false
	}
	return t.pix, t.width, t.height, true
}

// Clear implements Backend.
func (b *SoftwareBackend) Clear(c *Color, depth *float32, stencil *uint32) error {
	b.stats.Clears++
	if c != nil {
		b.target.Fill(*c)
	}
	if depth != nil {
		b.ensureDepth()
		for i := range b.depth {
			b.depth[i] = *depth
		}
	}
	if stencil != nil {
		if n := b.target.Width() * b.target.Height(); len(b.stencil) != n {
			b.stencil = make([]uint8, n)
		}
		v := uint8(*stencil)
		for i := range b.stencil {
			b.stencil[i] = v
		}
	}
	return nil
}

// StencilAt returns the stencil value at (x, y), zero before the first
// stencil clear or outside the target.
func (b *SoftwareBackend) StencilAt(x, y int) uint8 {
	w := b.target.Width()
	if x < 0 || y < 0 || x >= w || y >= b.target.Height() {
		return 0
	}
	if i := y*w + x; i < len(b.stencil) {
		return b.stencil[i]
	}
	return 0
}

func (b *SoftwareBackend) ensureDepth() {
	n := b.target.Width() * b.target.Height()
	if len(b.depth) != n {
		b.depth = make([]float32, n)
		for i := range b.depth {
			b.depth[i] = 1
		}
	}
}

func (b *SoftwareBackend) allocID() uint32 {
	b.nextID++
	return b.nextID
}

// CreateBuffer implements Backend.
func (b *SoftwareBackend) CreateBuffer(_ BufferKind, size int) (BufferID, error) {
	if size <= 0 {
		return 0, fmt.Errorf("render: invalid buffer size %d", size)
	}
	id := BufferID(b.allocID())
	b.buffers[id] = make([]byte, size)
	return id, nil
}

// UpdateBuffer implements Backend.
func (b *SoftwareBackend) UpdateBuffer(id BufferID, data []byte) error {
	buf, ok := b.buffers[id]
	if !ok {
		return fmt.Errorf("%w: buffer %d", ErrInvalidID, id)
	}
	if len(data) > len(buf) {
		return fmt.Errorf("%w: %d > %d", ErrBufferOverflow, len(data), len(buf))
	}
	copy(buf, data)
	b.stats.Uploads++
	return nil
}

// DestroyBuffer implements Backend.
func (b *SoftwareBackend) DestroyBuffer(id BufferID) {
	delete(b.buffers, id)
}

// CreateTexture implements Backend.
func (b *SoftwareBackend) CreateTexture(desc TextureDescriptor, pixels []byte) (TextureID, error) {
	if desc.Format != gputypes.TextureFormatRGBA8Unorm && desc.Format != gputypes.TextureFormatUndefined {
		return 0, &UnsupportedFormatError{Width: desc.Width, Height: desc.Height, Format: desc.Format}
	}
	if desc.Width <= 0 || desc.Height <= 0 || desc.Width > b.maxTexture || desc.Height > b.maxTexture {
		return 0, &UnsupportedFormatError{Width: desc.Width, Height: desc.Height, Format: desc.Format, Limit: b.maxTexture}
	}
	t := &softwareTexture{
		width:  desc.Width,
		height: desc.Height,
		pix:    make([]byte, desc.Width*desc.Height*4),
	}
	if pixels != nil {
		if len(pixels) != len(t.pix) {
			return 0, fmt.Errorf("render: texture data is %d bytes, want %d", len(pixels), len(t.pix))
		}
		copy(t.pix, pixels)
	}
	id := TextureID(b.allocID())
	b.textures[id] = t
	b.stats.Uploads++
	return id, nil
}

// UpdateTexture implements Backend.
func (b *SoftwareBackend) UpdateTexture(id TextureID, x, y, w, h int, pixels []byte) error {
	t, ok := b.textures[id]
	if !ok {
		return fmt.Errorf("%w: texture %d", ErrInvalidID, id)
	}
	if x < 0 || y < 0 || w < 0 || h < 0 || x+w > t.width || y+h > t.height {
		return fmt.Errorf("render: region %d,%d %dx%d outside texture %dx%d", x, y, w, h, t.width, t.height)
	}
	if len(pixels) < w*h*4 {
		return fmt.Errorf("render: region data is %d bytes, want %d", len(pixels), w*h*4)
	}
	for row := 0; row < h; row++ {
		dst := ((y+row)*t.width + x) * 4
		copy(t.pix[dst:dst+w*4], pixels[row*w*4:(row+1)*w*4])
	}
	b.stats.Uploads++
	return nil
}

// DestroyTexture implements Backend.
func (b *SoftwareBackend) DestroyTexture(id TextureID) {
	delete(b.textures, id)
}

// SetUniforms implements Backend.
func (b *SoftwareBackend) SetUniforms(u Uniforms) error {
	b.uniforms = u
	return nil
}

// BindState implements Backend.
func (b *SoftwareBackend) BindState(state PipelineState) error {
	if state.Texture != 0 {
		if _, ok := b.textures[state.Texture]; !ok {
			return fmt.Errorf("%w: texture %d", ErrInvalidID, state.Texture)
		}
	}
	b.state = state
	b.stats.Binds++
	return nil
}

// Flush implements Backend. Software draws complete synchronously.
func (b *SoftwareBackend) Flush() error {
	b.stats.Flushes++
	return nil
}

// Capabilities implements Backend.
func (b *SoftwareBackend) Capabilities() Capabilities {
	return Capabilities{Name: "software", MaxTextureSize: b.maxTexture, DepthBuffer: true, StencilBuffer: true}
}

// TargetSize implements Backend.
func (b *SoftwareBackend) TargetSize() (int, int) {
	return b.target.Width(), b.target.Height()
}

// screenVertex is a vertex after projection to pixel space.
type screenVertex struct {
	x, y, z float32
	u, v    float32
	color   [4]float32 // premultiplied
}

// Draw implements Backend.
func (b *SoftwareBackend) Draw(vertices, indices BufferID, firstIndex, count, baseVertex int) error {
	vb, ok := b.buffers[vertices]
	if !ok {
		return fmt.Errorf("%w: vertex buffer %d", ErrInvalidID, vertices)
	}
	ib, ok := b.buffers[indices]
	if !ok {
		return fmt.Errorf("%w: index buffer %d", ErrInvalidID, indices)
	}
	if (firstIndex+count)*IndexSize > len(ib) {
		return fmt.Errorf("%w: index range %d+%d", ErrBufferOverflow, firstIndex, count)
	}
	var tex *softwareTexture
	if b.state.Texture != 0 {
		tex = b.textures[b.state.Texture]
	}
	if b.state.DepthTest {
		b.ensureDepth()
	}
	nverts := len(vb) / VertexSize
	b.stats.Draws++
	b.tris = b.tris[:0]
	for i := 0; i+2 < count; i += 3 {
		var tri [3]screenVertex
		for k := 0; k < 3; k++ {
			idx := int(DecodeIndex(ib, firstIndex+i+k)) + baseVertex
			if idx < 0 || idx >= nverts {
				return fmt.Errorf("%w: vertex index %d", ErrBufferOverflow, idx)
			}
			tri[k] = b.project(DecodeVertex(vb, idx))
		}
		b.tris = append(b.tris, tri)
	}
	b.stats.Triangles += len(b.tris)

	h := b.target.Height()
	if b.pool == nil || len(b.tris) == 0 {
		for _, tri := range b.tris {
			b.rasterize(tri, tex, 0, h)
		}
		return nil
	}
	bands := parallel.Bands(h, b.pool.Workers())
	b.pool.Run(len(bands), func(i int) {
		for _, tri := range b.tris {
			b.rasterize(tri, tex, bands[i][0], bands[i][1])
		}
	})
	return nil
}

func (b *SoftwareBackend) project(v Vertex) screenVertex {
	x, y, z, w := b.uniforms.Transform.Transform(v.X, v.Y, v.Z)
	if w != 0 {
		x, y, z = x/w, y/w, z/w
	}
	width, height := float32(b.target.Width()), float32(b.target.Height())
	c := Color{v.R, v.G, v.B, v.A}.Premultiplied()
	return screenVertex{
		x:     (x + 1) / 2 * width,
		y:     (1 - y) / 2 * height,
		z:     z,
		u:     v.U,
		v:     v.V,
		color: [4]float32{c.R, c.G, c.B, c.A},
	}
}

func edge(a, b screenVertex, px, py float32) float32 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// ownsEdge implements the tie-break for pixel centers on a shared edge.
// Adjacent triangles traverse a shared edge in opposite directions, so
// exactly one of them owns it.
func ownsEdge(a, b screenVertex) bool {
	dy := b.y - a.y
	return dy > 0 || (dy == 0 && b.x-a.x > 0)
}

// rasterize fills the pixels of t whose rows lie in [y0, y1).
func (b *SoftwareBackend) rasterize(t [3]screenVertex, tex *softwareTexture, y0, y1 int) {
	area := edge(t[0], t[1], t[2].x, t[2].y)
	if area == 0 {
		return
	}
	if area < 0 {
		t[1], t[2] = t[2], t[1]
		area = -area
	}
	w := b.target.Width()
	minX := clampInt(int(math.Floor(float64(min(t[0].x, t[1].x, t[2].x)))), 0, w)
	maxX := clampInt(int(math.Ceil(float64(max(t[0].x, t[1].x, t[2].x)))), 0, w)
	minY := clampInt(int(math.Floor(float64(min(t[0].y, t[1].y, t[2].y)))), y0, y1)
	maxY := clampInt(int(math.Ceil(float64(max(t[0].y, t[1].y, t[2].y)))), y0, y1)

	own := [3]bool{ownsEdge(t[1], t[2]), ownsEdge(t[2], t[0]), ownsEdge(t[0], t[1])}
	img := b.target.Image()

	for py := minY; py < maxY; py++ {
		cy := float32(py) + 0.5
		for px := minX; px < maxX; px++ {
			cx := float32(px) + 0.5
			w0 := edge(t[1], t[2], cx, cy)
			w1 := edge(t[2], t[0], cx, cy)
			w2 := edge(t[0], t[1], cx, cy)
			if !inside(w0, own[0]) || !inside(w1, own[1]) || !inside(w2, own[2]) {
				continue
			}
			l0, l1, l2 := w0/area, w1/area, w2/area
			pi := py*w + px
			if b.state.DepthTest {
				z := l0*t[0].z + l1*t[1].z + l2*t[2].z
				if z >= b.depth[pi] {
					continue
				}
				if b.state.DepthWrite {
					b.depth[pi] = z
				}
			}
			var src [4]float32
			for c := 0; c < 4; c++ {
				src[c] = l0*t[0].color[c] + l1*t[1].color[c] + l2*t[2].color[c]
			}
			if tex != nil {
				u := l0*t[0].u + l1*t[1].u + l2*t[2].u
				v := l0*t[0].v + l1*t[1].v + l2*t[2].v
				s := tex.sample(u, v)
				for c := 0; c < 4; c++ {
					src[c] *= s[c]
				}
			}
			off := img.PixOffset(px, py)
			dst := [4]float32{
				float32(img.Pix[off]) / 255,
				float32(img.Pix[off+1]) / 255,
				float32(img.Pix[off+2]) / 255,
				float32(img.Pix[off+3]) / 255,
			}
			out := b.state.Blend.Apply(src, dst)
			for c := 0; c < 4; c++ {
				img.Pix[off+c] = uint8(out[c]*255 + 0.5)
			}
		}
	}
}

func inside(w float32, owns bool) bool {
	return w > 0 || (w == 0 && owns)
}

func (t *softwareTexture) sample(u, v float32) [4]float32 {
	x := clampInt(int(u*float32(t.width)), 0, t.width-1)
	y := clampInt(int(v*float32(t.height)), 0, t.height-1)
	off := (y*t.width + x) * 4
	return [4]float32{
		float32(t.pix[off]) / 255,
		float32(t.pix[off+1]) / 255,
		float32(t.pix[off+2]) / 255,
		float32(t.pix[off+3]) / 255,
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var _ Backend = (*SoftwareBackend)(nil)
