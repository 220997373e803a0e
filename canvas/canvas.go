// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package canvas

import (
	"errors"
	"fmt"
	"image"

	"github.com/chewxy/math32"

	"github.com/gogpu/gfx/batch"
	"github.com/gogpu/gfx/internal/logger"
	"github.com/gogpu/gfx/render"
	"github.com/gogpu/gfx/text"
	"github.com/gogpu/gfx/texture"
)

// Common errors returned by Canvas operations.
var (
	// ErrCanvasClosed is returned when operations are attempted on a closed canvas.
	ErrCanvasClosed = errors.New("canvas: canvas is closed")

	// ErrNoFont is returned by DrawText on a canvas without a default font.
	ErrNoFont = errors.New("canvas: no default font")

	// ErrNilTexture is returned when a nil texture handle is drawn.
	ErrNilTexture = errors.New("canvas: nil texture")
)

// Option configures a Canvas.
type Option func(*Canvas)

// WithFont sets the font used by DrawText.
func WithFont(f *text.Font) Option {
	return func(c *Canvas) {
		c.font = f
	}
}

// WithCircleSegments sets the tessellation of DrawCircle. Values below 3
// keep the default.
func WithCircleSegments(n int) Option {
	return func(c *Canvas) {
		if n >= 3 {
			c.segments = n
		}
	}
}

// OnClose registers fn to run once when the canvas is closed.
func OnClose(fn func(*Canvas)) Option {
	return func(c *Canvas) {
		c.onClose = fn
	}
}

// TextureParams controls DrawTextureEx.
type TextureParams struct {
	// DestW and DestH are the drawn size. Zero uses the source size.
	DestW, DestH float32

	// Source is the sub-rectangle of the texture to draw, in pixels.
	// The zero rectangle draws the whole texture.
	Source image.Rectangle

	// Rotation is in radians around (OriginX, OriginY), relative to the
	// destination's top-left corner.
	Rotation         float32
	OriginX, OriginY float32

	FlipX, FlipY bool
}

// Canvas records 2D drawing into batches and submits them on Draw.
//
// Drawing calls only append geometry; the GPU is touched by Draw alone,
// and by the font atlas when a glyph is seen for the first time. A canvas
// never clears itself: call Clear to start over, or keep drawing on top of
// what is there to accumulate content across frames.
//
// Canvases of one session share the GPU handle and the font atlas store.
// Calling Draw on several canvases in sequence layers them, the last one
// drawn on top.
//
// Canvas is NOT safe for concurrent use. Create one Canvas per goroutine,
// or use external synchronization.
type Canvas struct {
	gpu      *render.Handle
	atlas    *text.AtlasStore
	font     *text.Font
	segments int

	builder *batch.Builder
	blend   render.BlendMode
	camera  *render.Mat4

	// textures referenced by recorded batches, each retained once
	textures map[*texture.Handle]struct{}

	// reusable GPU buffers
	vb, ib         render.BufferID
	vbSize, ibSize int
	vdata, idata   []byte
	spans          []span

	closed  bool
	onClose func(*Canvas)
}

// span locates one batch inside the shared vertex and index buffers.
type span struct {
	baseVertex int
	firstIndex int
}

// New creates an empty canvas bound to the shared GPU handle and font
// atlas store. atlas may be nil for canvases that never draw text.
func New(gpu *render.Handle, atlas *text.AtlasStore, opts ...Option) *Canvas {
	c := &Canvas{
		gpu:      gpu,
		atlas:    atlas,
		segments: batch.DefaultCircleSegments,
		builder:  batch.NewBuilder(),
		textures: make(map[*texture.Handle]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetBlendMode sets the blend mode of subsequent draws.
func (c *Canvas) SetBlendMode(m render.BlendMode) {
	c.blend = m
}

// BlendMode returns the current blend mode.
func (c *Canvas) BlendMode() render.BlendMode {
	return c.blend
}

// SetCamera replaces the pixel projection used by Draw with m. A nil m
// restores the default projection, which maps pixels of the render target
// with the origin at the top-left corner.
func (c *Canvas) SetCamera(m *render.Mat4) {
	if m == nil {
		c.camera = nil
		return
	}
	cp := *m
	c.camera = &cp
}

// Font returns the font used by DrawText, or nil.
func (c *Canvas) Font() *text.Font {
	return c.font
}

// SetFont sets the font used by DrawText.
func (c *Canvas) SetFont(f *text.Font) {
	c.font = f
}

func (c *Canvas) emit(s batch.Shape) error {
	if c.closed {
		return ErrCanvasClosed
	}
	return c.builder.Emit(s, batch.RenderState{Blend: c.blend})
}

// DrawRectangle fills the rectangle at (x, y) of size w by h.
func (c *Canvas) DrawRectangle(x, y, w, h float32, color render.Color) error {
	return c.emit(batch.Rect{X: x, Y: y, W: w, H: h, Color: color})
}

// DrawRectangleLines outlines the rectangle with lines of the given
// thickness drawn inside its bounds.
func (c *Canvas) DrawRectangleLines(x, y, w, h, thickness float32, color render.Color) error {
	if c.closed {
		return ErrCanvasClosed
	}
	t := thickness
	if 2*t > w || 2*t > h {
		return c.DrawRectangle(x, y, w, h, color)
	}
	sides := [4]batch.Rect{
		{X: x, Y: y, W: w, H: t, Color: color},
		{X: x, Y: y + h - t, W: w, H: t, Color: color},
		{X: x, Y: y + t, W: t, H: h - 2*t, Color: color},
		{X: x + w - t, Y: y + t, W: t, H: h - 2*t, Color: color},
	}
	var v []render.Vertex
	var idx []uint16
	for _, s := range sides {
		v, idx = batch.Append(v, idx, s)
	}
	return c.builder.DrawShape(v, idx, batch.RenderState{Blend: c.blend})
}

// DrawCircle fills a circle.
func (c *Canvas) DrawCircle(x, y, radius float32, color render.Color) error {
	return c.emit(batch.Circle{X: x, Y: y, Radius: radius, Segments: c.segments, Color: color})
}

// DrawCircleLines outlines a circle with a ring of the given thickness.
func (c *Canvas) DrawCircleLines(x, y, radius, thickness float32, color render.Color) error {
	return c.emit(batch.Ring{X: x, Y: y, Radius: radius, Sides: c.segments, Thickness: thickness, Color: color})
}

// DrawLine draws a segment of the given thickness.
func (c *Canvas) DrawLine(x1, y1, x2, y2, thickness float32, color render.Color) error {
	return c.emit(batch.Line{X1: x1, Y1: y1, X2: x2, Y2: y2, Thickness: thickness, Color: color})
}

// DrawTriangle fills the triangle with corners p1, p2 and p3.
func (c *Canvas) DrawTriangle(p1, p2, p3 [2]float32, color render.Color) error {
	return c.emit(batch.Triangle{X1: p1[0], Y1: p1[1], X2: p2[0], Y2: p2[1], X3: p3[0], Y3: p3[1], Color: color})
}

// DrawPolygon fills a regular polygon. rotation is in degrees.
func (c *Canvas) DrawPolygon(x, y float32, sides int, radius, rotation float32, color render.Color) error {
	return c.emit(batch.Polygon{X: x, Y: y, Radius: radius, Sides: sides, Rotation: degToRad(rotation), Color: color})
}

// DrawPolygonLines outlines a regular polygon. rotation is in degrees.
func (c *Canvas) DrawPolygonLines(x, y float32, sides int, radius, rotation, thickness float32, color render.Color) error {
	return c.emit(batch.Ring{X: x, Y: y, Radius: radius, Sides: sides, Rotation: degToRad(rotation), Thickness: thickness, Color: color})
}

// DrawMesh appends caller-built geometry, optionally textured.
func (c *Canvas) DrawMesh(vertices []render.Vertex, indices []uint16, tex *texture.Handle) error {
	if c.closed {
		return ErrCanvasClosed
	}
	state := batch.RenderState{Blend: c.blend}
	if tex == nil || len(indices) == 0 {
		return c.builder.DrawShape(vertices, indices, state)
	}
	_, held := c.textures[tex]
	if err := c.retain(tex); err != nil {
		return err
	}
	state.Texture = tex.ID()
	if err := c.builder.DrawShape(vertices, indices, state); err != nil {
		if !held {
			c.drop(tex)
		}
		return err
	}
	return nil
}

// DrawTexture draws tex at its natural size with the top-left corner at
// (x, y), tinted by color. Use render.White for no tint.
func (c *Canvas) DrawTexture(tex *texture.Handle, x, y float32, color render.Color) error {
	return c.DrawTextureEx(tex, x, y, color, TextureParams{})
}

// DrawTextureEx draws a region of tex scaled, rotated or flipped.
//
// The canvas keeps a reference to tex until Clear or Close, so the texture
// stays alive while recorded batches use it.
func (c *Canvas) DrawTextureEx(tex *texture.Handle, x, y float32, color render.Color, p TextureParams) error {
	if c.closed {
		return ErrCanvasClosed
	}
	if tex == nil {
		return &render.ResourceError{Op: "draw", Resource: "texture", Err: ErrNilTexture}
	}
	src := p.Source
	if src.Empty() {
		src = image.Rect(0, 0, tex.Width(), tex.Height())
	}
	w, h := p.DestW, p.DestH
	if w == 0 {
		w = float32(src.Dx())
	}
	if h == 0 {
		h = float32(src.Dy())
	}
	tw, th := float32(tex.Width()), float32(tex.Height())
	u0, v0 := float32(src.Min.X)/tw, float32(src.Min.Y)/th
	u1, v1 := float32(src.Max.X)/tw, float32(src.Max.Y)/th
	if p.FlipX {
		u0, u1 = u1, u0
	}
	if p.FlipY {
		v0, v1 = v1, v0
	}
	if err := c.retain(tex); err != nil {
		return err
	}
	q := batch.Quad{
		X: x, Y: y, W: w, H: h,
		U0: u0, V0: v0, U1: u1, V1: v1,
		Rotation: p.Rotation,
		OriginX:  p.OriginX,
		OriginY:  p.OriginY,
		Color:    color,
	}
	return c.builder.Emit(q, batch.RenderState{Texture: tex.ID(), Blend: c.blend})
}

func (c *Canvas) retain(tex *texture.Handle) error {
	if _, ok := c.textures[tex]; ok {
		return nil
	}
	if _, err := tex.Retain(); err != nil {
		return &render.ResourceError{Op: "draw", Resource: fmt.Sprintf("texture %d", tex.ID()), Err: err}
	}
	c.textures[tex] = struct{}{}
	return nil
}

// DrawText draws s with the canvas font. (x, y) is the left end of the
// first baseline and size the font size in pixels.
func (c *Canvas) DrawText(s string, x, y, size float32, color render.Color) error {
	if c.font == nil {
		return &render.ResourceError{Op: "text", Resource: "font", Err: ErrNoFont}
	}
	return c.DrawTextEx(c.font, s, x, y, size, color)
}

// DrawTextEx draws s with font f.
func (c *Canvas) DrawTextEx(f *text.Font, s string, x, y, size float32, color render.Color) error {
	if c.closed {
		return ErrCanvasClosed
	}
	if c.atlas == nil {
		return &render.ResourceError{Op: "text", Resource: "atlas", Err: text.ErrStoreClosed}
	}
	return c.builder.DrawText(c.atlas, f, s, x, y, size, color, c.blend)
}

// MeasureText returns the extent of s laid out with f at size.
func MeasureText(f *text.Font, s string, size float32) (w, h float32, err error) {
	line, err := text.Layout(f, s, size)
	if err != nil {
		return 0, 0, err
	}
	return line.Width, line.Height, nil
}

// Clear discards every recorded batch and drops the texture references
// they held. Clear is idempotent.
func (c *Canvas) Clear() {
	c.builder.Reset()
	c.releaseTextures()
}

func (c *Canvas) releaseTextures() {
	for tex := range c.textures {
		c.drop(tex)
	}
}

// drop releases the canvas's reference to tex.
func (c *Canvas) drop(tex *texture.Handle) {
	if err := tex.Release(); err != nil {
		logger.Get().Warn("canvas: texture release failed", "texture", tex.ID(), "err", err)
	}
	delete(c.textures, tex)
}

// Len returns the number of recorded batches.
func (c *Canvas) Len() int {
	return c.builder.Len()
}

// Batches returns the recorded batches in submission order.
func (c *Canvas) Batches() []*batch.DrawBatch {
	return c.builder.Batches()
}

// Draw submits every recorded batch, in order, to the GPU.
//
// The handle is locked once for the whole canvas. All vertices and indices
// go up in one upload each; state is rebound only where it changes between
// consecutive batches. Draw does not clear the canvas, so calling it again
// produces the same output. On error the batches are left intact.
func (c *Canvas) Draw() error {
	if c.closed {
		return ErrCanvasClosed
	}
	batches := c.builder.Batches()
	if len(batches) == 0 {
		return nil
	}
	c.resolveAtlas(batches)
	c.encode(batches)

	sess, err := c.gpu.Lock()
	if err != nil {
		return err
	}
	defer sess.Unlock()
	be := sess.Backend()

	if err := c.ensureBuffers(be); err != nil {
		return err
	}
	if err := be.UpdateBuffer(c.vb, c.vdata); err != nil {
		return fmt.Errorf("canvas: upload vertices: %w", err)
	}
	if err := be.UpdateBuffer(c.ib, c.idata); err != nil {
		return fmt.Errorf("canvas: upload indices: %w", err)
	}
	if err := be.SetUniforms(render.Uniforms{Transform: c.projection(be)}); err != nil {
		return err
	}

	var bound render.PipelineState
	binds := 0
	for i, b := range batches {
		state := b.State.Pipeline()
		if i == 0 || state != bound {
			if err := be.BindState(state); err != nil {
				return err
			}
			bound = state
			binds++
		}
		sp := c.spans[i]
		if err := be.Draw(c.vb, c.ib, sp.firstIndex, len(b.Indices), sp.baseVertex); err != nil {
			return err
		}
	}
	if err := be.Flush(); err != nil {
		return err
	}
	logger.Get().Debug("canvas: drawn", "batches", len(batches), "binds", binds, "vertices", len(c.vdata)/render.VertexSize)
	return nil
}

// resolveAtlas points batches at the current atlas texture when the atlas
// grew after they were recorded. Atlas rectangles keep their pixel
// position, so only normalized UVs need rescaling.
func (c *Canvas) resolveAtlas(batches []*batch.DrawBatch) {
	if c.atlas == nil {
		return
	}
	for _, b := range batches {
		if b.State.Texture == 0 {
			continue
		}
		id, scale := c.atlas.Resolve(b.State.Texture)
		if id == b.State.Texture {
			continue
		}
		b.State.Texture = id
		for i := range b.Vertices {
			b.Vertices[i].U *= scale
			b.Vertices[i].V *= scale
		}
	}
}

func (c *Canvas) encode(batches []*batch.DrawBatch) {
	c.vdata = c.vdata[:0]
	c.idata = c.idata[:0]
	c.spans = c.spans[:0]
	vertices, indices := 0, 0
	for _, b := range batches {
		c.spans = append(c.spans, span{baseVertex: vertices, firstIndex: indices})
		c.vdata = render.AppendVertices(c.vdata, b.Vertices)
		c.idata = render.AppendIndices(c.idata, b.Indices)
		vertices += len(b.Vertices)
		indices += len(b.Indices)
	}
	// GPU buffer writes are 4-byte aligned.
	if len(c.idata)%4 != 0 {
		c.idata = append(c.idata, 0, 0)
	}
}

// ensureBuffers (re)creates the vertex and index buffers when they are
// missing or too small. Capacity doubles to amortize growth.
func (c *Canvas) ensureBuffers(be render.Backend) error {
	var err error
	c.vb, c.vbSize, err = ensureBuffer(be, render.BufferVertex, c.vb, c.vbSize, len(c.vdata))
	if err != nil {
		return err
	}
	c.ib, c.ibSize, err = ensureBuffer(be, render.BufferIndex, c.ib, c.ibSize, len(c.idata))
	return err
}

func ensureBuffer(be render.Backend, kind render.BufferKind, id render.BufferID, size, need int) (render.BufferID, int, error) {
	if id != 0 && size >= need {
		return id, size, nil
	}
	newSize := 4096
	for newSize < need || newSize < 2*size {
		newSize *= 2
	}
	if id != 0 {
		be.DestroyBuffer(id)
	}
	nid, err := be.CreateBuffer(kind, newSize)
	if err != nil {
		return 0, 0, &render.ResourceError{Op: "create", Resource: kind.String() + " buffer", Err: err}
	}
	logger.Get().Debug("canvas: buffer allocated", "kind", kind.String(), "size", newSize)
	return nid, newSize, nil
}

func (c *Canvas) projection(be render.Backend) render.Mat4 {
	if c.camera != nil {
		return *c.camera
	}
	w, h := be.TargetSize()
	return render.PixelOrtho(w, h)
}

// Close releases the canvas's GPU buffers and texture references. The
// shared font atlas is not affected. Close is idempotent.
func (c *Canvas) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.onClose != nil {
		defer c.onClose(c)
	}
	c.Clear()
	if c.vb == 0 && c.ib == 0 {
		return nil
	}
	sess, err := c.gpu.Lock()
	if err != nil {
		// The backend is gone and took the buffers with it.
		c.vb, c.ib = 0, 0
		return nil
	}
	defer sess.Unlock()
	if c.vb != 0 {
		sess.Backend().DestroyBuffer(c.vb)
	}
	if c.ib != 0 {
		sess.Backend().DestroyBuffer(c.ib)
	}
	c.vb, c.ib = 0, 0
	return nil
}

func degToRad(d float32) float32 {
	return d * math32.Pi / 180
}
