package batch

import (
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gfx/render"
	"github.com/gogpu/gfx/text"
)

// MaxVertices is the most vertices a batch holds, the uint16 index range.
const MaxVertices = math.MaxUint16

// Builder errors.
var (
	// ErrIndexOutOfRange is returned when an index does not address a
	// vertex of the shape being appended.
	ErrIndexOutOfRange = errors.New("batch: index out of range")

	// ErrShapeTooLarge is returned for a single shape above MaxVertices.
	ErrShapeTooLarge = errors.New("batch: shape exceeds batch vertex limit")
)

// RenderState is the key batches merge on. It is comparable.
type RenderState struct {
	Texture render.TextureID // 0 = untextured
	Blend   render.BlendMode
	Shader  render.ShaderID // 0 = default program
}

// Pipeline returns the backend pipeline state for s in a 2D pass.
func (s RenderState) Pipeline() render.PipelineState {
	return render.PipelineState{Texture: s.Texture, Blend: s.Blend, Shader: s.Shader}
}

// DrawBatch is one draw call: vertices and indices sharing a RenderState.
// Indices address Vertices of the same batch.
type DrawBatch struct {
	State    RenderState
	Vertices []render.Vertex
	Indices  []uint16
}

// Stats summarizes a builder's contents.
type Stats struct {
	Batches  int
	Vertices int
	Indices  int
}

// Builder accumulates shapes into batches.
//
// Each shape is merged into the open batch when their RenderStates are
// equal; otherwise the open batch is finalized and a new one opened. Only
// the immediately preceding batch is considered, so submission order is
// preserved exactly: A, B, A yields three batches.
//
// Builder is not safe for concurrent use.
type Builder struct {
	batches []*DrawBatch // finalized, in creation order
	open    *DrawBatch

	// scratch buffers reused by Emit
	sv []render.Vertex
	si []uint16
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// DrawShape appends vertices and indices under state. Indices are local to
// vertices and are rebased onto the open batch.
func (b *Builder) DrawShape(vertices []render.Vertex, indices []uint16, state RenderState) error {
	if len(vertices) > MaxVertices {
		return fmt.Errorf("%w: %d vertices", ErrShapeTooLarge, len(vertices))
	}
	for _, idx := range indices {
		if int(idx) >= len(vertices) {
			return fmt.Errorf("%w: %d >= %d", ErrIndexOutOfRange, idx, len(vertices))
		}
	}
	if len(indices) == 0 {
		return nil
	}

	if b.open == nil || b.open.State != state || len(b.open.Vertices)+len(vertices) > MaxVertices {
		b.finalize()
		b.open = &DrawBatch{State: state}
	}
	base := uint16(len(b.open.Vertices))
	b.open.Vertices = append(b.open.Vertices, vertices...)
	for _, idx := range indices {
		b.open.Indices = append(b.open.Indices, base+idx)
	}
	return nil
}

// Emit tessellates shape and appends it under state.
func (b *Builder) Emit(shape Shape, state RenderState) error {
	b.sv, b.si = shape.tessellate(b.sv[:0], b.si[:0])
	return b.DrawShape(b.sv, b.si, state)
}

// DrawText lays out s with f at size and appends one textured quad per
// visible character, with (x, y) on the first baseline. Glyphs missing
// from the atlas are rasterized and uploaded through store. Either every
// glyph resolves and all quads are appended, or a *render.ResourceError is
// returned and the builder is unchanged.
func (b *Builder) DrawText(store *text.AtlasStore, f *text.Font, s string, x, y, size float32, color render.Color, blend render.BlendMode) error {
	if f == nil {
		return &render.ResourceError{Op: "text", Resource: "font", Err: text.ErrNilFont}
	}
	line, err := store.Layout(f, s, size)
	if err != nil {
		return &render.ResourceError{Op: "text", Resource: fmt.Sprintf("%q", s), Err: err}
	}
	runes := make([]rune, len(line.Positions))
	for i, p := range line.Positions {
		runes[i] = p.Rune
	}
	glyphs, view, err := store.Glyphs(f, runes, size)
	if err != nil {
		return err
	}

	state := RenderState{Texture: view.Texture, Blend: blend}
	for i, p := range line.Positions {
		g := glyphs[i]
		if g.Rect.Empty() {
			continue
		}
		u0, v0, u1, v1 := view.UV(g.Rect)
		q := Quad{
			X: x + p.X + g.OffsetX,
			Y: y + p.Y + g.OffsetY,
			W: float32(g.Rect.W),
			H: float32(g.Rect.H),
			U0: u0, V0: v0, U1: u1, V1: v1,
			Color: color,
		}
		if err := b.Emit(q, state); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) finalize() {
	if b.open != nil && len(b.open.Indices) > 0 {
		b.batches = append(b.batches, b.open)
	}
	b.open = nil
}

// Batches returns every batch in creation order, the open one last. The
// slice is valid until the next append or Reset.
func (b *Builder) Batches() []*DrawBatch {
	if b.open == nil {
		return b.batches
	}
	out := make([]*DrawBatch, 0, len(b.batches)+1)
	out = append(out, b.batches...)
	return append(out, b.open)
}

// Len returns the number of batches, the open one included.
func (b *Builder) Len() int {
	n := len(b.batches)
	if b.open != nil {
		n++
	}
	return n
}

// Stats returns batch, vertex and index counts.
func (b *Builder) Stats() Stats {
	var st Stats
	for _, batch := range b.Batches() {
		st.Batches++
		st.Vertices += len(batch.Vertices)
		st.Indices += len(batch.Indices)
	}
	return st
}

// Reset discards all batches.
func (b *Builder) Reset() {
	b.batches = b.batches[:0]
	b.open = nil
}
