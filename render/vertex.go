// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"encoding/binary"
	"math"

	"github.com/gogpu/gputypes"
)

// VertexSize is the encoded size of a Vertex in bytes.
const VertexSize = 36

// IndexSize is the encoded size of an index in bytes.
const IndexSize = 2

// Vertex is one corner of a triangle.
//
// Position is in the coordinate space of the draw's transform; UV is
// normalized texture space; color is straight-alpha RGBA in [0, 1].
type Vertex struct {
	X, Y, Z    float32
	U, V       float32
	R, G, B, A float32
}

// SetColor assigns c to the vertex color.
func (v *Vertex) SetColor(c Color) {
	v.R, v.G, v.B, v.A = c.R, c.G, c.B, c.A
}

// VertexLayout describes the encoded vertex format:
//
//	@location(0) position: vec3<f32>
//	@location(1) uv:       vec2<f32>
//	@location(2) color:    vec4<f32>
func VertexLayout() gputypes.VertexBufferLayout {
	return gputypes.VertexBufferLayout{
		ArrayStride: VertexSize,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: gputypes.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
			{Format: gputypes.VertexFormatFloat32x4, Offset: 20, ShaderLocation: 2},
		},
	}
}

// AppendVertices appends the little-endian encoding of vs to dst.
func AppendVertices(dst []byte, vs []Vertex) []byte {
	for i := range vs {
		v := &vs[i]
		for _, f := range [9]float32{v.X, v.Y, v.Z, v.U, v.V, v.R, v.G, v.B, v.A} {
			dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(f))
		}
	}
	return dst
}

// DecodeVertex reads the i-th vertex from encoded data.
func DecodeVertex(data []byte, i int) Vertex {
	b := data[i*VertexSize : (i+1)*VertexSize]
	f := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))
	}
	return Vertex{
		X: f(0), Y: f(4), Z: f(8),
		U: f(12), V: f(16),
		R: f(20), G: f(24), B: f(28), A: f(32),
	}
}

// AppendIndices appends the little-endian encoding of idx to dst.
func AppendIndices(dst []byte, idx []uint16) []byte {
	for _, i := range idx {
		dst = binary.LittleEndian.AppendUint16(dst, i)
	}
	return dst
}

// DecodeIndex reads the i-th index from encoded data.
func DecodeIndex(data []byte, i int) uint16 {
	return binary.LittleEndian.Uint16(data[i*IndexSize:])
}
