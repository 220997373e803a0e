// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import "github.com/gogpu/gputypes"

// BufferID identifies a GPU buffer owned by a Backend. Zero is never valid.
type BufferID uint32

// TextureID identifies a GPU texture owned by a Backend. Zero means
// "untextured" wherever a texture is optional.
type TextureID uint32

// ShaderID selects a pipeline program. Zero is the default textured-color
// program every backend provides.
type ShaderID uint32

// BufferKind tells the backend how a buffer will be bound.
type BufferKind uint8

const (
	// BufferVertex holds encoded Vertex data.
	BufferVertex BufferKind = iota
	// BufferIndex holds little-endian uint16 indices.
	BufferIndex
)

func (k BufferKind) String() string {
	if k == BufferIndex {
		return "index"
	}
	return "vertex"
}

// TextureDescriptor describes a 2D texture to create.
type TextureDescriptor struct {
	// Label is an optional debug label.
	Label string

	// Width and Height are the texture size in pixels.
	Width  int
	Height int

	// Format is the pixel format. Backends accept RGBA8Unorm with
	// premultiplied alpha; anything else yields UnsupportedFormatError.
	Format gputypes.TextureFormat
}

// PipelineState is everything a backend binds between draws.
type PipelineState struct {
	Texture    TextureID
	Blend      BlendMode
	Shader     ShaderID
	DepthTest  bool
	DepthWrite bool
}

// Uniforms are the per-draw shader constants.
type Uniforms struct {
	// Transform maps vertex positions to clip space.
	Transform Mat4
}

// Capabilities reports backend limits.
type Capabilities struct {
	// Name identifies the backend in logs.
	Name string

	// MaxTextureSize is the largest texture edge in pixels.
	MaxTextureSize int

	// DepthBuffer reports whether DepthTest is honored.
	DepthBuffer bool

	// StencilBuffer reports whether Clear writes a stencil value.
	StencilBuffer bool
}

// Backend is the raw GPU command context the rendering core drives.
//
// A Backend is never used directly by canvases or scenes: all access goes
// through a Session obtained from Handle.Lock, which serializes submitters.
type Backend interface {
	// Clear clears the color target and, when non-nil, the depth and
	// stencil buffers. A nil argument leaves that buffer unchanged. Backends
	// without a stencil buffer ignore stencil.
	Clear(color *Color, depth *float32, stencil *uint32) error

	// CreateBuffer allocates a buffer of size bytes.
	CreateBuffer(kind BufferKind, size int) (BufferID, error)

	// UpdateBuffer writes data at offset zero. len(data) must not exceed the
	// buffer size.
	UpdateBuffer(id BufferID, data []byte) error

	// DestroyBuffer frees the buffer. Unknown ids are ignored.
	DestroyBuffer(id BufferID)

	// CreateTexture allocates a texture, optionally filled with pixels
	// (tightly packed, 4 bytes per pixel). A nil pixels slice leaves the
	// texture transparent.
	CreateTexture(desc TextureDescriptor, pixels []byte) (TextureID, error)

	// UpdateTexture writes a w*h region at (x, y).
	UpdateTexture(id TextureID, x, y, w, h int, pixels []byte) error

	// DestroyTexture frees the texture. Unknown ids are ignored.
	DestroyTexture(id TextureID)

	// SetUniforms sets the constants used by subsequent draws.
	SetUniforms(u Uniforms) error

	// BindState binds the pipeline state used by subsequent draws.
	BindState(state PipelineState) error

	// Draw submits count indices starting at firstIndex. Each index is
	// offset by baseVertex before it addresses the vertex buffer.
	Draw(vertices, indices BufferID, firstIndex, count, baseVertex int) error

	// Flush submits recorded work and waits until it is consumed, so buffers
	// may be rewritten afterwards.
	Flush() error

	// Capabilities reports backend limits.
	Capabilities() Capabilities

	// TargetSize returns the current render target size in pixels.
	TargetSize() (width, height int)
}
