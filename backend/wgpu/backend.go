// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfx/internal/logger"
	"github.com/gogpu/gfx/render"
)

// Backend errors.
var (
	// ErrNoHalProvider is returned by NewFromProvider when the provider does
	// not expose its HAL device and queue.
	ErrNoHalProvider = errors.New("wgpu: provider does not expose a HAL device")

	// ErrNoTarget is returned when drawing before a render target is set.
	ErrNoTarget = errors.New("wgpu: no render target")

	// ErrBorrowedTarget is returned by ReadPixels when the backend renders
	// into a host-owned view.
	ErrBorrowedTarget = errors.New("wgpu: render target is not owned by the backend")
)

// Stats counts GPU work recorded and submitted by a Backend.
type Stats struct {
	Submits   int // command buffers submitted by Flush
	Passes    int // render passes begun
	Draws     int // indexed draw calls
	Pipelines int // pipeline variants created
	Uploads   int // buffer and texture writes
}

type gpuBuffer struct {
	buf  hal.Buffer
	kind render.BufferKind
	size int
}

type gpuTexture struct {
	tex           hal.Texture
	view          hal.TextureView
	group         hal.BindGroup
	width, height int
}

// Backend implements render.Backend on a WebGPU HAL device.
//
// Draws are recorded into one render pass and submitted by Flush. Writes
// that would change data already referenced by recorded draws (uniforms,
// buffers and textures) submit the pending pass first, so every draw sees
// the state it was recorded with.
//
// Like every render.Backend, a Backend is driven by one goroutine at a time
// through render.Handle.
type Backend struct {
	device hal.Device
	queue  hal.Queue
	opts   options

	width, height int
	format        gputypes.TextureFormat
	colorTex      hal.Texture // nil when rendering into a host view
	colorView     hal.TextureView
	depthTex      hal.Texture
	depthView     hal.TextureView

	pipes    *pipelineCache
	uniform  hal.Buffer
	uniforms render.Uniforms
	uniSet   bool
	white    render.TextureID

	nextID   uint32
	buffers  map[render.BufferID]*gpuBuffer
	textures map[render.TextureID]*gpuTexture

	rec   recorder
	stats Stats
}

var _ render.Backend = (*Backend)(nil)

// New creates a backend on device and queue. Unless WithTargetView is
// given, it renders into an offscreen RGBA8 texture of WithSize dimensions
// that ReadPixels can copy back.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Backend, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("wgpu: %w: nil device or queue", render.ErrContextUnavailable)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	b := &Backend{
		device:   device,
		queue:    queue,
		opts:     o,
		format:   o.format,
		buffers:  make(map[render.BufferID]*gpuBuffer),
		textures: make(map[render.TextureID]*gpuTexture),
	}
	b.pipes = newPipelineCache(device, o.format, b.depthFormat(), o.spirv)

	uniform, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gfx_uniforms",
		Size:  uniformSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("wgpu: create uniform buffer: %w", err)
	}
	b.uniform = uniform

	if err := b.pipes.init(); err != nil {
		b.Destroy()
		return nil, fmt.Errorf("wgpu: %w", err)
	}

	white, err := b.CreateTexture(render.TextureDescriptor{Label: "gfx_white", Width: 1, Height: 1}, []byte{255, 255, 255, 255})
	if err != nil {
		b.Destroy()
		return nil, err
	}
	b.white = white

	if o.view != nil {
		err = b.SetTarget(o.view, o.format, o.width, o.height)
	} else {
		err = b.Resize(o.width, o.height)
	}
	if err != nil {
		b.Destroy()
		return nil, err
	}
	logger.Get().Debug("wgpu: backend created",
		"width", b.width, "height", b.height, "format", b.format, "depth", o.depth, "spirv", o.spirv)
	return b, nil
}

// halProvider is implemented by device providers that expose their HAL
// objects, such as a gogpu.App.
type halProvider interface {
	HalDevice() any
	HalQueue() any
}

// NewFromProvider creates a backend on the device of a host application.
// The provider's surface format, when known, becomes the target format.
func NewFromProvider(p gpucontext.DeviceProvider, opts ...Option) (*Backend, error) {
	hp, ok := p.(halProvider)
	if !ok {
		return nil, ErrNoHalProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("%w: device is %T", ErrNoHalProvider, hp.HalDevice())
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("%w: queue is %T", ErrNoHalProvider, hp.HalQueue())
	}
	if f := p.SurfaceFormat(); f != gputypes.TextureFormatUndefined {
		opts = append([]Option{WithFormat(f)}, opts...)
	}
	return New(device, queue, opts...)
}

func (b *Backend) depthFormat() gputypes.TextureFormat {
	if !b.opts.depth {
		return gputypes.TextureFormatUndefined
	}
	return gputypes.TextureFormatDepth24PlusStencil8
}

// Resize replaces the offscreen color target with a new width by height
// texture. Pending work is flushed first.
func (b *Backend) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("wgpu: invalid target size %dx%d", width, height)
	}
	if err := b.Flush(); err != nil {
		return err
	}
	b.destroyColor()
	tex, view, err := b.createAttachment("gfx_color", width, height, b.format,
		gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageCopySrc)
	if err != nil {
		return err
	}
	b.colorTex, b.colorView = tex, view
	return b.resizeDepth(width, height)
}

// SetTarget renders into a view owned by the host, typically the current
// surface texture. Pending work is flushed to the previous target first.
// A format change rebuilds the pipelines.
func (b *Backend) SetTarget(view hal.TextureView, format gputypes.TextureFormat, width, height int) error {
	if view == nil {
		return ErrNoTarget
	}
	if err := b.Flush(); err != nil {
		return err
	}
	b.destroyColor()
	b.colorView = view
	if format != b.format {
		b.format = format
		b.pipes.reset(format, b.depthFormat())
	}
	return b.resizeDepth(width, height)
}

func (b *Backend) resizeDepth(width, height int) error {
	same := b.width == width && b.height == height
	b.width, b.height = width, height
	if !b.opts.depth || (b.depthTex != nil && same) {
		return nil
	}
	b.destroyDepth()
	tex, view, err := b.createAttachment("gfx_depth", width, height, b.depthFormat(),
		gputypes.TextureUsageRenderAttachment)
	if err != nil {
		return err
	}
	b.depthTex, b.depthView = tex, view
	// A new depth buffer has undefined contents.
	one := float32(1)
	b.rec.clearDepth = &one
	return nil
}

func (b *Backend) createAttachment(label string, w, h int, format gputypes.TextureFormat, usage gputypes.TextureUsage) (hal.Texture, hal.TextureView, error) {
	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wgpu: create %s texture: %w", label, err)
	}
	view, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:           label + "_view",
		Format:          format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		b.device.DestroyTexture(tex)
		return nil, nil, fmt.Errorf("wgpu: create %s view: %w", label, err)
	}
	return tex, view, nil
}

func (b *Backend) destroyColor() {
	if b.colorTex == nil {
		b.colorView = nil
		return
	}
	b.device.DestroyTextureView(b.colorView)
	b.device.DestroyTexture(b.colorTex)
	b.colorTex, b.colorView = nil, nil
}

func (b *Backend) destroyDepth() {
	if b.depthTex == nil {
		return
	}
	b.device.DestroyTextureView(b.depthView)
	b.device.DestroyTexture(b.depthTex)
	b.depthTex, b.depthView = nil, nil
}

// Stats returns the work counters.
func (b *Backend) Stats() Stats {
	s := b.stats
	s.Pipelines = len(b.pipes.pipelines)
	return s
}

// LiveBuffers returns the number of buffers created and not destroyed.
func (b *Backend) LiveBuffers() int { return len(b.buffers) }

// LiveTextures returns the number of caller textures alive. The internal
// white texture is not counted.
func (b *Backend) LiveTextures() int { return len(b.textures) - 1 }

// Capabilities implements render.Backend.
func (b *Backend) Capabilities() render.Capabilities {
	return render.Capabilities{
		Name:           "wgpu",
		MaxTextureSize: int(b.opts.limits.MaxTextureDimension2D),
		DepthBuffer:    b.opts.depth,
		StencilBuffer:  b.opts.depth,
	}
}

// TargetSize implements render.Backend.
func (b *Backend) TargetSize() (int, int) { return b.width, b.height }

func (b *Backend) allocID() uint32 {
	b.nextID++
	return b.nextID
}

// CreateBuffer implements render.Backend. Sizes are rounded up to a
// multiple of four as WebGPU copies require.
func (b *Backend) CreateBuffer(kind render.BufferKind, size int) (render.BufferID, error) {
	if size <= 0 {
		return 0, fmt.Errorf("wgpu: invalid %s buffer size %d", kind, size)
	}
	size = align4(size)
	usage := gputypes.BufferUsageVertex
	if kind == render.BufferIndex {
		usage = gputypes.BufferUsageIndex
	}
	buf, err := b.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "gfx_" + kind.String(),
		Size:  uint64(size),
		Usage: usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return 0, fmt.Errorf("wgpu: create %s buffer: %w", kind, err)
	}
	id := render.BufferID(b.allocID())
	b.buffers[id] = &gpuBuffer{buf: buf, kind: kind, size: size}
	return id, nil
}

// UpdateBuffer implements render.Backend.
func (b *Backend) UpdateBuffer(id render.BufferID, data []byte) error {
	gb, ok := b.buffers[id]
	if !ok {
		return fmt.Errorf("wgpu: buffer %d: %w", id, render.ErrInvalidID)
	}
	if len(data) > gb.size {
		return fmt.Errorf("wgpu: %d bytes into %d byte buffer: %w", len(data), gb.size, render.ErrBufferOverflow)
	}
	if err := b.flushIfUsed(b.rec.usesBuffer(id)); err != nil {
		return err
	}
	if n := len(data); n%4 != 0 {
		padded := make([]byte, align4(n))
		copy(padded, data)
		data = padded
	}
	if err := b.queue.WriteBuffer(gb.buf, 0, data); err != nil {
		return fmt.Errorf("wgpu: write %s buffer %d: %w", gb.kind, id, err)
	}
	b.stats.Uploads++
	return nil
}

// DestroyBuffer implements render.Backend.
func (b *Backend) DestroyBuffer(id render.BufferID) {
	gb, ok := b.buffers[id]
	if !ok {
		return
	}
	if err := b.flushIfUsed(b.rec.usesBuffer(id)); err != nil {
		logger.Get().Warn("wgpu: flush before buffer destroy failed", "buffer", id, "err", err)
	}
	b.device.DestroyBuffer(gb.buf)
	delete(b.buffers, id)
}

// CreateTexture implements render.Backend.
func (b *Backend) CreateTexture(desc render.TextureDescriptor, pixels []byte) (render.TextureID, error) {
	if desc.Format != gputypes.TextureFormatRGBA8Unorm && desc.Format != gputypes.TextureFormatUndefined {
		return 0, &render.UnsupportedFormatError{Width: desc.Width, Height: desc.Height, Format: desc.Format}
	}
	limit := int(b.opts.limits.MaxTextureDimension2D)
	if desc.Width <= 0 || desc.Height <= 0 || desc.Width > limit || desc.Height > limit {
		return 0, &render.UnsupportedFormatError{Width: desc.Width, Height: desc.Height, Format: desc.Format, Limit: limit}
	}
	if pixels != nil && len(pixels) != desc.Width*desc.Height*4 {
		return 0, fmt.Errorf("wgpu: texture data is %d bytes, want %d", len(pixels), desc.Width*desc.Height*4)
	}

	label := desc.Label
	if label == "" {
		label = "gfx_texture"
	}
	tex, view, err := b.createAttachment(label, desc.Width, desc.Height, gputypes.TextureFormatRGBA8Unorm,
		gputypes.TextureUsageTextureBinding|gputypes.TextureUsageCopyDst)
	if err != nil {
		return 0, err
	}
	group, err := b.pipes.bindGroup(label+"_group", b.uniform, view)
	if err != nil {
		b.device.DestroyTextureView(view)
		b.device.DestroyTexture(tex)
		return 0, fmt.Errorf("wgpu: create %s bind group: %w", label, err)
	}
	t := &gpuTexture{tex: tex, view: view, group: group, width: desc.Width, height: desc.Height}
	id := render.TextureID(b.allocID())
	b.textures[id] = t

	if pixels == nil {
		// Textures start transparent, not undefined.
		pixels = make([]byte, desc.Width*desc.Height*4)
	}
	if err := b.writeTexture(t, 0, 0, desc.Width, desc.Height, pixels); err != nil {
		b.destroyTexture(id, t)
		return 0, err
	}
	return id, nil
}

// UpdateTexture implements render.Backend.
func (b *Backend) UpdateTexture(id render.TextureID, x, y, w, h int, pixels []byte) error {
	t, ok := b.textures[id]
	if !ok || id == b.white {
		return fmt.Errorf("wgpu: texture %d: %w", id, render.ErrInvalidID)
	}
	if x < 0 || y < 0 || w <= 0 || h <= 0 || x+w > t.width || y+h > t.height {
		return fmt.Errorf("wgpu: region %dx%d+%d+%d outside %dx%d texture", w, h, x, y, t.width, t.height)
	}
	if len(pixels) < w*h*4 {
		return fmt.Errorf("wgpu: region data is %d bytes, want %d", len(pixels), w*h*4)
	}
	if err := b.flushIfUsed(b.rec.usesTexture(id)); err != nil {
		return err
	}
	return b.writeTexture(t, x, y, w, h, pixels)
}

func (b *Backend) writeTexture(t *gpuTexture, x, y, w, h int, pixels []byte) error {
	err := b.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture: t.tex,
			Origin:  hal.Origin3D{X: uint32(x), Y: uint32(y)},
			Aspect:  gputypes.TextureAspectAll,
		},
		pixels[:w*h*4],
		&hal.ImageDataLayout{BytesPerRow: uint32(w * 4), RowsPerImage: uint32(h)},
		&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("wgpu: write texture: %w", err)
	}
	b.stats.Uploads++
	return nil
}

// DestroyTexture implements render.Backend.
func (b *Backend) DestroyTexture(id render.TextureID) {
	t, ok := b.textures[id]
	if !ok || id == b.white {
		return
	}
	if err := b.flushIfUsed(b.rec.usesTexture(id)); err != nil {
		logger.Get().Warn("wgpu: flush before texture destroy failed", "texture", id, "err", err)
	}
	b.destroyTexture(id, t)
}

func (b *Backend) destroyTexture(id render.TextureID, t *gpuTexture) {
	b.device.DestroyBindGroup(t.group)
	b.device.DestroyTextureView(t.view)
	b.device.DestroyTexture(t.tex)
	delete(b.textures, id)
}

// SetUniforms implements render.Backend.
func (b *Backend) SetUniforms(u render.Uniforms) error {
	if b.uniSet && u == b.uniforms {
		return nil
	}
	// One uniform buffer backs every bind group: changing it under
	// recorded draws would retroactively change them.
	if err := b.flushIfUsed(b.rec.draws > 0); err != nil {
		return err
	}
	data := make([]byte, 0, uniformSize)
	for _, f := range u.Transform {
		data = binary.LittleEndian.AppendUint32(data, math.Float32bits(f))
	}
	if err := b.queue.WriteBuffer(b.uniform, 0, data); err != nil {
		return fmt.Errorf("wgpu: write uniforms: %w", err)
	}
	b.uniforms, b.uniSet = u, true
	b.stats.Uploads++
	return nil
}

// Destroy flushes pending work and releases every GPU object the backend
// created. A host-owned target view is left alone. The backend must not be
// used afterwards.
func (b *Backend) Destroy() {
	if b.device == nil {
		return
	}
	if err := b.Flush(); err != nil {
		logger.Get().Warn("wgpu: flush on destroy failed", "err", err)
		b.rec.discard()
	}
	for id, gb := range b.buffers {
		b.device.DestroyBuffer(gb.buf)
		delete(b.buffers, id)
	}
	for id, t := range b.textures {
		b.destroyTexture(id, t)
	}
	b.pipes.destroy()
	if b.uniform != nil {
		b.device.DestroyBuffer(b.uniform)
		b.uniform = nil
	}
	b.destroyDepth()
	b.destroyColor()
	b.device = nil
}

func align4(n int) int { return (n + 3) &^ 3 }
