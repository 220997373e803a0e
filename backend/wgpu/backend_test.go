// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"encoding/binary"
	"errors"
	"testing"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/gfx/render"
)

type drawCall struct {
	count, first uint32
	base         int32
}

// recordingDevice is a noop device that remembers the passes, draws and
// pipelines recorded through it.
type recordingDevice struct {
	*noop.Device
	passes    []*hal.RenderPassDescriptor
	draws     []drawCall
	pipelines []*hal.RenderPipelineDescriptor
}

func (d *recordingDevice) CreateCommandEncoder(*hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	return &recordingEncoder{CommandEncoder: &noop.CommandEncoder{}, dev: d}, nil
}

func (d *recordingDevice) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	d.pipelines = append(d.pipelines, desc)
	return d.Device.CreateRenderPipeline(desc)
}

type recordingEncoder struct {
	*noop.CommandEncoder
	dev *recordingDevice
}

func (e *recordingEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	e.dev.passes = append(e.dev.passes, desc)
	return &recordingPass{RenderPassEncoder: &noop.RenderPassEncoder{}, dev: e.dev}
}

type recordingPass struct {
	*noop.RenderPassEncoder
	dev *recordingDevice
}

func (p *recordingPass) DrawIndexed(count, _, first uint32, base int32, _ uint32) {
	p.dev.draws = append(p.dev.draws, drawCall{count: count, first: first, base: base})
}

func newTestBackend(t *testing.T, opts ...Option) (*Backend, *recordingDevice) {
	t.Helper()
	dev := &recordingDevice{Device: &noop.Device{}}
	b, err := New(dev, &noop.Queue{}, append([]Option{WithSize(4, 3)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(b.Destroy)
	return b, dev
}

// quadBuffers creates a vertex and index buffer holding one quad.
func quadBuffers(t *testing.T, b *Backend) (render.BufferID, render.BufferID) {
	t.Helper()
	vs := make([]render.Vertex, 4)
	vdata := render.AppendVertices(nil, vs)
	idata := render.AppendIndices(nil, []uint16{0, 1, 2, 2, 3, 0})
	vb, err := b.CreateBuffer(render.BufferVertex, len(vdata))
	if err != nil {
		t.Fatal(err)
	}
	ib, err := b.CreateBuffer(render.BufferIndex, len(idata))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.UpdateBuffer(vb, vdata); err != nil {
		t.Fatal(err)
	}
	if err := b.UpdateBuffer(ib, idata); err != nil {
		t.Fatal(err)
	}
	return vb, ib
}

func TestNewDefaults(t *testing.T) {
	b, _ := newTestBackend(t)
	if w, h := b.TargetSize(); w != 4 || h != 3 {
		t.Errorf("TargetSize = %dx%d, want 4x3", w, h)
	}
	caps := b.Capabilities()
	if caps.Name != "wgpu" || !caps.DepthBuffer || caps.MaxTextureSize != 8192 {
		t.Errorf("Capabilities = %+v", caps)
	}
	if n := b.LiveTextures(); n != 0 {
		t.Errorf("LiveTextures = %d, want 0", n)
	}
	if _, err := New(nil, &noop.Queue{}); !errors.Is(err, render.ErrContextUnavailable) {
		t.Errorf("New(nil) = %v", err)
	}
}

func TestDrawRecordsIndexedCall(t *testing.T) {
	b, dev := newTestBackend(t)
	vb, ib := quadBuffers(t, b)

	if err := b.SetUniforms(render.Uniforms{Transform: render.Identity()}); err != nil {
		t.Fatal(err)
	}
	if err := b.Draw(vb, ib, 3, 3, 1); err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}

	want := []drawCall{{count: 3, first: 3, base: 1}}
	if len(dev.draws) != 1 || dev.draws[0] != want[0] {
		t.Errorf("draws = %+v, want %+v", dev.draws, want)
	}
	if st := b.Stats(); st.Submits != 1 || st.Passes != 1 || st.Draws != 1 {
		t.Errorf("stats = %+v, want one submit, pass and draw", st)
	}
}

func TestPassLoadOps(t *testing.T) {
	b, dev := newTestBackend(t)
	vb, ib := quadBuffers(t, b)

	red := render.Red.WithAlpha(0.5)
	if err := b.Clear(&red, nil, nil); err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := b.Draw(vb, ib, 0, 6, 0); err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}

	if len(dev.passes) != 2 {
		t.Fatalf("passes = %d, want 2", len(dev.passes))
	}
	first, second := dev.passes[0], dev.passes[1]
	if c := first.ColorAttachments[0]; c.LoadOp != gputypes.LoadOpClear || c.ClearValue.R != 0.5 || c.ClearValue.A != 0.5 {
		t.Errorf("clear pass color = %+v, want premultiplied clear", c)
	}
	if d := first.DepthStencilAttachment; d == nil || d.DepthLoadOp != gputypes.LoadOpClear || d.DepthClearValue != 1 {
		t.Errorf("new depth buffer not cleared to 1: %+v", d)
	}
	if second.ColorAttachments[0].LoadOp != gputypes.LoadOpLoad || second.DepthStencilAttachment.DepthLoadOp != gputypes.LoadOpLoad {
		t.Errorf("second pass should load previous contents")
	}
}

func TestStencilClear(t *testing.T) {
	b, dev := newTestBackend(t)
	ref := uint32(3)
	if err := b.Clear(nil, nil, &ref); err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(dev.passes) != 1 {
		t.Fatalf("passes = %d, want 1", len(dev.passes))
	}
	d := dev.passes[0].DepthStencilAttachment
	if d == nil || d.StencilLoadOp != gputypes.LoadOpClear || d.StencilClearValue != 3 {
		t.Errorf("stencil attachment = %+v, want clear to 3", d)
	}
}

func TestClearAfterDrawsSubmitsThem(t *testing.T) {
	b, dev := newTestBackend(t)
	vb, ib := quadBuffers(t, b)

	_ = b.Draw(vb, ib, 0, 6, 0)
	if err := b.Clear(&render.Black, nil, nil); err != nil {
		t.Fatal(err)
	}
	if got := b.Stats().Submits; got != 1 {
		t.Fatalf("Clear after draw submitted %d times, want 1", got)
	}
	_ = b.Flush()
	if len(dev.passes) != 2 || dev.passes[1].ColorAttachments[0].LoadOp != gputypes.LoadOpClear {
		t.Errorf("clear did not become its own pass")
	}
}

func TestHazardsFlushRecordedDraws(t *testing.T) {
	tests := []struct {
		name    string
		act     func(b *Backend, vb, spare render.BufferID) error
		submits int
	}{
		{"same uniforms", func(b *Backend, _, _ render.BufferID) error {
			return b.SetUniforms(render.Uniforms{Transform: render.Identity()})
		}, 0},
		{"new uniforms", func(b *Backend, _, _ render.BufferID) error {
			return b.SetUniforms(render.Uniforms{Transform: render.Scale(2, 2, 1)})
		}, 1},
		{"rewrite drawn buffer", func(b *Backend, vb, _ render.BufferID) error {
			return b.UpdateBuffer(vb, make([]byte, 36))
		}, 1},
		{"write unused buffer", func(b *Backend, _, spare render.BufferID) error {
			return b.UpdateBuffer(spare, make([]byte, 36))
		}, 0},
		{"destroy drawn buffer", func(b *Backend, vb, _ render.BufferID) error {
			b.DestroyBuffer(vb)
			return nil
		}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, _ := newTestBackend(t)
			vb, ib := quadBuffers(t, b)
			spare, err := b.CreateBuffer(render.BufferVertex, 36)
			if err != nil {
				t.Fatal(err)
			}
			if err := b.SetUniforms(render.Uniforms{Transform: render.Identity()}); err != nil {
				t.Fatal(err)
			}
			if err := b.Draw(vb, ib, 0, 6, 0); err != nil {
				t.Fatal(err)
			}
			if err := tt.act(b, vb, spare); err != nil {
				t.Fatal(err)
			}
			if got := b.Stats().Submits; got != tt.submits {
				t.Errorf("submits = %d, want %d", got, tt.submits)
			}
		})
	}
}

func TestTextureUpdateHazard(t *testing.T) {
	b, _ := newTestBackend(t)
	vb, ib := quadBuffers(t, b)
	tex, err := b.CreateTexture(render.TextureDescriptor{Width: 2, Height: 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	other, err := b.CreateTexture(render.TextureDescriptor{Width: 2, Height: 2}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.BindState(render.PipelineState{Texture: tex}); err != nil {
		t.Fatal(err)
	}
	_ = b.Draw(vb, ib, 0, 6, 0)

	if err := b.UpdateTexture(other, 0, 0, 1, 1, make([]byte, 4)); err != nil {
		t.Fatal(err)
	}
	if got := b.Stats().Submits; got != 0 {
		t.Fatalf("unused texture write submitted %d times", got)
	}
	if err := b.UpdateTexture(tex, 1, 1, 1, 1, make([]byte, 4)); err != nil {
		t.Fatal(err)
	}
	if got := b.Stats().Submits; got != 1 {
		t.Errorf("drawn texture write submitted %d times, want 1", got)
	}
	if err := b.UpdateTexture(tex, 1, 1, 2, 2, make([]byte, 16)); err == nil {
		t.Error("region outside texture accepted")
	}
}

func TestPipelinesCachedPerState(t *testing.T) {
	b, dev := newTestBackend(t)
	vb, ib := quadBuffers(t, b)

	states := []render.PipelineState{
		{},
		{Blend: render.BlendAdditive},
		{},
		{DepthTest: true, DepthWrite: true},
		{Blend: render.BlendAdditive},
	}
	for _, s := range states {
		if err := b.BindState(s); err != nil {
			t.Fatal(err)
		}
		if err := b.Draw(vb, ib, 0, 6, 0); err != nil {
			t.Fatal(err)
		}
	}
	_ = b.Flush()

	if got := b.Stats().Pipelines; got != 3 {
		t.Errorf("pipelines = %d, want 3", got)
	}
	if len(dev.pipelines) != 3 {
		t.Fatalf("created %d pipelines, want 3", len(dev.pipelines))
	}
	for _, p := range dev.pipelines {
		if p.DepthStencil == nil || p.DepthStencil.Format != gputypes.TextureFormatDepth24PlusStencil8 {
			t.Errorf("%s: missing depth state", p.Label)
		}
		if p.Fragment.Targets[0].Format != gputypes.TextureFormatRGBA8Unorm {
			t.Errorf("%s: target format %v", p.Label, p.Fragment.Targets[0].Format)
		}
	}
	depth := dev.pipelines[2].DepthStencil
	if depth.DepthCompare != gputypes.CompareFunctionLess || !depth.DepthWriteEnabled {
		t.Errorf("depth pipeline state = %+v", depth)
	}
}

func TestWithoutDepth(t *testing.T) {
	b, dev := newTestBackend(t, WithDepth(false))
	vb, ib := quadBuffers(t, b)
	if b.Capabilities().DepthBuffer {
		t.Error("DepthBuffer reported without depth")
	}
	_ = b.BindState(render.PipelineState{DepthTest: true, DepthWrite: true})
	_ = b.Draw(vb, ib, 0, 6, 0)
	_ = b.Flush()
	if dev.passes[0].DepthStencilAttachment != nil {
		t.Error("pass has a depth attachment")
	}
	if dev.pipelines[0].DepthStencil != nil {
		t.Error("pipeline has depth state")
	}
}

func TestValidation(t *testing.T) {
	b, _ := newTestBackend(t, WithLimits(gputypes.Limits{MaxTextureDimension2D: 64}))
	vb, ib := quadBuffers(t, b)

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unknown vertex buffer", b.Draw(99, ib, 0, 6, 0), render.ErrInvalidID},
		{"swapped buffers", b.Draw(ib, vb, 0, 6, 0), render.ErrInvalidID},
		{"index overflow", b.Draw(vb, ib, 4, 6, 0), render.ErrBufferOverflow},
		{"unknown texture", b.BindState(render.PipelineState{Texture: 99}), render.ErrInvalidID},
		{"white texture", b.BindState(render.PipelineState{Texture: b.white}), render.ErrInvalidID},
		{"unknown shader", b.BindState(render.PipelineState{Shader: 3}), render.ErrInvalidID},
		{"update overflow", b.UpdateBuffer(ib, make([]byte, 64)), render.ErrBufferOverflow},
		{"unknown update", b.UpdateBuffer(99, nil), render.ErrInvalidID},
		{"texture too large", texErr(b, render.TextureDescriptor{Width: 65, Height: 1}), render.ErrUnsupportedFormat},
		{"texture format", texErr(b, render.TextureDescriptor{Width: 1, Height: 1, Format: gputypes.TextureFormatBGRA8Unorm}), render.ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("got %v, want %v", tt.err, tt.want)
			}
		})
	}
	if got := b.Stats().Draws; got != 0 {
		t.Errorf("invalid draws recorded: %d", got)
	}
}

func texErr(b *Backend, desc render.TextureDescriptor) error {
	_, err := b.CreateTexture(desc, nil)
	return err
}

func TestDestroyReleasesResources(t *testing.T) {
	b, _ := newTestBackend(t)
	quadBuffers(t, b)
	if _, err := b.CreateTexture(render.TextureDescriptor{Width: 1, Height: 1}, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if b.LiveBuffers() != 2 || b.LiveTextures() != 1 {
		t.Fatalf("live = %d buffers %d textures", b.LiveBuffers(), b.LiveTextures())
	}

	h := render.NewHandle(b)
	h.Close()
	if b.LiveBuffers() != 0 || len(b.textures) != 0 {
		t.Errorf("live after Close = %d buffers %d textures", b.LiveBuffers(), len(b.textures))
	}
	b.Destroy()
}

type fakeProvider struct {
	device gpucontext.Device
	queue  gpucontext.Queue
	format gputypes.TextureFormat
}

func (p *fakeProvider) Device() gpucontext.Device             { return p.device }
func (p *fakeProvider) Queue() gpucontext.Queue               { return p.queue }
func (p *fakeProvider) SurfaceFormat() gputypes.TextureFormat { return p.format }
func (p *fakeProvider) Adapter() gpucontext.Adapter           { return nil }
func (p *fakeProvider) AdapterInfo() gpucontext.AdapterInfo   { return gpucontext.AdapterInfo{Name: "noop"} }

type halFakeProvider struct {
	fakeProvider
	dev hal.Device
	q   hal.Queue
}

func (p *halFakeProvider) HalDevice() any { return p.dev }
func (p *halFakeProvider) HalQueue() any  { return p.q }

func TestNewFromProvider(t *testing.T) {
	if _, err := NewFromProvider(&fakeProvider{}); !errors.Is(err, ErrNoHalProvider) {
		t.Errorf("plain provider: %v", err)
	}

	dev := &recordingDevice{Device: &noop.Device{}}
	p := &halFakeProvider{
		fakeProvider: fakeProvider{format: gputypes.TextureFormatBGRA8Unorm},
		dev:          dev,
		q:            &noop.Queue{},
	}
	b, err := NewFromProvider(p, WithSize(2, 2))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Destroy()
	vb, ib := quadBuffers(t, b)
	_ = b.Draw(vb, ib, 0, 6, 0)
	_ = b.Flush()
	if got := dev.pipelines[0].Fragment.Targets[0].Format; got != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("pipeline format = %v, want surface format", got)
	}

	p.q = nil
	if _, err := NewFromProvider(p); !errors.Is(err, ErrNoHalProvider) {
		t.Errorf("nil queue: %v", err)
	}
}

func TestSetTargetSwitchesFormat(t *testing.T) {
	b, dev := newTestBackend(t)
	vb, ib := quadBuffers(t, b)
	_ = b.Draw(vb, ib, 0, 6, 0)

	view, _ := (&noop.Device{}).CreateTextureView(nil, nil)
	if err := b.SetTarget(view, gputypes.TextureFormatBGRA8Unorm, 8, 8); err != nil {
		t.Fatal(err)
	}
	if got := b.Stats().Submits; got != 1 {
		t.Errorf("SetTarget did not flush pending draws: submits = %d", got)
	}
	_ = b.Draw(vb, ib, 0, 6, 0)
	_ = b.Flush()
	if len(dev.pipelines) != 2 || dev.pipelines[1].Fragment.Targets[0].Format != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("pipeline not rebuilt for the new format")
	}
	if dev.passes[1].ColorAttachments[0].View != view {
		t.Error("second pass does not target the host view")
	}
	if _, err := b.ReadPixels(); !errors.Is(err, ErrBorrowedTarget) {
		t.Errorf("ReadPixels on host view: %v", err)
	}
}

func TestReadPixels(t *testing.T) {
	b, _ := newTestBackend(t)
	img, err := b.ReadPixels()
	if err != nil {
		t.Fatal(err)
	}
	if got := img.Bounds().Size(); got.X != 4 || got.Y != 3 {
		t.Errorf("image size = %v, want 4x3", got)
	}
}

func TestShaderCompilesToSPIRV(t *testing.T) {
	src, err := shaderSource(true)
	if err != nil {
		t.Fatal(err)
	}
	if len(src.SPIRV) == 0 || src.SPIRV[0] != 0x07230203 {
		t.Errorf("not a SPIR-V module")
	}
	if wgsl, _ := shaderSource(false); wgsl.WGSL != quadShaderSource {
		t.Error("WGSL source not passed through")
	}
}

func TestUniformEncoding(t *testing.T) {
	dev := &noop.Device{}
	b, err := New(dev, &noop.Queue{}, WithSize(1, 1))
	if err != nil {
		t.Fatal(err)
	}
	defer b.Destroy()
	m := render.Translate(3, 4, 5)
	if err := b.SetUniforms(render.Uniforms{Transform: m}); err != nil {
		t.Fatal(err)
	}
	mapping, err := dev.MapBuffer(b.uniform, 0, uniformSize)
	if err != nil {
		t.Fatal(err)
	}
	data := unsafe.Slice((*byte)(mapping.Ptr), uniformSize)
	if got := binary.LittleEndian.Uint32(data[12*4:]); got != 0x40400000 {
		t.Errorf("m[12] bits = %#x, want 3.0", got)
	}
}
