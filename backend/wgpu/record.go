// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfx/internal/logger"
	"github.com/gogpu/gfx/render"
)

// recorder is the command encoder and render pass being recorded between
// two submissions, plus the resources its draws reference.
type recorder struct {
	encoder hal.CommandEncoder
	pass    hal.RenderPassEncoder

	// Pending clears, applied as load operations of the next pass.
	clearColor   *gputypes.Color
	clearDepth   *float32
	clearStencil *uint32

	state    render.PipelineState
	hasState bool
	dirty    bool // state not yet set on the current pass

	buffers  map[render.BufferID]struct{}
	textures map[render.TextureID]struct{}
	draws    int
}

func (r *recorder) usesBuffer(id render.BufferID) bool {
	_, ok := r.buffers[id]
	return ok
}

func (r *recorder) usesTexture(id render.TextureID) bool {
	_, ok := r.textures[id]
	return ok
}

func (r *recorder) pending() bool {
	return r.encoder != nil || r.clearColor != nil || r.clearDepth != nil || r.clearStencil != nil
}

// discard drops the recording without submitting it.
func (r *recorder) discard() {
	if r.pass != nil {
		r.pass.End()
	}
	if r.encoder != nil {
		r.encoder.DiscardEncoding()
	}
	r.reset()
}

func (r *recorder) reset() {
	r.encoder, r.pass = nil, nil
	r.clearColor, r.clearDepth, r.clearStencil = nil, nil, nil
	r.dirty = true
	clear(r.buffers)
	clear(r.textures)
	r.draws = 0
}

// Clear implements render.Backend. Draws already recorded are submitted
// first so the clear lands after them.
func (b *Backend) Clear(c *render.Color, depth *float32, stencil *uint32) error {
	if err := b.flushIfUsed(b.rec.draws > 0); err != nil {
		return err
	}
	if c != nil {
		v := c.Premultiplied().GPU()
		b.rec.clearColor = &v
	}
	if depth != nil && b.depthView != nil {
		d := *depth
		b.rec.clearDepth = &d
	}
	if stencil != nil && b.depthView != nil {
		s := *stencil
		b.rec.clearStencil = &s
	}
	return nil
}

// BindState implements render.Backend. Pipeline and bind group changes are
// applied lazily by the next Draw.
func (b *Backend) BindState(state render.PipelineState) error {
	if state.Shader != 0 {
		return fmt.Errorf("wgpu: shader %d: %w", state.Shader, render.ErrInvalidID)
	}
	if state.Texture != 0 {
		if _, ok := b.textures[state.Texture]; !ok || state.Texture == b.white {
			return fmt.Errorf("wgpu: texture %d: %w", state.Texture, render.ErrInvalidID)
		}
	}
	if b.depthView == nil {
		state.DepthTest, state.DepthWrite = false, false
	}
	if b.rec.hasState && state == b.rec.state {
		return nil
	}
	b.rec.state, b.rec.hasState, b.rec.dirty = state, true, true
	return nil
}

// Draw implements render.Backend.
func (b *Backend) Draw(vertices, indices render.BufferID, firstIndex, count, baseVertex int) error {
	vb, ok := b.buffers[vertices]
	if !ok || vb.kind != render.BufferVertex {
		return fmt.Errorf("wgpu: vertex buffer %d: %w", vertices, render.ErrInvalidID)
	}
	ib, ok := b.buffers[indices]
	if !ok || ib.kind != render.BufferIndex {
		return fmt.Errorf("wgpu: index buffer %d: %w", indices, render.ErrInvalidID)
	}
	if firstIndex < 0 || count < 0 || (firstIndex+count)*render.IndexSize > ib.size {
		return fmt.Errorf("wgpu: indices [%d,%d) outside %d byte buffer: %w",
			firstIndex, firstIndex+count, ib.size, render.ErrBufferOverflow)
	}
	if count == 0 {
		return nil
	}
	if err := b.beginPass(); err != nil {
		return err
	}

	r := &b.rec
	if r.dirty {
		pipeline, err := b.pipes.get(pipelineKey{
			blend:      r.state.Blend,
			depthTest:  r.state.DepthTest,
			depthWrite: r.state.DepthWrite,
		})
		if err != nil {
			return fmt.Errorf("wgpu: %w", err)
		}
		tex := r.state.Texture
		if tex == 0 {
			tex = b.white
		}
		t, ok := b.textures[tex]
		if !ok {
			return fmt.Errorf("wgpu: bound texture %d: %w", tex, render.ErrInvalidID)
		}
		r.pass.SetPipeline(pipeline)
		r.pass.SetBindGroup(0, t.group, nil)
		r.textures[tex] = struct{}{}
		r.dirty = false
	}
	r.pass.SetVertexBuffer(0, vb.buf, 0)
	r.pass.SetIndexBuffer(ib.buf, gputypes.IndexFormatUint16, 0)
	r.pass.DrawIndexed(uint32(count), 1, uint32(firstIndex), int32(baseVertex), 0)

	r.buffers[vertices] = struct{}{}
	r.buffers[indices] = struct{}{}
	r.draws++
	b.stats.Draws++
	return nil
}

// beginPass opens the command encoder and render pass if none is open,
// consuming pending clears as load operations.
func (b *Backend) beginPass() error {
	r := &b.rec
	if r.pass != nil {
		return nil
	}
	if b.colorView == nil {
		return ErrNoTarget
	}
	if r.buffers == nil {
		r.buffers = make(map[render.BufferID]struct{})
		r.textures = make(map[render.TextureID]struct{})
	}

	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "gfx_encoder"})
	if err != nil {
		return fmt.Errorf("wgpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("gfx_frame"); err != nil {
		return fmt.Errorf("wgpu: begin encoding: %w", err)
	}

	color := hal.RenderPassColorAttachment{
		View:    b.colorView,
		LoadOp:  gputypes.LoadOpLoad,
		StoreOp: gputypes.StoreOpStore,
	}
	if r.clearColor != nil {
		color.LoadOp = gputypes.LoadOpClear
		color.ClearValue = *r.clearColor
	}
	desc := &hal.RenderPassDescriptor{
		Label:            "gfx_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{color},
	}
	if b.depthView != nil {
		depth := &hal.RenderPassDepthStencilAttachment{
			View:           b.depthView,
			DepthLoadOp:    gputypes.LoadOpLoad,
			DepthStoreOp:   gputypes.StoreOpStore,
			StencilLoadOp:  gputypes.LoadOpLoad,
			StencilStoreOp: gputypes.StoreOpStore,
		}
		if r.clearDepth != nil {
			depth.DepthLoadOp = gputypes.LoadOpClear
			depth.DepthClearValue = *r.clearDepth
		}
		if r.clearStencil != nil {
			depth.StencilLoadOp = gputypes.LoadOpClear
			depth.StencilClearValue = *r.clearStencil
		}
		desc.DepthStencilAttachment = depth
	}

	r.encoder = encoder
	r.pass = encoder.BeginRenderPass(desc)
	r.pass.SetViewport(0, 0, float32(b.width), float32(b.height), 0, 1)
	r.clearColor, r.clearDepth, r.clearStencil = nil, nil, nil
	r.dirty = true
	b.stats.Passes++
	return nil
}

// flushIfUsed submits pending work when hazard is set.
func (b *Backend) flushIfUsed(hazard bool) error {
	if !hazard {
		return nil
	}
	return b.Flush()
}

// Flush implements render.Backend. It ends the open pass, submits it and
// waits for the device to go idle. Pending clears with no draws still
// produce a pass.
func (b *Backend) Flush() error {
	r := &b.rec
	if !r.pending() {
		return nil
	}
	if r.pass == nil {
		if err := b.beginPass(); err != nil {
			r.discard()
			return err
		}
	}
	r.pass.End()
	r.pass = nil

	cmd, err := r.encoder.EndEncoding()
	if err != nil {
		r.discard()
		return fmt.Errorf("wgpu: end encoding: %w", err)
	}
	defer b.device.FreeCommandBuffer(cmd)

	draws := r.draws
	r.reset()
	if _, err := b.queue.Submit([]hal.CommandBuffer{cmd}); err != nil {
		return fmt.Errorf("wgpu: submit: %w", err)
	}
	if err := b.device.WaitIdle(); err != nil {
		return fmt.Errorf("wgpu: wait for GPU: %w", err)
	}
	b.stats.Submits++
	logger.Get().Debug("wgpu: submitted", "draws", draws)
	return nil
}
