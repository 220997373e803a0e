// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	_ "embed"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gfx/render"
)

//go:embed shaders/quad.wgsl
var quadShaderSource string

// Bind group layout of quad.wgsl.
const (
	bindingUniforms = 0
	bindingTexture  = 1
	bindingSampler  = 2

	uniformSize = 64 // mat4x4<f32>
)

// pipelineKey is everything that selects a distinct render pipeline.
type pipelineKey struct {
	blend      render.BlendMode
	depthTest  bool
	depthWrite bool
}

// pipelineCache owns the shader program, its layouts and sampler, and one
// render pipeline per pipelineKey, created on first use.
type pipelineCache struct {
	device      hal.Device
	format      gputypes.TextureFormat
	depthFormat gputypes.TextureFormat // Undefined without a depth buffer
	spirv       bool

	shader      hal.ShaderModule
	groupLayout hal.BindGroupLayout
	pipeLayout  hal.PipelineLayout
	sampler     hal.Sampler
	pipelines   map[pipelineKey]hal.RenderPipeline
}

func newPipelineCache(device hal.Device, format, depthFormat gputypes.TextureFormat, spirv bool) *pipelineCache {
	return &pipelineCache{
		device:      device,
		format:      format,
		depthFormat: depthFormat,
		spirv:       spirv,
		pipelines:   make(map[pipelineKey]hal.RenderPipeline),
	}
}

// init creates the shader module, bind group layout, pipeline layout and
// sampler shared by every pipeline variant.
func (c *pipelineCache) init() error {
	if c.shader != nil {
		return nil
	}
	source, err := shaderSource(c.spirv)
	if err != nil {
		return err
	}
	shader, err := c.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "gfx_quad_shader",
		Source: source,
	})
	if err != nil {
		return fmt.Errorf("compile quad shader: %w", err)
	}
	c.shader = shader

	groupLayout, err := c.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "gfx_quad_group_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    bindingUniforms,
				Visibility: gputypes.ShaderStageVertex,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
			{
				Binding:    bindingTexture,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			{
				Binding:    bindingSampler,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		},
	})
	if err != nil {
		c.destroy()
		return fmt.Errorf("create quad bind group layout: %w", err)
	}
	c.groupLayout = groupLayout

	pipeLayout, err := c.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "gfx_quad_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{groupLayout},
	})
	if err != nil {
		c.destroy()
		return fmt.Errorf("create quad pipeline layout: %w", err)
	}
	c.pipeLayout = pipeLayout

	// Nearest filtering keeps glyph and sprite texels crisp at 1:1 scale.
	sampler, err := c.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        "gfx_quad_sampler",
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeNearest,
		MinFilter:    gputypes.FilterModeNearest,
		MipmapFilter: gputypes.FilterModeNearest,
	})
	if err != nil {
		c.destroy()
		return fmt.Errorf("create quad sampler: %w", err)
	}
	c.sampler = sampler
	return nil
}

// get returns the pipeline for key, creating it on first use.
func (c *pipelineCache) get(key pipelineKey) (hal.RenderPipeline, error) {
	if p, ok := c.pipelines[key]; ok {
		return p, nil
	}
	if err := c.init(); err != nil {
		return nil, err
	}

	blend := key.blend.State()
	desc := &hal.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("gfx_quad_%s", key.blend),
		Layout: c.pipeLayout,
		Vertex: hal.VertexState{
			Module:     c.shader,
			EntryPoint: "vs_main",
			Buffers:    []gputypes.VertexBufferLayout{render.VertexLayout()},
		},
		Fragment: &hal.FragmentState{
			Module:     c.shader,
			EntryPoint: "fs_main",
			Targets: []gputypes.ColorTargetState{{
				Format:    c.format,
				Blend:     &blend,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if c.depthFormat != gputypes.TextureFormatUndefined {
		compare := gputypes.CompareFunctionAlways
		if key.depthTest {
			compare = gputypes.CompareFunctionLess
		}
		keep := hal.StencilFaceState{
			Compare:     gputypes.CompareFunctionAlways,
			FailOp:      hal.StencilOperationKeep,
			DepthFailOp: hal.StencilOperationKeep,
			PassOp:      hal.StencilOperationKeep,
		}
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            c.depthFormat,
			DepthWriteEnabled: key.depthWrite,
			DepthCompare:      compare,
			StencilFront:      keep,
			StencilBack:       keep,
		}
	}

	p, err := c.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("create quad pipeline %+v: %w", key, err)
	}
	c.pipelines[key] = p
	return p, nil
}

// bindGroup creates the bind group that samples view with the uniforms in
// uniform.
func (c *pipelineCache) bindGroup(label string, uniform hal.Buffer, view hal.TextureView) (hal.BindGroup, error) {
	if err := c.init(); err != nil {
		return nil, err
	}
	return c.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  label,
		Layout: c.groupLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: bindingUniforms, Resource: gputypes.BufferBinding{Buffer: uniform.NativeHandle(), Offset: 0, Size: uniformSize}},
			{Binding: bindingTexture, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: bindingSampler, Resource: gputypes.SamplerBinding{Sampler: c.sampler.NativeHandle()}},
		},
	})
}

// reset drops every pipeline so they are rebuilt for a new target format.
func (c *pipelineCache) reset(format, depthFormat gputypes.TextureFormat) {
	for k, p := range c.pipelines {
		c.device.DestroyRenderPipeline(p)
		delete(c.pipelines, k)
	}
	c.format, c.depthFormat = format, depthFormat
}

// destroy releases every GPU object in reverse creation order.
func (c *pipelineCache) destroy() {
	c.reset(c.format, c.depthFormat)
	if c.sampler != nil {
		c.device.DestroySampler(c.sampler)
		c.sampler = nil
	}
	if c.pipeLayout != nil {
		c.device.DestroyPipelineLayout(c.pipeLayout)
		c.pipeLayout = nil
	}
	if c.groupLayout != nil {
		c.device.DestroyBindGroupLayout(c.groupLayout)
		c.groupLayout = nil
	}
	if c.shader != nil {
		c.device.DestroyShaderModule(c.shader)
		c.shader = nil
	}
}

// shaderSource returns quad.wgsl as WGSL, or compiled to SPIR-V words for
// drivers that do not accept WGSL.
func shaderSource(spirv bool) (hal.ShaderSource, error) {
	if !spirv {
		return hal.ShaderSource{WGSL: quadShaderSource}, nil
	}
	code, err := naga.Compile(quadShaderSource)
	if err != nil {
		return hal.ShaderSource{}, fmt.Errorf("compile quad shader to SPIR-V: %w", err)
	}
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = uint32(code[i*4]) |
			uint32(code[i*4+1])<<8 |
			uint32(code[i*4+2])<<16 |
			uint32(code[i*4+3])<<24
	}
	return hal.ShaderSource{SPIRV: words}, nil
}
