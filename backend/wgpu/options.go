// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

type options struct {
	width, height int
	format        gputypes.TextureFormat
	view          hal.TextureView
	depth         bool
	spirv         bool
	limits        gputypes.Limits
}

func defaultOptions() options {
	return options{
		width:  800,
		height: 600,
		format: gputypes.TextureFormatRGBA8Unorm,
		depth:  true,
		limits: gputypes.DefaultLimits(),
	}
}

// Option configures a Backend.
type Option func(*options)

// WithSize sets the size of the offscreen target, or of the host view given
// with WithTargetView. Default 800x600.
func WithSize(width, height int) Option {
	return func(o *options) {
		o.width, o.height = width, height
	}
}

// WithFormat sets the color target format. Default RGBA8Unorm.
func WithFormat(f gputypes.TextureFormat) Option {
	return func(o *options) {
		o.format = f
	}
}

// WithTargetView renders into a host-owned view instead of an offscreen
// texture.
func WithTargetView(view hal.TextureView) Option {
	return func(o *options) {
		o.view = view
	}
}

// WithDepth enables or disables the depth-stencil buffer. Default enabled.
func WithDepth(enabled bool) Option {
	return func(o *options) {
		o.depth = enabled
	}
}

// WithSPIRV compiles the shader to SPIR-V with naga instead of handing WGSL
// to the driver.
func WithSPIRV(enabled bool) Option {
	return func(o *options) {
		o.spirv = enabled
	}
}

// WithLimits sets the device limits; MaxTextureDimension2D bounds texture
// creation. Default gputypes.DefaultLimits.
func WithLimits(l gputypes.Limits) Option {
	return func(o *options) {
		o.limits = l
	}
}
