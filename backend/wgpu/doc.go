// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu implements render.Backend on a gogpu/wgpu HAL device.
//
// One WGSL program draws every batch: position, texture coordinates and a
// straight-alpha vertex color in, premultiplied color out. Untextured
// batches sample a 1x1 white texture, so switching between shapes and text
// only swaps bind groups. Pipelines are created per blend mode and depth
// setting on first use.
//
// # Targets
//
// By default the backend renders into an offscreen RGBA8 texture that
// ReadPixels copies back, which suits headless rendering and tests:
//
//	b, err := wgpu.New(device, queue, wgpu.WithSize(640, 480))
//	gpu := render.NewHandle(b)
//	// ... draw canvases and scenes ...
//	img, err := b.ReadPixels()
//
// Inside a host application, the backend is created from the host's device
// provider and pointed at the surface texture each frame:
//
//	b, err := wgpu.NewFromProvider(app)
//	b.SetTarget(surfaceView, format, w, h)
//
// # Submission
//
// Draws are recorded into a single render pass and submitted by Flush,
// which also waits for the device. Uniform, buffer and texture writes that
// would affect already recorded draws submit the pass first.
package wgpu
