// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gfx draws batched 2D canvases and 3D scenes through one shared
// GPU context.
//
// # Overview
//
// A Context wraps a render.Handle, the single owner of a render.Backend,
// together with the resources every drawing surface shares: a font atlas
// store and a texture registry. From it the application creates any number
// of canvases and scenes. Each accumulates geometry independently and is
// submitted when the application calls its Draw method:
//
//	gpu := render.NewHandle(backend)
//	ctx, err := gfx.New(gpu)
//	if err != nil {
//	    return err
//	}
//	defer ctx.Close()
//
//	background, _ := ctx.NewCanvas()
//	_ = background.DrawRectangle(0, 0, 100, 100, gfx.Red)
//	_ = background.DrawText("HELLO WORLD", 300, 300, 30, gfx.Black)
//
//	// per frame
//	_ = ctx.Clear(&gfx.White, nil, nil)
//	_ = background.Draw()
//
// # Layering
//
// There is no depth sorting between surfaces. Whatever is drawn last ends
// up on top, so the order of Draw calls is the Z order. A canvas keeps its
// batches after Draw: never clearing it gives a static layer, drawing more
// each frame without clearing accumulates content, and calling Clear at the
// start of each frame gives a dynamic layer.
//
// # Batching
//
// Consecutive draws that share a texture, blend mode and shader merge into
// one batch, and each batch costs one draw call. Text from one font merges
// with itself because every glyph lives in that font's atlas texture.
//
// # Backends
//
// The render package defines the Backend contract and ships a CPU
// reference implementation. backend/wgpu renders with gogpu/wgpu and
// backend/ebiten draws into an Ebitengine image.
//
// # Logging
//
// gfx is silent by default. See SetLogger.
package gfx
