// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package canvas provides immediate-style 2D drawing on top of the batch
// builder.
//
// A Canvas records shapes, sprites and text into draw batches. Nothing is
// rendered until Draw, which submits every batch to the shared GPU handle
// in recording order. The canvas keeps its batches after Draw, so the same
// content can be drawn again on the next frame without re-recording.
//
// # Usage patterns
//
// Static content is recorded once and drawn every frame:
//
//	bg := canvas.New(gpu, atlas)
//	bg.DrawRectangle(0, 0, 800, 600, render.DarkGray)
//	for frame := range frames {
//		bg.Draw()
//	}
//
// Dynamic content is cleared and re-recorded each frame:
//
//	hud.Clear()
//	hud.DrawText(fmt.Sprintf("score %d", score), 10, 30, 24, render.White)
//	hud.Draw()
//
// Additive content is never cleared and keeps accumulating:
//
//	trail.DrawCircle(x, y, 2, render.Yellow)
//	trail.Draw()
//
// # Layering
//
// Canvases sharing a handle do not sort against each other. Each Draw
// renders on top of whatever was drawn before it.
package canvas
