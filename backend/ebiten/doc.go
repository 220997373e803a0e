// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package ebiten implements render.Backend on top of an Ebitengine image.
//
// It lets canvases and text draw inside an ebiten game without a separate
// GPU device:
//
//	type game struct {
//		gpu     *render.Handle
//		backend *ebiten.Backend
//		canvas  *canvas.Canvas
//	}
//
//	func (g *game) Draw(screen *eb.Image) {
//		g.backend.SetTarget(screen)
//		g.canvas.Clear()
//		_ = g.canvas.DrawRectangle(10, 10, 100, 50, render.RGBA8(255, 0, 0, 255))
//		_ = g.canvas.Draw()
//	}
//
// Buffers are kept on the CPU. Each draw decodes the referenced vertices,
// applies the current transform and hands the triangles to DrawTriangles
// with the matching blend. There is no depth buffer, so 3D scenes render in
// submission order.
package ebiten
