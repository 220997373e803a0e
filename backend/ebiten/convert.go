// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package ebiten

import (
	"image"

	eb "github.com/hajimehoshi/ebiten/v2"

	"github.com/gogpu/gfx/render"
)

// blendFor maps a blend mode onto the equivalent ebiten blend. Ebiten
// blends premultiplied colors like every gfx backend.
func blendFor(m render.BlendMode) eb.Blend {
	switch m {
	case render.BlendAdditive:
		return eb.BlendLighter
	case render.BlendMultiply:
		return eb.Blend{
			BlendFactorSourceRGB:        eb.BlendFactorDestinationColor,
			BlendFactorSourceAlpha:      eb.BlendFactorOne,
			BlendFactorDestinationRGB:   eb.BlendFactorOneMinusSourceAlpha,
			BlendFactorDestinationAlpha: eb.BlendFactorOneMinusSourceAlpha,
			BlendOperationRGB:           eb.BlendOperationAdd,
			BlendOperationAlpha:         eb.BlendOperationAdd,
		}
	case render.BlendReplace:
		return eb.BlendCopy
	default:
		return eb.BlendSourceOver
	}
}

// toScreen projects v through m and maps the result from clip space to
// pixels of a width by height destination. UVs address src, the texel
// rectangle the draw samples.
func toScreen(v render.Vertex, m render.Mat4, width, height int, src image.Rectangle) eb.Vertex {
	x, y, _, w := m.Transform(v.X, v.Y, v.Z)
	if w != 0 && w != 1 {
		x, y = x/w, y/w
	}
	return eb.Vertex{
		DstX:   (x + 1) * 0.5 * float32(width),
		DstY:   (1 - y) * 0.5 * float32(height),
		SrcX:   float32(src.Min.X) + v.U*float32(src.Dx()),
		SrcY:   float32(src.Min.Y) + v.V*float32(src.Dy()),
		ColorR: v.R,
		ColorG: v.G,
		ColorB: v.B,
		ColorA: v.A,
	}
}

// indexRange decodes count indices starting at first from data, offset by
// base, and returns them rebased to the smallest one along with the
// referenced vertex range [lo, hi].
func indexRange(dst []uint16, data []byte, first, count, base int) (idx []uint16, lo, hi int) {
	lo, hi = -1, -1
	for i := first; i < first+count; i++ {
		v := int(render.DecodeIndex(data, i)) + base
		if lo < 0 || v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	idx = dst[:0]
	for i := first; i < first+count; i++ {
		idx = append(idx, uint16(int(render.DecodeIndex(data, i))+base-lo))
	}
	return idx, lo, hi
}
