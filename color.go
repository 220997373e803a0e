// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gfx

import "github.com/gogpu/gfx/render"

// Color is a straight-alpha RGBA color with components in [0, 1].
type Color = render.Color

// Named colors, re-exported from render for convenience.
var (
	Transparent = render.Transparent
	Black       = render.Black
	White       = render.White
	Red         = render.Red
	Green       = render.Green
	Blue        = render.Blue
	Yellow      = render.Yellow
	Magenta     = render.Magenta
	Cyan        = render.Cyan
	Gray        = render.Gray
	LightGray   = render.LightGray
	DarkGray    = render.DarkGray
	Orange      = render.Orange
	Pink        = render.Pink
	Purple      = render.Purple
	SkyBlue     = render.SkyBlue
)

// RGBA8 builds a Color from 8-bit components.
func RGBA8(r, g, b, a uint8) Color { return render.RGBA8(r, g, b, a) }

// Hex parses "#rgb", "#rrggbb" or "#rrggbbaa".
func Hex(s string) (Color, error) { return render.Hex(s) }
