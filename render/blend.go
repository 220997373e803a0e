// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import "github.com/gogpu/gputypes"

// BlendMode selects how fragments combine with the target. All modes
// operate on premultiplied colors.
type BlendMode uint8

const (
	// BlendAlpha is source-over compositing. It is the zero value.
	BlendAlpha BlendMode = iota
	// BlendAdditive adds source to destination.
	BlendAdditive
	// BlendMultiply multiplies destination by source.
	BlendMultiply
	// BlendReplace overwrites the destination.
	BlendReplace
)

// String returns the blend mode name.
func (m BlendMode) String() string {
	switch m {
	case BlendAlpha:
		return "alpha"
	case BlendAdditive:
		return "additive"
	case BlendMultiply:
		return "multiply"
	case BlendReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// State returns the WebGPU blend state for m.
func (m BlendMode) State() gputypes.BlendState {
	switch m {
	case BlendAdditive:
		c := gputypes.BlendComponent{
			SrcFactor: gputypes.BlendFactorOne,
			DstFactor: gputypes.BlendFactorOne,
			Operation: gputypes.BlendOperationAdd,
		}
		return gputypes.BlendState{Color: c, Alpha: c}
	case BlendMultiply:
		return gputypes.BlendState{
			Color: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorDst,
				DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
				Operation: gputypes.BlendOperationAdd,
			},
			Alpha: gputypes.BlendComponent{
				SrcFactor: gputypes.BlendFactorOne,
				DstFactor: gputypes.BlendFactorOneMinusSrcAlpha,
				Operation: gputypes.BlendOperationAdd,
			},
		}
	case BlendReplace:
		return gputypes.BlendStateReplace()
	default:
		return gputypes.BlendStatePremultiplied()
	}
}

// Apply blends the premultiplied source src over dst per m. It is the CPU
// reference of State used by software backends.
func (m BlendMode) Apply(src, dst [4]float32) [4]float32 {
	var out [4]float32
	switch m {
	case BlendAdditive:
		for i := range out {
			out[i] = src[i] + dst[i]
		}
	case BlendMultiply:
		for i := 0; i < 3; i++ {
			out[i] = src[i]*dst[i] + dst[i]*(1-src[3])
		}
		out[3] = src[3] + dst[3]*(1-src[3])
	case BlendReplace:
		out = src
	default:
		for i := range out {
			out[i] = src[i] + dst[i]*(1-src[3])
		}
	}
	for i := range out {
		out[i] = clamp01(out[i])
	}
	return out
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
