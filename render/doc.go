// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render defines the contract between gfx and a GPU command context.
//
// # Key Principle
//
// gfx RECEIVES a GPU context from the host application, it does NOT create
// one. The host wraps its device in a Backend (see backend/wgpu and
// backend/ebiten), and gfx shares that single Backend between every canvas,
// scene, font atlas and texture registry through a Handle.
//
// # Core Types
//
//   - Backend: the raw command context (buffers, textures, state, draws)
//   - Handle: mutually exclusive, reference-counted ownership of a Backend
//   - Session: a locked Handle; one submitter at a time
//   - Vertex: the 36-byte vertex every batch is made of
//   - BlendMode: blend equations, mapped to gputypes.BlendState
//
// # Errors
//
// ResourceError, UnsupportedFormatError and DecodeError are matched with
// errors.As, or with errors.Is against ErrResource, ErrUnsupportedFormat and
// ErrDecode. ErrContextUnavailable reports a closed context.
//
// # Software Backend
//
// SoftwareBackend rasterizes into a PixmapTarget on the CPU:
//
//	target := render.NewPixmapTarget(800, 600)
//	handle := render.NewHandle(render.NewSoftwareBackend(target))
//	defer handle.Release()
package render
