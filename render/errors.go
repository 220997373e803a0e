// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
)

// Sentinel errors matched with errors.Is.
var (
	// ErrContextUnavailable is returned when the shared GPU context has been
	// closed or lost.
	ErrContextUnavailable = errors.New("render: gpu context unavailable")

	// ErrResource matches every *ResourceError.
	ErrResource = errors.New("render: resource unavailable")

	// ErrUnsupportedFormat matches every *UnsupportedFormatError.
	ErrUnsupportedFormat = errors.New("render: unsupported format")

	// ErrDecode matches every *DecodeError.
	ErrDecode = errors.New("render: decode failed")

	// ErrInvalidID is returned by backends for unknown buffer or texture ids.
	ErrInvalidID = errors.New("render: invalid resource id")

	// ErrBufferOverflow is returned when an upload exceeds the buffer size.
	ErrBufferOverflow = errors.New("render: data exceeds buffer size")
)

// ResourceError reports a glyph, texture or buffer that could not be produced.
// It is local to the draw call that caused it.
type ResourceError struct {
	Op       string
	Resource string
	Err      error
}

func (e *ResourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("render: %s %s: resource unavailable", e.Op, e.Resource)
	}
	return fmt.Sprintf("render: %s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// Is reports whether target is ErrResource.
func (e *ResourceError) Is(target error) bool { return target == ErrResource }

// UnsupportedFormatError reports image dimensions or a pixel format the
// backend cannot hold.
type UnsupportedFormatError struct {
	Width  int
	Height int
	Format gputypes.TextureFormat
	Limit  int
}

func (e *UnsupportedFormatError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("render: unsupported texture %dx%d (limit %d)", e.Width, e.Height, e.Limit)
	}
	return fmt.Sprintf("render: unsupported texture format %v (%dx%d)", e.Format, e.Width, e.Height)
}

// Is reports whether target is ErrUnsupportedFormat.
func (e *UnsupportedFormatError) Is(target error) bool { return target == ErrUnsupportedFormat }

// DecodeError reports malformed font or image bytes.
type DecodeError struct {
	Kind string // "font" or "image"
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("render: decode %s: %v", e.Kind, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports whether target is ErrDecode.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }
