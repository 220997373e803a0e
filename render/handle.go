// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/gfx/internal/logger"
)

// Destroyer is implemented by backends that own native resources.
type Destroyer interface {
	Destroy()
}

// Handle is the shared, mutually exclusive owner of one Backend.
//
// Every canvas, scene, font atlas and texture registry of a session shares
// one Handle. Lock serializes access so exactly one submitter drives the
// backend at a time; callers unlock before returning to their caller and
// never hold a session across a frame boundary.
//
// A Handle is reference counted. NewHandle returns it with one reference;
// Retain adds one and Release drops one. When the count reaches zero the
// handle closes and, if the backend implements Destroyer, destroys it.
type Handle struct {
	mu      sync.Mutex
	backend Backend
	caps    Capabilities
	refs    atomic.Int32
	closed  atomic.Bool
}

// NewHandle wraps backend in a Handle holding one reference.
func NewHandle(backend Backend) *Handle {
	h := &Handle{
		backend: backend,
		caps:    backend.Capabilities(),
	}
	h.refs.Store(1)
	logger.Get().Info("render: context created", "backend", h.caps.Name)
	return h
}

// Lock acquires exclusive use of the backend. The returned session must be
// released with Unlock. Lock fails with ErrContextUnavailable once the handle
// is closed.
func (h *Handle) Lock() (*Session, error) {
	if h == nil {
		return nil, ErrContextUnavailable
	}
	h.mu.Lock()
	if h.closed.Load() {
		h.mu.Unlock()
		return nil, ErrContextUnavailable
	}
	return &Session{h: h, locked: true}, nil
}

// Capabilities returns the backend limits captured at creation.
func (h *Handle) Capabilities() Capabilities {
	return h.caps
}

// Retain adds a reference and returns h.
func (h *Handle) Retain() *Handle {
	h.refs.Add(1)
	return h
}

// Release drops a reference, closing the handle at zero.
func (h *Handle) Release() {
	if h.refs.Add(-1) == 0 {
		h.Close()
	}
}

// Closed reports whether the handle has been closed.
func (h *Handle) Closed() bool {
	return h.closed.Load()
}

// Close marks the handle unavailable and destroys the backend. It waits for
// the current session, if any, to unlock. Close is idempotent.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed.Swap(true) {
		return
	}
	if d, ok := h.backend.(Destroyer); ok {
		d.Destroy()
	}
	logger.Get().Info("render: context closed", "backend", h.caps.Name)
}

// Session is exclusive access to a Backend obtained from Handle.Lock.
// All Backend methods are available on it until Unlock.
type Session struct {
	h      *Handle
	locked bool
}

// Backend returns the locked backend.
func (s *Session) Backend() Backend {
	return s.h.backend
}

// Unlock releases the session. Calling Unlock twice is a no-op.
func (s *Session) Unlock() {
	if !s.locked {
		return
	}
	s.locked = false
	s.h.mu.Unlock()
}
