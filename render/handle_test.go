// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"sync"
	"testing"
)

// destroyCounter wraps SoftwareBackend and counts Destroy calls.
type destroyCounter struct {
	*SoftwareBackend
	destroyed int
}

func (d *destroyCounter) Destroy() { d.destroyed++ }

func TestHandleLockUnlock(t *testing.T) {
	h := NewHandle(NewSoftwareBackend(NewPixmapTarget(4, 4)))
	defer h.Release()

	s, err := h.Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if s.Backend() == nil {
		t.Fatal("session backend is nil")
	}
	s.Unlock()
	s.Unlock() // second unlock is a no-op

	s2, err := h.Lock()
	if err != nil {
		t.Fatalf("Lock after Unlock: %v", err)
	}
	s2.Unlock()
}

func TestHandleSerializesSessions(t *testing.T) {
	h := NewHandle(NewSoftwareBackend(NewPixmapTarget(4, 4)))
	defer h.Release()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		overlap bool
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := h.Lock()
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			active++
			if active > 1 {
				overlap = true
			}
			mu.Unlock()

			_ = s.Backend().Clear(&Black, nil, nil)

			mu.Lock()
			active--
			mu.Unlock()
			s.Unlock()
		}()
	}
	wg.Wait()
	if overlap {
		t.Error("two sessions were active at the same time")
	}
}

func TestHandleClosedIsUnavailable(t *testing.T) {
	h := NewHandle(NewSoftwareBackend(NewPixmapTarget(4, 4)))
	h.Close()

	if !h.Closed() {
		t.Error("Closed() = false after Close")
	}
	if _, err := h.Lock(); !errors.Is(err, ErrContextUnavailable) {
		t.Errorf("Lock on closed handle: got %v, want ErrContextUnavailable", err)
	}

	var nilHandle *Handle
	if _, err := nilHandle.Lock(); !errors.Is(err, ErrContextUnavailable) {
		t.Errorf("Lock on nil handle: got %v, want ErrContextUnavailable", err)
	}
}

func TestHandleRefcountDestroysOnce(t *testing.T) {
	backend := &destroyCounter{SoftwareBackend: NewSoftwareBackend(NewPixmapTarget(2, 2))}
	h := NewHandle(backend)
	h.Retain()
	h.Retain()

	h.Release()
	h.Release()
	if backend.destroyed != 0 {
		t.Fatalf("destroyed after 2 of 3 releases")
	}
	h.Release()
	if backend.destroyed != 1 {
		t.Fatalf("destroyed = %d, want 1", backend.destroyed)
	}
	h.Close()
	if backend.destroyed != 1 {
		t.Fatalf("Close after final release destroyed again")
	}
}
