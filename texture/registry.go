package texture

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gfx/internal/logger"
	"github.com/gogpu/gfx/render"
	"github.com/gogpu/gputypes"
)

// Registry errors.
var (
	// ErrReleased is returned when a handle is used after its last release.
	ErrReleased = errors.New("texture: handle already released")

	// ErrPixelSize is returned when pixel data does not match width*height*4.
	ErrPixelSize = errors.New("texture: pixel data size mismatch")

	// ErrForeignHandle is returned when a handle from another registry is passed.
	ErrForeignHandle = errors.New("texture: handle belongs to another registry")
)

// Handle is a reference-counted texture. The GPU texture is freed exactly
// once, when the last reference is released.
type Handle struct {
	reg    *Registry
	id     render.TextureID
	width  int
	height int
	refs   int // guarded by reg.mu
}

// ID returns the backend texture id used in render state.
func (h *Handle) ID() render.TextureID { return h.id }

// Width returns the texture width in pixels.
func (h *Handle) Width() int { return h.width }

// Height returns the texture height in pixels.
func (h *Handle) Height() int { return h.height }

// Size returns the texture size as an image.Point.
func (h *Handle) Size() image.Point { return image.Pt(h.width, h.height) }

// Retain adds a reference. It is shorthand for Registry.Retain.
func (h *Handle) Retain() (*Handle, error) { return h.reg.Retain(h) }

// Release drops a reference. It is shorthand for Registry.Release.
func (h *Handle) Release() error { return h.reg.Release(h) }

// Stats reports registry activity.
type Stats struct {
	Live    int
	Created uint64
	Freed   uint64
}

// Registry owns every texture registered through a session.
//
// Registry is safe for concurrent use. GPU work happens under the shared
// render.Handle.
type Registry struct {
	gpu *render.Handle

	mu   sync.Mutex
	live map[render.TextureID]*Handle

	created atomic.Uint64
	freed   atomic.Uint64
}

// NewRegistry creates a registry bound to the shared GPU handle.
func NewRegistry(gpu *render.Handle) *Registry {
	return &Registry{
		gpu:  gpu,
		live: make(map[render.TextureID]*Handle),
	}
}

// Register uploads premultiplied RGBA8 pixels as a new texture with one
// reference. Dimensions above the backend limit fail with
// *render.UnsupportedFormatError and are not retried.
func (r *Registry) Register(pixels []byte, width, height int) (*Handle, error) {
	limit := r.gpu.Capabilities().MaxTextureSize
	if width <= 0 || height <= 0 || (limit > 0 && (width > limit || height > limit)) {
		return nil, &render.UnsupportedFormatError{
			Width:  width,
			Height: height,
			Format: gputypes.TextureFormatRGBA8Unorm,
			Limit:  limit,
		}
	}
	if len(pixels) != width*height*4 {
		return nil, fmt.Errorf("%w: got %d bytes for %dx%d", ErrPixelSize, len(pixels), width, height)
	}

	s, err := r.gpu.Lock()
	if err != nil {
		return nil, err
	}
	id, err := s.Backend().CreateTexture(render.TextureDescriptor{
		Label:  "gfx-texture",
		Width:  width,
		Height: height,
		Format: gputypes.TextureFormatRGBA8Unorm,
	}, pixels)
	s.Unlock()
	if err != nil {
		return nil, fmt.Errorf("texture: create %dx%d: %w", width, height, err)
	}

	h := &Handle{reg: r, id: id, width: width, height: height, refs: 1}
	r.mu.Lock()
	r.live[id] = h
	r.mu.Unlock()
	r.created.Add(1)

	logger.Get().Debug("texture: registered", "id", id, "width", width, "height", height)
	return h, nil
}

// RegisterImage converts img to RGBA and registers it.
func (r *Registry) RegisterImage(img image.Image) (*Handle, error) {
	rgba := ToRGBA(img)
	return r.Register(rgba.Pix, rgba.Bounds().Dx(), rgba.Bounds().Dy())
}

// Load decodes encoded image bytes and registers the result.
func (r *Registry) Load(data []byte) (*Handle, error) {
	img, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return r.RegisterImage(img)
}

// Retain adds a reference to h.
func (r *Registry) Retain(h *Handle) (*Handle, error) {
	if h.reg != r {
		return nil, ErrForeignHandle
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h.refs <= 0 {
		return nil, ErrReleased
	}
	h.refs++
	return h, nil
}

// Release drops a reference to h. The GPU texture is destroyed when the
// count reaches zero; further releases return ErrReleased.
func (r *Registry) Release(h *Handle) error {
	if h.reg != r {
		return ErrForeignHandle
	}
	r.mu.Lock()
	if h.refs <= 0 {
		r.mu.Unlock()
		return ErrReleased
	}
	h.refs--
	if h.refs > 0 {
		r.mu.Unlock()
		return nil
	}
	delete(r.live, h.id)
	r.mu.Unlock()

	r.destroy(h.id)
	return nil
}

func (r *Registry) destroy(id render.TextureID) {
	r.freed.Add(1)
	s, err := r.gpu.Lock()
	if err != nil {
		// The backend took its textures down with it.
		logger.Get().Warn("texture: release after context closed", "id", id)
		return
	}
	s.Backend().DestroyTexture(id)
	s.Unlock()
	logger.Get().Debug("texture: freed", "id", id)
}

// Update writes a w*h region of premultiplied RGBA8 pixels at (x, y).
func (r *Registry) Update(h *Handle, x, y, w, ht int, pixels []byte) error {
	r.mu.Lock()
	alive := h.refs > 0
	r.mu.Unlock()
	if !alive {
		return ErrReleased
	}
	if len(pixels) != w*ht*4 {
		return fmt.Errorf("%w: got %d bytes for %dx%d", ErrPixelSize, len(pixels), w, ht)
	}
	s, err := r.gpu.Lock()
	if err != nil {
		return err
	}
	defer s.Unlock()
	return s.Backend().UpdateTexture(h.id, x, y, w, ht, pixels)
}

// Len returns the number of live textures.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// Stats returns registry counters.
func (r *Registry) Stats() Stats {
	return Stats{Live: r.Len(), Created: r.created.Load(), Freed: r.freed.Load()}
}

// Close destroys every live texture regardless of its reference count.
func (r *Registry) Close() {
	r.mu.Lock()
	live := r.live
	r.live = make(map[render.TextureID]*Handle)
	for _, h := range live {
		h.refs = 0
	}
	r.mu.Unlock()

	for id := range live {
		r.destroy(id)
	}
}
