package text

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/gfx/internal/cache"
	"github.com/gogpu/gfx/internal/logger"
	"github.com/gogpu/gfx/render"
)

// Default atlas settings.
const (
	// DefaultAtlasSize is the initial edge of a font's atlas texture.
	DefaultAtlasSize = 512

	// DefaultMaxAtlasSize caps atlas growth when the backend allows more.
	DefaultMaxAtlasSize = 4096

	// DefaultAtlasPadding is the gap between glyphs, in pixels.
	DefaultAtlasPadding = 1

	// DefaultLayoutCache is the per-shard capacity of the layout cache.
	DefaultLayoutCache = 64

	// maxCachedLayout is the longest string, in bytes, whose layout is
	// cached.
	maxCachedLayout = 256

	// DefaultPopulateSize is the pixel size pre-rasterized by Populate
	// callers that have no better guess.
	DefaultPopulateSize = 15
)

// Glyph locates a rasterized character in its font's atlas.
type Glyph struct {
	// Rect is the glyph's pixel rectangle in the atlas. It never moves.
	Rect Rect

	// OffsetX and OffsetY place Rect relative to the pen position on the
	// baseline.
	OffsetX float32
	OffsetY float32

	// Advance is the horizontal pen advance in pixels.
	Advance float32
}

// AtlasView is a consistent snapshot of a font's atlas texture.
type AtlasView struct {
	Texture render.TextureID
	Width   int
	Height  int
}

// UV returns the normalized texture coordinates of r in this view.
func (v AtlasView) UV(r Rect) (u0, v0, u1, v1 float32) {
	w, h := float32(v.Width), float32(v.Height)
	return float32(r.X) / w, float32(r.Y) / h, float32(r.X+r.W) / w, float32(r.Y+r.H) / h
}

// AtlasConfig configures an AtlasStore.
type AtlasConfig struct {
	// InitialSize is the first atlas edge in pixels.
	InitialSize int

	// MaxSize caps growth; it is further capped by the backend limit.
	MaxSize int

	// Padding is the gap between glyphs.
	Padding int

	// Rasterizer produces glyph bitmaps. Nil selects OpenTypeRasterizer.
	Rasterizer Rasterizer

	// LayoutCache is the per-shard capacity of the layout cache; the cache
	// has 16 shards.
	LayoutCache int
}

// AtlasStats reports atlas store activity.
type AtlasStats struct {
	Hits       uint64
	Misses     uint64
	Rasterized uint64
	Uploads    uint64
	Growths    uint64
	Fonts      int
	Glyphs     int

	LayoutHits   uint64
	LayoutMisses uint64
}

type layoutKey struct {
	font uint64
	s    string
	size fixed.Int26_6
}

type glyphKey struct {
	r    rune
	size fixed.Int26_6
}

// fontAtlas is one font's texture and glyph table.
type fontAtlas struct {
	texture render.TextureID
	size    int
	alloc   *ShelfAllocator
	shadow  []byte // CPU copy of the texture, premultiplied RGBA
	glyphs  map[glyphKey]Glyph
}

// retired records a texture replaced by growth.
type retired struct {
	font uint64
	size int
}

// AtlasStore caches rasterized glyphs in per-font atlas textures shared by
// every canvas of a session.
//
// Each (font, character, size) is rasterized and uploaded at most once.
// Cached lookups take a read lock only. When an atlas is full it grows to
// twice its size: a larger texture is created, the CPU shadow copy is
// uploaded into it at the same pixel positions and the old texture is
// destroyed. Textures replaced this way are remembered so batches built
// against them can be remapped with Resolve before drawing.
//
// The store lock is never acquired while a render.Session is held.
type AtlasStore struct {
	gpu     *render.Handle
	raster  Rasterizer
	initial int
	max     int
	padding int

	layouts *cache.Cache[layoutKey, Line]

	mu      sync.RWMutex
	atlases map[uint64]*fontAtlas
	retired map[render.TextureID]retired
	closed  bool

	hits       atomic.Uint64
	misses     atomic.Uint64
	rasterized atomic.Uint64
	uploads    atomic.Uint64
	growths    atomic.Uint64
}

// NewAtlasStore creates a store bound to the shared GPU handle.
func NewAtlasStore(gpu *render.Handle, cfg AtlasConfig) *AtlasStore {
	if cfg.InitialSize <= 0 {
		cfg.InitialSize = DefaultAtlasSize
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxAtlasSize
	}
	if limit := gpu.Capabilities().MaxTextureSize; limit > 0 && cfg.MaxSize > limit {
		cfg.MaxSize = limit
	}
	if cfg.InitialSize > cfg.MaxSize {
		cfg.InitialSize = cfg.MaxSize
	}
	if cfg.Padding < 0 {
		cfg.Padding = DefaultAtlasPadding
	}
	if cfg.Rasterizer == nil {
		cfg.Rasterizer = OpenTypeRasterizer{}
	}
	if cfg.LayoutCache <= 0 {
		cfg.LayoutCache = DefaultLayoutCache
	}
	return &AtlasStore{
		gpu:     gpu,
		raster:  cfg.Rasterizer,
		initial: cfg.InitialSize,
		max:     cfg.MaxSize,
		padding: cfg.Padding,
		layouts: cache.New[layoutKey, Line](cfg.LayoutCache),
		atlases: make(map[uint64]*fontAtlas),
		retired: make(map[render.TextureID]retired),
	}
}

// GetOrRasterize returns the atlas entry for r at size, rasterizing and
// uploading it on first use. Failures are *render.ResourceError values.
func (s *AtlasStore) GetOrRasterize(f *Font, r rune, size float32) (Glyph, error) {
	if f == nil {
		return Glyph{}, &render.ResourceError{Op: "glyph", Resource: fmt.Sprintf("%q", r), Err: ErrNilFont}
	}
	key, err := sizeKey(size)
	if err != nil {
		return Glyph{}, glyphError(r, size, err)
	}
	k := glyphKey{r: r, size: key}

	s.mu.RLock()
	if a := s.atlases[f.id]; a != nil && !s.closed {
		if g, ok := a.glyphs[k]; ok {
			s.mu.RUnlock()
			s.hits.Add(1)
			return g, nil
		}
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrRasterizeLocked(f, k, size)
}

// Glyphs resolves every rune of text at size and returns them with the
// atlas view that is current once all of them are resident. Either all
// glyphs resolve or an error is returned.
func (s *AtlasStore) Glyphs(f *Font, runes []rune, size float32) ([]Glyph, AtlasView, error) {
	if f == nil {
		return nil, AtlasView{}, &render.ResourceError{Op: "glyph", Resource: "text", Err: ErrNilFont}
	}
	key, err := sizeKey(size)
	if err != nil {
		return nil, AtlasView{}, glyphError(0, size, err)
	}
	out := make([]Glyph, len(runes))

	s.mu.RLock()
	a := s.atlases[f.id]
	complete := a != nil && !s.closed
	if complete {
		for i, r := range runes {
			g, ok := a.glyphs[glyphKey{r: r, size: key}]
			if !ok {
				complete = false
				break
			}
			out[i] = g
		}
	}
	if complete {
		view := a.view()
		s.mu.RUnlock()
		s.hits.Add(uint64(len(runes)))
		return out, view, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range runes {
		g, err := s.getOrRasterizeLocked(f, glyphKey{r: r, size: key}, size)
		if err != nil {
			return nil, AtlasView{}, err
		}
		out[i] = g
	}
	a = s.atlases[f.id]
	if a == nil {
		return out, AtlasView{}, nil
	}
	return out, a.view(), nil
}

// Populate pre-rasterizes chars at size. Characters the rasterizer
// reports as missing are skipped; any other failure stops population.
func (s *AtlasStore) Populate(f *Font, chars []rune, size float32) error {
	if _, _, err := s.Glyphs(f, chars, size); !errors.Is(err, ErrGlyphNotFound) {
		return err
	}
	skipped := 0
	for _, r := range chars {
		if _, err := s.GetOrRasterize(f, r, size); err != nil {
			if !errors.Is(err, ErrGlyphNotFound) {
				return err
			}
			skipped++
		}
	}
	logger.Get().Debug("text: populate skipped missing glyphs", "font", f.Name(), "skipped", skipped)
	return nil
}

// Atlas returns the current view of f's atlas.
func (s *AtlasStore) Atlas(f *Font) (AtlasView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a := s.atlases[f.id]
	if a == nil || a.texture == 0 {
		return AtlasView{}, false
	}
	return a.view(), true
}

// Resolve maps a texture id to the atlas texture that replaced it. It
// returns the current id and the factor by which normalized UVs built
// against the old texture must be scaled. Ids that were never replaced
// are returned unchanged with scale 1.
func (s *AtlasStore) Resolve(id render.TextureID) (render.TextureID, float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	old, ok := s.retired[id]
	if !ok {
		return id, 1
	}
	a := s.atlases[old.font]
	if a == nil {
		return 0, 1
	}
	return a.texture, float32(old.size) / float32(a.size)
}

// Layout is text.Layout memoized for the lifetime of the store. Canvases
// redrawn every frame tend to repeat the same strings, and shaping costs
// more than the glyph lookups that follow. The returned Line may be shared
// and must not be modified.
func (s *AtlasStore) Layout(f *Font, str string, size float32) (Line, error) {
	if f == nil {
		return Line{}, ErrNilFont
	}
	key, err := sizeKey(size)
	if err != nil {
		return Line{}, err
	}
	if len(str) > maxCachedLayout {
		return Layout(f, str, size)
	}
	k := layoutKey{font: f.id, s: str, size: key}
	if line, ok := s.layouts.Get(k); ok {
		return line, nil
	}
	line, err := Layout(f, str, size)
	if err != nil {
		return Line{}, err
	}
	s.layouts.Set(k, line)
	return line, nil
}

// Stats returns store counters.
func (s *AtlasStore) Stats() AtlasStats {
	s.mu.RLock()
	fonts, glyphs := len(s.atlases), 0
	for _, a := range s.atlases {
		glyphs += len(a.glyphs)
	}
	s.mu.RUnlock()
	ls := s.layouts.Stats()
	return AtlasStats{
		Hits:       s.hits.Load(),
		Misses:     s.misses.Load(),
		Rasterized: s.rasterized.Load(),
		Uploads:    s.uploads.Load(),
		Growths:    s.growths.Load(),
		Fonts:      fonts,
		Glyphs:     glyphs,

		LayoutHits:   ls.Hits,
		LayoutMisses: ls.Misses,
	}
}

// Close destroys every atlas texture. Later lookups fail with
// ErrStoreClosed.
func (s *AtlasStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.layouts.Clear()
	sess, err := s.gpu.Lock()
	if err == nil {
		for _, a := range s.atlases {
			if a.texture != 0 {
				sess.Backend().DestroyTexture(a.texture)
			}
		}
		sess.Unlock()
	}
	s.atlases = make(map[uint64]*fontAtlas)
	s.retired = make(map[render.TextureID]retired)
}

func (a *fontAtlas) view() AtlasView {
	return AtlasView{Texture: a.texture, Width: a.size, Height: a.size}
}

// getOrRasterizeLocked must be called with s.mu held for writing.
func (s *AtlasStore) getOrRasterizeLocked(f *Font, k glyphKey, size float32) (Glyph, error) {
	if s.closed {
		return Glyph{}, glyphError(k.r, size, ErrStoreClosed)
	}
	a := s.atlases[f.id]
	if a == nil {
		a = &fontAtlas{
			size:   s.initial,
			alloc:  NewShelfAllocator(s.initial, s.initial, s.padding),
			shadow: make([]byte, s.initial*s.initial*4),
			glyphs: make(map[glyphKey]Glyph),
		}
		s.atlases[f.id] = a
	}
	if g, ok := a.glyphs[k]; ok {
		s.hits.Add(1)
		return g, nil
	}
	s.misses.Add(1)

	bm, err := s.raster.Rasterize(f, k.r, size)
	if err != nil {
		return Glyph{}, glyphError(k.r, size, err)
	}
	s.rasterized.Add(1)

	g := Glyph{
		OffsetX: float32(bm.OffsetX),
		OffsetY: float32(bm.OffsetY),
		Advance: bm.Advance,
	}
	if bm.Width > 0 && bm.Height > 0 {
		rect, err := s.allocate(f.id, a, bm.Width, bm.Height)
		if err != nil {
			return Glyph{}, glyphError(k.r, size, err)
		}
		a.blit(rect, bm)
		if err := s.upload(a, rect); err != nil {
			return Glyph{}, glyphError(k.r, size, err)
		}
		g.Rect = rect
	}
	a.glyphs[k] = g
	return g, nil
}

// allocate reserves space, growing the atlas while it is below the maximum.
func (s *AtlasStore) allocate(fontID uint64, a *fontAtlas, w, h int) (Rect, error) {
	for {
		if r, ok := a.alloc.Allocate(w, h); ok {
			return r, nil
		}
		if a.size >= s.max {
			return Rect{}, fmt.Errorf("%w: %dx%d glyph in %dx%d atlas", ErrAtlasFull, w, h, a.size, a.size)
		}
		if err := s.grow(fontID, a); err != nil {
			return Rect{}, err
		}
	}
}

// grow doubles the atlas, keeping every glyph at its pixel position.
func (s *AtlasStore) grow(fontID uint64, a *fontAtlas) error {
	newSize := min(a.size*2, s.max)
	shadow := make([]byte, newSize*newSize*4)
	for y := 0; y < a.size; y++ {
		copy(shadow[y*newSize*4:], a.shadow[y*a.size*4:(y+1)*a.size*4])
	}

	oldTex, oldSize := a.texture, a.size
	if oldTex != 0 {
		sess, err := s.gpu.Lock()
		if err != nil {
			return err
		}
		id, err := sess.Backend().CreateTexture(render.TextureDescriptor{
			Label:  "gfx-glyph-atlas",
			Width:  newSize,
			Height: newSize,
			Format: gputypes.TextureFormatRGBA8Unorm,
		}, shadow)
		if err != nil {
			sess.Unlock()
			return err
		}
		sess.Backend().DestroyTexture(oldTex)
		sess.Unlock()
		s.uploads.Add(1)

		a.texture = id
		s.retired[oldTex] = retired{font: fontID, size: oldSize}
	}
	a.size = newSize
	a.shadow = shadow
	a.alloc.Grow(newSize, newSize)
	s.growths.Add(1)

	logger.Get().Debug("text: atlas grown", "font", fontID, "from", oldSize, "to", newSize)
	return nil
}

// blit writes bm into the shadow copy as premultiplied white.
func (a *fontAtlas) blit(r Rect, bm *Bitmap) {
	for y := 0; y < r.H; y++ {
		row := ((r.Y+y)*a.size + r.X) * 4
		for x := 0; x < r.W; x++ {
			c := bm.Pix[y*bm.Width+x]
			o := row + x*4
			a.shadow[o], a.shadow[o+1], a.shadow[o+2], a.shadow[o+3] = c, c, c, c
		}
	}
}

// upload sends r to the GPU, creating the atlas texture on first use.
func (s *AtlasStore) upload(a *fontAtlas, r Rect) error {
	sess, err := s.gpu.Lock()
	if err != nil {
		return err
	}
	defer sess.Unlock()
	b := sess.Backend()

	if a.texture == 0 {
		id, err := b.CreateTexture(render.TextureDescriptor{
			Label:  "gfx-glyph-atlas",
			Width:  a.size,
			Height: a.size,
			Format: gputypes.TextureFormatRGBA8Unorm,
		}, a.shadow)
		if err != nil {
			return err
		}
		a.texture = id
		s.uploads.Add(1)
		return nil
	}

	region := make([]byte, 0, r.W*r.H*4)
	for y := 0; y < r.H; y++ {
		row := ((r.Y+y)*a.size + r.X) * 4
		region = append(region, a.shadow[row:row+r.W*4]...)
	}
	if err := b.UpdateTexture(a.texture, r.X, r.Y, r.W, r.H, region); err != nil {
		return err
	}
	s.uploads.Add(1)
	return nil
}

func glyphError(r rune, size float32, err error) error {
	return &render.ResourceError{
		Op:       "glyph",
		Resource: fmt.Sprintf("%q@%g", r, size),
		Err:      err,
	}
}
