package text

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/image/font/gofont/goregular"

	"github.com/gogpu/gfx/render"
)

// countingRasterizer counts calls per rune on top of another rasterizer.
type countingRasterizer struct {
	inner Rasterizer
	calls atomic.Int32
	fail  error
}

func (c *countingRasterizer) Rasterize(f *Font, r rune, size float32) (*Bitmap, error) {
	c.calls.Add(1)
	if c.fail != nil {
		return nil, c.fail
	}
	return c.inner.Rasterize(f, r, size)
}

func testFont(t testing.TB) *Font {
	t.Helper()
	f, err := ParseFont(goregular.TTF)
	if err != nil {
		t.Fatalf("ParseFont: %v", err)
	}
	return f
}

func newTestStore(t *testing.T, cfg AtlasConfig) (*AtlasStore, *render.SoftwareBackend, *countingRasterizer) {
	t.Helper()
	backend := render.NewSoftwareBackend(render.NewPixmapTarget(8, 8))
	h := render.NewHandle(backend)
	t.Cleanup(h.Release)
	cr := &countingRasterizer{inner: OpenTypeRasterizer{}}
	cfg.Rasterizer = cr
	return NewAtlasStore(h, cfg), backend, cr
}

func TestAtlasRasterizesOnce(t *testing.T) {
	store, backend, cr := newTestStore(t, AtlasConfig{})
	f := testFont(t)

	g1, err := store.GetOrRasterize(f, 'A', 30)
	if err != nil {
		t.Fatalf("GetOrRasterize: %v", err)
	}
	uploads := backend.Stats().Uploads
	g2, err := store.GetOrRasterize(f, 'A', 30)
	if err != nil {
		t.Fatalf("second GetOrRasterize: %v", err)
	}

	if g1 != g2 {
		t.Errorf("cached glyph differs: %+v vs %+v", g1, g2)
	}
	if g1.Rect.Empty() {
		t.Error("'A' has an empty atlas rect")
	}
	if got := cr.calls.Load(); got != 1 {
		t.Errorf("rasterized %d times, want 1", got)
	}
	if got := backend.Stats().Uploads; got != uploads {
		t.Errorf("cache hit uploaded (%d -> %d)", uploads, got)
	}
	st := store.Stats()
	if st.Rasterized != 1 || st.Uploads != 1 || st.Hits != 1 || st.Misses != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestAtlasKeyIncludesSize(t *testing.T) {
	store, _, cr := newTestStore(t, AtlasConfig{})
	f := testFont(t)

	a30, _ := store.GetOrRasterize(f, 'A', 30)
	a15, _ := store.GetOrRasterize(f, 'A', 15)
	if a30.Rect == a15.Rect {
		t.Error("sizes 15 and 30 share an atlas rect")
	}
	if cr.calls.Load() != 2 {
		t.Errorf("rasterized %d times, want 2", cr.calls.Load())
	}
}

func TestAtlasBlankGlyph(t *testing.T) {
	store, _, _ := newTestStore(t, AtlasConfig{})
	f := testFont(t)

	g, err := store.GetOrRasterize(f, ' ', 20)
	if err != nil {
		t.Fatal(err)
	}
	if !g.Rect.Empty() || g.Advance <= 0 {
		t.Errorf("space = %+v, want empty rect with positive advance", g)
	}
}

func TestAtlasConcurrentMissRasterizesOnce(t *testing.T) {
	store, _, cr := newTestStore(t, AtlasConfig{})
	f := testFont(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.GetOrRasterize(f, 'Q', 24); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if got := cr.calls.Load(); got != 1 {
		t.Errorf("rasterized %d times under contention, want 1", got)
	}
}

func TestAtlasGrowthPreservesRects(t *testing.T) {
	store, backend, _ := newTestStore(t, AtlasConfig{InitialSize: 32, MaxSize: 1024, Padding: 1})
	f := testFont(t)

	first, err := store.GetOrRasterize(f, 'W', 24)
	if err != nil {
		t.Fatal(err)
	}
	before, ok := store.Atlas(f)
	if !ok {
		t.Fatal("no atlas after first glyph")
	}
	beforePix, _, _, _ := backend.TexturePixels(before.Texture)
	firstPix := regionOf(beforePix, before.Width, first.Rect)

	if err := store.Populate(f, []rune("ABCDEFGHIJKLMNOPQRSTUVXYZ0123456789"), 24); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	after, _ := store.Atlas(f)
	if after.Width <= before.Width {
		t.Fatalf("atlas did not grow: %d -> %d", before.Width, after.Width)
	}
	if store.Stats().Growths == 0 {
		t.Error("Growths = 0")
	}

	again, _ := store.GetOrRasterize(f, 'W', 24)
	if again.Rect != first.Rect {
		t.Errorf("rect moved on growth: %v -> %v", first.Rect, again.Rect)
	}

	afterPix, _, _, ok := backend.TexturePixels(after.Texture)
	if !ok {
		t.Fatal("grown texture not in backend")
	}
	if got := regionOf(afterPix, after.Width, first.Rect); string(got) != string(firstPix) {
		t.Error("glyph pixels differ after growth")
	}
	if _, _, _, ok := backend.TexturePixels(before.Texture); ok {
		t.Error("retired atlas texture was not destroyed")
	}

	id, scale := store.Resolve(before.Texture)
	if id != after.Texture {
		t.Errorf("Resolve(%d) = %d, want %d", before.Texture, id, after.Texture)
	}
	if want := float32(before.Width) / float32(after.Width); scale != want {
		t.Errorf("Resolve scale = %v, want %v", scale, want)
	}
	if id, scale := store.Resolve(after.Texture); id != after.Texture || scale != 1 {
		t.Errorf("Resolve(current) = %d, %v", id, scale)
	}
}

func TestAtlasFull(t *testing.T) {
	store, _, _ := newTestStore(t, AtlasConfig{InitialSize: 16, MaxSize: 32})
	f := testFont(t)

	_, err := store.GetOrRasterize(f, 'M', 200)
	if !errors.Is(err, ErrAtlasFull) {
		t.Fatalf("got %v, want ErrAtlasFull", err)
	}
	var re *render.ResourceError
	if !errors.As(err, &re) {
		t.Errorf("got %T, want *render.ResourceError", err)
	}
}

func TestAtlasRasterizerFailure(t *testing.T) {
	store, _, cr := newTestStore(t, AtlasConfig{})
	cr.fail = ErrGlyphNotFound
	f := testFont(t)

	_, _, err := store.Glyphs(f, []rune("ok"), 12)
	if !errors.Is(err, render.ErrResource) || !errors.Is(err, ErrGlyphNotFound) {
		t.Errorf("got %v, want ResourceError wrapping ErrGlyphNotFound", err)
	}
}

// missingRasterizer reports one rune as absent from the font.
type missingRasterizer struct {
	missing rune
}

func (m missingRasterizer) Rasterize(f *Font, r rune, size float32) (*Bitmap, error) {
	if r == m.missing {
		return nil, ErrGlyphNotFound
	}
	return OpenTypeRasterizer{}.Rasterize(f, r, size)
}

func TestPopulateSkipsMissingGlyphs(t *testing.T) {
	h := render.NewHandle(render.NewSoftwareBackend(render.NewPixmapTarget(8, 8)))
	t.Cleanup(h.Release)
	store := NewAtlasStore(h, AtlasConfig{Rasterizer: missingRasterizer{missing: 'Q'}})
	f := testFont(t)

	if err := store.Populate(f, []rune("PQRS"), 15); err != nil {
		t.Fatalf("Populate: %v", err)
	}
	before := store.Stats().Rasterized
	if _, _, err := store.Glyphs(f, []rune("PRS"), 15); err != nil {
		t.Fatalf("Glyphs: %v", err)
	}
	if got := store.Stats().Rasterized; got != before {
		t.Errorf("populated glyphs rasterized again: %d -> %d", before, got)
	}
	if _, err := store.GetOrRasterize(f, 'Q', 15); !errors.Is(err, ErrGlyphNotFound) {
		t.Errorf("missing glyph: %v, want ErrGlyphNotFound", err)
	}
}

func TestPopulateStopsOnOtherErrors(t *testing.T) {
	store, _, cr := newTestStore(t, AtlasConfig{})
	cr.fail = errors.New("rasterizer broken")
	if err := store.Populate(testFont(t), []rune("ab"), 15); !errors.Is(err, cr.fail) {
		t.Errorf("Populate = %v, want rasterizer error", err)
	}
}

func TestAtlasInvalidInputs(t *testing.T) {
	store, _, _ := newTestStore(t, AtlasConfig{})
	f := testFont(t)

	if _, err := store.GetOrRasterize(nil, 'A', 10); !errors.Is(err, ErrNilFont) {
		t.Errorf("nil font: %v", err)
	}
	if _, err := store.GetOrRasterize(f, 'A', 0); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("zero size: %v", err)
	}

	store.Close()
	if _, err := store.GetOrRasterize(f, 'A', 10); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("closed store: %v", err)
	}
}

func TestAtlasGlyphsHitPath(t *testing.T) {
	store, _, cr := newTestStore(t, AtlasConfig{})
	f := testFont(t)

	glyphs, view, err := store.Glyphs(f, []rune("HELLO"), 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(glyphs) != 5 || view.Texture == 0 {
		t.Fatalf("glyphs = %d, view = %+v", len(glyphs), view)
	}
	if glyphs[2] != glyphs[3] {
		t.Error("the two Ls resolved to different glyphs")
	}
	calls := cr.calls.Load()
	if _, _, err := store.Glyphs(f, []rune("HELLO"), 30); err != nil {
		t.Fatal(err)
	}
	if cr.calls.Load() != calls {
		t.Error("cached text rasterized again")
	}
	if calls != 4 {
		t.Errorf("rasterized %d distinct glyphs, want 4", calls)
	}
}

func regionOf(pix []byte, stride int, r Rect) []byte {
	var out []byte
	for y := r.Y; y < r.Y+r.H; y++ {
		off := (y*stride + r.X) * 4
		out = append(out, pix[off:off+r.W*4]...)
	}
	return out
}

func TestAtlasLayoutCached(t *testing.T) {
	store, _, _ := newTestStore(t, AtlasConfig{})
	f := testFont(t)

	first, err := store.Layout(f, "cached label", 18)
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.Layout(f, "cached label", 18)
	if err != nil {
		t.Fatal(err)
	}
	if &first.Positions[0] != &second.Positions[0] {
		t.Error("second layout was recomputed")
	}
	if st := store.Stats(); st.LayoutHits != 1 || st.LayoutMisses != 1 {
		t.Errorf("layout hits %d misses %d, want 1 and 1", st.LayoutHits, st.LayoutMisses)
	}

	third, err := store.Layout(testFont(t), "cached label", 18)
	if err != nil {
		t.Fatal(err)
	}
	if &third.Positions[0] == &first.Positions[0] {
		t.Error("layout shared between fonts")
	}
	if _, err := store.Layout(f, "x", 0); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("size 0: got %v, want ErrInvalidSize", err)
	}
}
