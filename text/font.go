package text

import (
	"bytes"
	"math"
	"sync"
	"sync/atomic"

	gotext "github.com/go-text/typesetting/font"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"

	"github.com/gogpu/gfx/internal/logger"
	"github.com/gogpu/gfx/render"
)

var fontIDs atomic.Uint64

// Font is a parsed TrueType or OpenType font.
//
// A Font is safe for concurrent use. Faces at a given pixel size are
// created on demand and cached; access to them is serialized because
// x/image faces keep internal buffers.
type Font struct {
	id   uint64
	name string
	sfnt *opentype.Font

	// shaping is the go-text parse of the same bytes, nil when go-text
	// could not read the font. Layout then falls back to sfnt advances.
	shaping *gotext.Font

	mu    sync.Mutex
	faces map[fixed.Int26_6]font.Face
}

// Metrics are vertical font metrics in pixels at a given size.
type Metrics struct {
	Ascent     float32
	Descent    float32
	LineHeight float32
}

// ParseFont parses TTF or OTF bytes. Malformed data yields a
// *render.DecodeError.
func ParseFont(data []byte) (*Font, error) {
	if len(data) == 0 {
		return nil, &render.DecodeError{Kind: "font", Err: ErrEmptyFontData}
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		return nil, &render.DecodeError{Kind: "font", Err: err}
	}

	f := &Font{
		id:    fontIDs.Add(1),
		sfnt:  parsed,
		faces: make(map[fixed.Int26_6]font.Face),
	}
	var buf sfnt.Buffer
	if name, err := parsed.Name(&buf, sfnt.NameIDFull); err == nil {
		f.name = name
	}
	if face, err := gotext.ParseTTF(bytes.NewReader(data)); err == nil {
		f.shaping = face.Font
	} else {
		logger.Get().Debug("text: shaping unavailable, using font advances", "font", f.name, "err", err)
	}
	return f, nil
}

// ID returns a process-unique font identity.
func (f *Font) ID() uint64 { return f.id }

// Name returns the full font name, or "" if the font has none.
func (f *Font) Name() string { return f.name }

// HasGlyph reports whether the font maps r to a glyph other than .notdef.
func (f *Font) HasGlyph(r rune) bool {
	var buf sfnt.Buffer
	idx, err := f.sfnt.GlyphIndex(&buf, r)
	return err == nil && idx != 0
}

// Metrics returns the vertical metrics at size pixels per em.
func (f *Font) Metrics(size float32) (Metrics, error) {
	var m Metrics
	err := f.withFace(size, func(face font.Face) error {
		fm := face.Metrics()
		m = Metrics{
			Ascent:     fixedToFloat(fm.Ascent),
			Descent:    fixedToFloat(fm.Descent),
			LineHeight: fixedToFloat(fm.Height),
		}
		return nil
	})
	return m, err
}

// withFace runs fn with the cached face for size. Faces are not safe for
// concurrent use, so fn runs under the font lock.
func (f *Font) withFace(size float32, fn func(font.Face) error) error {
	key, err := sizeKey(size)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	face, ok := f.faces[key]
	if !ok {
		face, err = opentype.NewFace(f.sfnt, &opentype.FaceOptions{
			Size:    float64(size),
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return err
		}
		f.faces[key] = face
	}
	return fn(face)
}

// sizeKey quantizes a pixel size to 26.6 fixed point.
func sizeKey(size float32) (fixed.Int26_6, error) {
	if size <= 0 || math.IsNaN(float64(size)) || math.IsInf(float64(size), 0) {
		return 0, ErrInvalidSize
	}
	return fixed.Int26_6(math.Round(float64(size) * 64)), nil
}

func fixedToFloat(v fixed.Int26_6) float32 {
	return float32(v) / 64
}
