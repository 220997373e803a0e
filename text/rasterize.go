package text

import (
	"image"
	"unicode"

	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// tabStop is the width of '\t' in spaces.
const tabStop = 4

// Bitmap is a rasterized glyph.
type Bitmap struct {
	// Width and Height are the mask size in pixels. Both are zero for
	// blank glyphs such as space.
	Width  int
	Height int

	// Pix holds one coverage byte per pixel, row-major.
	Pix []byte

	// OffsetX and OffsetY locate the top-left corner of the mask relative
	// to the pen position on the baseline. OffsetY is negative above the
	// baseline.
	OffsetX int
	OffsetY int

	// Advance is how far the pen moves after this glyph, in pixels.
	Advance float32
}

// Rasterizer turns a character into a coverage bitmap. Implementations
// must be pure: the same inputs always give the same bitmap.
type Rasterizer interface {
	Rasterize(f *Font, r rune, size float32) (*Bitmap, error)
}

// OpenTypeRasterizer rasterizes with golang.org/x/image/font/opentype.
type OpenTypeRasterizer struct{}

// Rasterize implements Rasterizer.
//
// Control characters rasterize as blank glyphs; '\t' advances by four
// spaces. Characters the font does not map are drawn with the font's
// .notdef glyph, so any rune produces a bitmap.
func (OpenTypeRasterizer) Rasterize(f *Font, r rune, size float32) (*Bitmap, error) {
	if f == nil {
		return nil, ErrNilFont
	}
	var bm *Bitmap
	err := f.withFace(size, func(face font.Face) error {
		if unicode.IsControl(r) {
			bm = &Bitmap{}
			if r == '\t' {
				adv, _ := face.GlyphAdvance(' ')
				bm.Advance = tabStop * fixedToFloat(adv)
			}
			return nil
		}
		bounds, advance, ok := face.GlyphBounds(r)
		if !ok || !f.HasGlyph(r) {
			var err error
			bm, err = f.rasterizeNotdef(size)
			return err
		}
		minX, minY := bounds.Min.X.Floor(), bounds.Min.Y.Floor()
		maxX, maxY := bounds.Max.X.Ceil(), bounds.Max.Y.Ceil()

		bm = &Bitmap{
			OffsetX: minX,
			OffsetY: minY,
			Advance: fixedToFloat(advance),
		}
		if maxX <= minX || maxY <= minY {
			return nil
		}

		mask := image.NewAlpha(image.Rect(0, 0, maxX-minX, maxY-minY))
		d := font.Drawer{
			Dst:  mask,
			Src:  image.White,
			Face: face,
			Dot:  fixed.P(-minX, -minY),
		}
		d.DrawString(string(r))

		bm.Width = mask.Rect.Dx()
		bm.Height = mask.Rect.Dy()
		bm.Pix = mask.Pix
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bm, nil
}

// rasterizeNotdef fills glyph 0 from its outline. Faces look glyphs up by
// rune only, so the outline is loaded from the sfnt tables directly. The
// caller holds f.mu.
func (f *Font) rasterizeNotdef(size float32) (*Bitmap, error) {
	ppem := fixed.Int26_6(size * 64)
	var buf sfnt.Buffer
	advance, err := f.sfnt.GlyphAdvance(&buf, 0, ppem, font.HintingFull)
	if err != nil {
		return nil, err
	}
	segments, err := f.sfnt.LoadGlyph(&buf, 0, ppem, nil)
	if err != nil {
		return nil, err
	}
	bm := &Bitmap{Advance: fixedToFloat(advance)}
	if len(segments) == 0 {
		return bm, nil
	}

	minX, minY := fixed.Int26_6(1<<30), fixed.Int26_6(1<<30)
	maxX, maxY := -minX, -minY
	for _, seg := range segments {
		for _, p := range seg.Args[:segmentPoints(seg.Op)] {
			minX, minY = min(minX, p.X), min(minY, p.Y)
			maxX, maxY = max(maxX, p.X), max(maxY, p.Y)
		}
	}
	x0, y0 := minX.Floor(), minY.Floor()
	w, h := maxX.Ceil()-x0, maxY.Ceil()-y0
	if w <= 0 || h <= 0 {
		return bm, nil
	}

	pt := func(p fixed.Point26_6) (float32, float32) {
		return fixedToFloat(p.X) - float32(x0), fixedToFloat(p.Y) - float32(y0)
	}
	z := vector.NewRasterizer(w, h)
	for _, seg := range segments {
		switch seg.Op {
		case sfnt.SegmentOpMoveTo:
			z.ClosePath()
			z.MoveTo(pt(seg.Args[0]))
		case sfnt.SegmentOpLineTo:
			z.LineTo(pt(seg.Args[0]))
		case sfnt.SegmentOpQuadTo:
			bx, by := pt(seg.Args[0])
			cx, cy := pt(seg.Args[1])
			z.QuadTo(bx, by, cx, cy)
		case sfnt.SegmentOpCubeTo:
			bx, by := pt(seg.Args[0])
			cx, cy := pt(seg.Args[1])
			dx, dy := pt(seg.Args[2])
			z.CubeTo(bx, by, cx, cy, dx, dy)
		}
	}
	z.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, w, h))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	bm.Width, bm.Height = w, h
	bm.OffsetX, bm.OffsetY = x0, y0
	bm.Pix = mask.Pix
	return bm, nil
}

func segmentPoints(op sfnt.SegmentOp) int {
	switch op {
	case sfnt.SegmentOpQuadTo:
		return 2
	case sfnt.SegmentOpCubeTo:
		return 3
	default:
		return 1
	}
}
