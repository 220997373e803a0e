package text

import (
	"sync"

	"github.com/go-text/typesetting/di"
	gotext "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/bidi"
)

// Position is one character placed by Layout.
type Position struct {
	// Rune is the character to draw.
	Rune rune

	// X and Y are the pen position relative to the layout origin on the
	// first baseline, in pixels. Y grows downwards.
	X, Y float32
}

// Line is the result of laying out a string.
type Line struct {
	Positions []Position

	// Width is the widest line's advance in pixels.
	Width float32

	// Height is the distance from the first to the last baseline plus one
	// line height.
	Height float32
}

// shaperPool holds HarfbuzzShaper instances, which keep internal buffers
// and are not safe for concurrent use.
var shaperPool = sync.Pool{
	New: func() any { return &shaping.HarfbuzzShaper{} },
}

// Layout positions the characters of s at size pixels per em.
//
// Each line ('\n' separated) is split into bidi runs in visual order. Runs
// are shaped with HarfBuzz when the font supports it and shaping keeps a
// one-to-one mapping between characters and glyphs; otherwise characters
// advance by their font advances plus pair kerning.
func Layout(f *Font, s string, size float32) (Line, error) {
	if f == nil {
		return Line{}, ErrNilFont
	}
	m, err := f.Metrics(size)
	if err != nil {
		return Line{}, err
	}
	var out Line
	y := float32(0)
	lines := splitLines([]rune(s))
	for i, line := range lines {
		if i > 0 {
			y += m.LineHeight
		}
		x := float32(0)
		for _, run := range visualRuns(line) {
			var err error
			out.Positions, x, err = layoutRun(f, run, size, x, y, out.Positions)
			if err != nil {
				return Line{}, err
			}
		}
		out.Width = max(out.Width, x)
	}
	out.Height = y + m.LineHeight
	return out, nil
}

func splitLines(runes []rune) [][]rune {
	var lines [][]rune
	start := 0
	for i, r := range runes {
		if r == '\n' {
			lines = append(lines, runes[start:i])
			start = i + 1
		}
	}
	return append(lines, runes[start:])
}

type bidiRun struct {
	runes []rune
	rtl   bool
}

// visualRuns splits a line into directional runs in display order.
func visualRuns(line []rune) []bidiRun {
	if len(line) == 0 {
		return nil
	}
	if !hasRTL(line) {
		return []bidiRun{{runes: line}}
	}
	p := bidi.Paragraph{}
	if _, err := p.SetString(string(line), bidi.DefaultDirection(bidi.LeftToRight)); err != nil {
		return []bidiRun{{runes: line}}
	}
	ordering, err := p.Order()
	if err != nil {
		return []bidiRun{{runes: line}}
	}
	runs := make([]bidiRun, 0, ordering.NumRuns())
	for i := 0; i < ordering.NumRuns(); i++ {
		run := ordering.Run(i)
		start, end := run.Pos() // rune indices, end inclusive
		if start < 0 || end >= len(line) || start > end {
			continue
		}
		runs = append(runs, bidiRun{
			runes: line[start : end+1],
			rtl:   run.Direction() == bidi.RightToLeft,
		})
	}
	return runs
}

// hasRTL reports whether any rune has a strong right-to-left class.
func hasRTL(runes []rune) bool {
	for _, r := range runes {
		props, _ := bidi.LookupRune(r)
		switch props.Class() {
		case bidi.R, bidi.AL:
			return true
		}
	}
	return false
}

func layoutRun(f *Font, run bidiRun, size, x, y float32, dst []Position) ([]Position, float32, error) {
	if f.shaping != nil {
		if pos, nx, ok := shapeRun(f.shaping, run, size, x, y); ok {
			return append(dst, pos...), nx, nil
		}
	}
	return advanceRun(f, run, size, x, y, dst)
}

// shapeRun shapes run with HarfBuzz. It reports false when glyphs and
// characters do not map one to one, as with ligatures.
func shapeRun(ft *gotext.Font, run bidiRun, size, x, y float32) ([]Position, float32, bool) {
	dir := di.DirectionLTR
	if run.rtl {
		dir = di.DirectionRTL
	}
	input := shaping.Input{
		Text:      run.runes,
		RunStart:  0,
		RunEnd:    len(run.runes),
		Direction: dir,
		Face:      gotext.NewFace(ft),
		Size:      fixed.Int26_6(size * 64),
		Script:    detectScript(run.runes),
		Language:  language.NewLanguage("en"),
	}
	hb := shaperPool.Get().(*shaping.HarfbuzzShaper)
	output := hb.Shape(input)
	shaperPool.Put(hb)

	if len(output.Glyphs) != len(run.runes) {
		return nil, x, false
	}
	seen := make([]bool, len(run.runes))
	pos := make([]Position, len(output.Glyphs))
	for i, g := range output.Glyphs {
		idx := g.TextIndex()
		if idx < 0 || idx >= len(run.runes) || seen[idx] {
			return nil, x, false
		}
		seen[idx] = true
		pos[i] = Position{
			Rune: run.runes[idx],
			X:    x + fixedToFloat(g.XOffset),
			Y:    y - fixedToFloat(g.YOffset),
		}
		x += fixedToFloat(g.Advance)
	}
	return pos, x, true
}

// advanceRun places characters by font advance and kerning.
func advanceRun(f *Font, run bidiRun, size, x, y float32, dst []Position) ([]Position, float32, error) {
	runes := run.runes
	if run.rtl {
		runes = make([]rune, len(run.runes))
		for i, r := range run.runes {
			runes[len(runes)-1-i] = r
		}
	}
	err := f.withFace(size, func(face font.Face) error {
		prev := rune(-1)
		for _, r := range runes {
			if prev >= 0 {
				x += fixedToFloat(face.Kern(prev, r))
			}
			dst = append(dst, Position{Rune: r, X: x, Y: y})
			adv, _ := face.GlyphAdvance(r)
			if r == '\t' {
				space, _ := face.GlyphAdvance(' ')
				adv = tabStop * space
			}
			x += fixedToFloat(adv)
			prev = r
		}
		return nil
	})
	return dst, x, err
}

// detectScript returns the script of the first non-space rune.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}
