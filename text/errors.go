package text

import "errors"

// Sentinel errors for the text package.
var (
	// ErrEmptyFontData is returned when font data is empty.
	ErrEmptyFontData = errors.New("text: empty font data")

	// ErrGlyphNotFound is returned by rasterizers that cannot produce a
	// glyph for a rune. OpenTypeRasterizer falls back to .notdef instead.
	ErrGlyphNotFound = errors.New("text: glyph not found")

	// ErrInvalidSize is returned for non-positive or non-finite font sizes.
	ErrInvalidSize = errors.New("text: invalid font size")

	// ErrAtlasFull is returned when a glyph does not fit even in an atlas
	// grown to the maximum texture size.
	ErrAtlasFull = errors.New("text: glyph atlas is full")

	// ErrStoreClosed is returned when operating on a closed atlas store.
	ErrStoreClosed = errors.New("text: atlas store is closed")

	// ErrNilFont is returned when a nil font is passed.
	ErrNilFont = errors.New("text: nil font")
)
