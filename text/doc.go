// Package text loads fonts, lays out strings and caches rasterized glyphs
// in GPU atlas textures.
//
// # Fonts
//
// ParseFont reads TTF/OTF data with golang.org/x/image/font/opentype. The
// same bytes are parsed by go-text/typesetting for HarfBuzz shaping.
//
// # Glyph Atlas
//
// AtlasStore maps (font, character, size) to a rectangle in the font's
// atlas texture. Each entry is rasterized and uploaded once; later lookups
// are read-locked map hits:
//
//	store := text.NewAtlasStore(handle, text.AtlasConfig{})
//	g, err := store.GetOrRasterize(font, 'A', 30)
//
// Atlases grow by doubling. Glyph rectangles never move, so a batch built
// before growth stays valid after its texture id is remapped with Resolve.
//
// # Layout
//
// Layout splits text into lines and bidi runs (golang.org/x/text) and shapes
// each run with go-text/typesetting, falling back to font advances and
// kerning when shaping is unavailable.
package text
