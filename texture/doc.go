// Package texture provides the reference-counted texture registry shared by
// every canvas and scene of a session, and image decoding for it.
//
// Registry.Register uploads premultiplied RGBA8 pixels and returns a Handle
// with one reference. Retain and Release adjust the count; the GPU texture
// is freed exactly once, when the count reaches zero.
//
// Decode accepts PNG, JPEG and GIF through the standard library and BMP,
// TIFF and WebP through golang.org/x/image.
package texture
