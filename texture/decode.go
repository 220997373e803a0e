package texture

import (
	"bytes"
	"errors"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	"github.com/gogpu/gfx/render"
	_ "golang.org/x/image/bmp" // register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// ErrEmptyImage is returned when image data is empty.
var ErrEmptyImage = errors.New("texture: empty image data")

// Decode decodes PNG, JPEG, GIF, BMP, TIFF or WebP bytes into a
// premultiplied RGBA image with origin (0, 0). Malformed data yields a
// *render.DecodeError.
func Decode(data []byte) (*image.RGBA, error) {
	if len(data) == 0 {
		return nil, &render.DecodeError{Kind: "image", Err: ErrEmptyImage}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &render.DecodeError{Kind: "image", Err: err}
	}
	return ToRGBA(img), nil
}

// ToRGBA converts img to *image.RGBA anchored at (0, 0). An *image.RGBA
// already at the origin is returned as is.
func ToRGBA(img image.Image) *image.RGBA {
	b := img.Bounds()
	if rgba, ok := img.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == b.Dx()*4 {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
