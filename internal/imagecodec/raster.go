// Package imagecodec converts between raw channel-last image buffers,
// in-memory rasters and PNG.
package imagecodec

import (
	"fmt"
	"image"
	"image/color"

	"github.com/lewtec/imagesprite/internal/domain"
)

// Raster is a row-major, channel-last 8-bit image. Pix holds
// Width*Height*Channels bytes with no padding between rows.
type Raster struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// NewRaster allocates a zeroed (black) raster.
func NewRaster(width, height, channels int) *Raster {
	return &Raster{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]byte, width*height*channels),
	}
}

// Solid returns a raster filled with one RGB colour. Extra channels are left
// at zero.
func Solid(width, height int, r, g, b byte) *Raster {
	img := NewRaster(width, height, domain.ImageChannels)
	for i := 0; i < len(img.Pix); i += img.Channels {
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
	}
	return img
}

// FromBytes wraps buf as a raster without copying.
func FromBytes(buf []byte, width, height, channels int) (*Raster, error) {
	if width <= 0 || height <= 0 || channels <= 0 {
		return nil, fmt.Errorf("while reading %dx%dx%d image: %w", width, height, channels, domain.ErrSizeMismatch)
	}
	if len(buf) != width*height*channels {
		return nil, fmt.Errorf("while reading %dx%dx%d image: got %d bytes, want %d: %w",
			width, height, channels, len(buf), width*height*channels, domain.ErrSizeMismatch)
	}
	return &Raster{Width: width, Height: height, Channels: channels, Pix: buf}, nil
}

// FromStored interprets a value read from the image store.
func FromStored(buf []byte) (*Raster, error) {
	return FromBytes(buf, domain.ImageWidth, domain.ImageHeight, domain.ImageChannels)
}

// ToBytes returns the flat pixel buffer. The slice aliases the raster.
func ToBytes(img *Raster) []byte {
	return img.Pix
}

// Stride is the byte distance between vertically adjacent pixels.
func (img *Raster) Stride() int {
	return img.Width * img.Channels
}

// Paste copies src onto img with its top-left corner at (x, y). Parts of
// src falling outside img are dropped.
func (img *Raster) Paste(src *Raster, x, y int) error {
	if src.Channels != img.Channels {
		return fmt.Errorf("while pasting %d-channel image onto %d-channel image: %w",
			src.Channels, img.Channels, domain.ErrSizeMismatch)
	}
	r := image.Rect(x, y, x+src.Width, y+src.Height).Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}
	rowBytes := r.Dx() * img.Channels
	for dy := r.Min.Y; dy < r.Max.Y; dy++ {
		sy := dy - y
		sx := r.Min.X - x
		srcOff := sy*src.Stride() + sx*src.Channels
		dstOff := dy*img.Stride() + r.Min.X*img.Channels
		copy(img.Pix[dstOff:dstOff+rowBytes], src.Pix[srcOff:srcOff+rowBytes])
	}
	return nil
}

// ColorModel implements image.Image.
func (img *Raster) ColorModel() color.Model {
	if img.Channels == 1 {
		return color.GrayModel
	}
	return color.NRGBAModel
}

// Bounds implements image.Image.
func (img *Raster) Bounds() image.Rectangle {
	return image.Rect(0, 0, img.Width, img.Height)
}

// At implements image.Image.
func (img *Raster) At(x, y int) color.Color {
	if !(image.Point{X: x, Y: y}.In(img.Bounds())) {
		return color.NRGBA{}
	}
	off := y*img.Stride() + x*img.Channels
	p := img.Pix[off : off+img.Channels]
	switch img.Channels {
	case 1:
		return color.Gray{Y: p[0]}
	case 2:
		return color.NRGBA{R: p[0], G: p[1], A: 0xff}
	case 3:
		return color.NRGBA{R: p[0], G: p[1], B: p[2], A: 0xff}
	default:
		return color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
	}
}
