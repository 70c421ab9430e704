package imagecodec

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/lewtec/imagesprite/internal/domain"
)

var encoder = png.Encoder{CompressionLevel: png.DefaultCompression}

// EncodePNG writes img to w as a PNG.
func EncodePNG(w io.Writer, img *Raster) error {
	if err := encoder.Encode(w, toStdImage(img)); err != nil {
		return fmt.Errorf("while encoding %dx%d png: %w: %w", img.Width, img.Height, domain.ErrEncode, err)
	}
	return nil
}

// PNG returns img encoded as a PNG.
func PNG(img *Raster) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// toStdImage converts img to a standard library image type the PNG encoder
// has a fast path for.
func toStdImage(img *Raster) image.Image {
	bounds := img.Bounds()
	switch img.Channels {
	case 1:
		return &image.Gray{Pix: img.Pix, Stride: img.Stride(), Rect: bounds}
	case 3:
		out := image.NewNRGBA(bounds)
		for i, j := 0, 0; i < len(img.Pix); i, j = i+3, j+4 {
			out.Pix[j] = img.Pix[i]
			out.Pix[j+1] = img.Pix[i+1]
			out.Pix[j+2] = img.Pix[i+2]
			out.Pix[j+3] = 0xff
		}
		return out
	case 4:
		return &image.NRGBA{Pix: img.Pix, Stride: img.Stride(), Rect: bounds}
	default:
		return img
	}
}
