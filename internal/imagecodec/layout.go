package imagecodec

import (
	"fmt"

	"github.com/lewtec/imagesprite/internal/domain"
)

// PlanarToInterleaved transposes one channel-first image ([C,H,W]) in src
// into channel-last order ([H,W,C]) in dst. Both buffers must hold exactly
// width*height*channels bytes.
func PlanarToInterleaved(dst, src []byte, width, height, channels int) error {
	size := width * height * channels
	if len(src) != size || len(dst) != size {
		return fmt.Errorf("while transposing %dx%dx%d image (src %d, dst %d bytes): %w",
			width, height, channels, len(src), len(dst), domain.ErrSizeMismatch)
	}
	plane := width * height
	for c := 0; c < channels; c++ {
		p := src[c*plane : (c+1)*plane]
		for i, v := range p {
			dst[i*channels+c] = v
		}
	}
	return nil
}
