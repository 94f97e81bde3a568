// Package media provides thumbnail generation and MIME helpers for
// clipboard image payloads.
package media

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ThumbnailSize is the bounding box edge for generated thumbnails.
const ThumbnailSize = 256

// FitWithin scales (w, h) so the longer side is at most bound, preserving the
// aspect ratio. The shorter side is computed in floating point and truncated,
// and never drops below one pixel.
func FitWithin(w, h, bound int) (int, int) {
	if w <= 0 || h <= 0 || bound <= 0 {
		return 0, 0
	}

	var nw, nh int
	if w > h {
		nw = min(w, bound)
		nh = int(float64(h) * float64(nw) / float64(w))
	} else {
		nh = min(h, bound)
		nw = int(float64(w) * float64(nh) / float64(h))
	}
	return max(nw, 1), max(nh, 1)
}

// Dimensions returns the pixel size and format name of an encoded image
// without decoding the pixel data.
func Dimensions(data []byte) (int, int, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("failed to read image header: %w", err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// Thumbnail decodes data, resamples it with Lanczos to fit a bound x bound box
// and encodes the result as PNG.
func Thumbnail(data []byte, bound int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	b := img.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), bound)
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("image has no pixels (%dx%d)", b.Dx(), b.Dy())
	}

	thumb := imaging.Resize(img, w, h, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
