// Package media tests for thumbnail generation and MIME helpers.
package media

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// createTestImage encodes a solid w x h image in the given format.
func createTestImage(t *testing.T, format string, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	red := color.RGBA{255, 0, 0, 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, red)
		}
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case "png":
		err = png.Encode(&buf, img)
	case "jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90})
	case "bmp":
		err = bmp.Encode(&buf, img)
	default:
		t.Fatalf("unsupported format %q", format)
	}
	require.NoError(t, err)
	return buf.Bytes()
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		name         string
		w, h         int
		wantW, wantH int
	}{
		{"landscape", 1000, 500, 256, 128},
		{"portrait", 300, 900, 85, 256},
		{"square", 512, 512, 256, 256},
		{"small untouched", 100, 50, 100, 50},
		{"truncates", 1000, 333, 256, 85},
		{"thin never zero", 10000, 1, 256, 1},
		{"empty", 0, 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := FitWithin(tt.w, tt.h, ThumbnailSize)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestThumbnail_formats(t *testing.T) {
	for _, format := range []string{"png", "jpeg", "bmp"} {
		t.Run(format, func(t *testing.T) {
			src := createTestImage(t, format, 640, 480)

			out, err := Thumbnail(src, ThumbnailSize)
			require.NoError(t, err)

			w, h, got, err := Dimensions(out)
			require.NoError(t, err)
			assert.Equal(t, "png", got)
			assert.Equal(t, 256, w)
			assert.Equal(t, 192, h)
		})
	}
}

// TestThumbnail_aspectRatio verifies the longer side fits and the ratio holds
// within integer rounding.
func TestThumbnail_aspectRatio(t *testing.T) {
	src := createTestImage(t, "png", 301, 977)

	out, err := Thumbnail(src, ThumbnailSize)
	require.NoError(t, err)

	w, h, _, err := Dimensions(out)
	require.NoError(t, err)
	assert.LessOrEqual(t, max(w, h), ThumbnailSize)
	assert.InDelta(t, 301.0/977.0, float64(w)/float64(h), 1.0/float64(h)+0.001)
}

func TestThumbnail_invalidData(t *testing.T) {
	_, err := Thumbnail([]byte("definitely not an image"), ThumbnailSize)
	assert.Error(t, err)
}

func TestExtensionForMIME(t *testing.T) {
	tests := map[string]string{
		"image/png":                "png",
		"image/jpeg":               "jpeg",
		"image/webp":               "webp",
		"text/plain;charset=utf-8": "plain",
		"image/PNG ; q=1":          "png",
		"application":              "bin",
		"":                         "bin",
		"image/":                   "bin",
		"image/../../x":            "bin",
	}
	for in, want := range tests {
		assert.Equal(t, want, ExtensionForMIME(in), "input %q", in)
	}
}

func TestIsImageMIME(t *testing.T) {
	assert.True(t, IsImageMIME("image/png"))
	assert.True(t, IsImageMIME(" Image/BMP"))
	assert.False(t, IsImageMIME("text/plain"))
	assert.False(t, IsImageMIME(""))
}

func TestIsTextMIME(t *testing.T) {
	assert.True(t, IsTextMIME("text/plain;charset=utf-8"))
	assert.True(t, IsTextMIME("UTF8_STRING"))
	assert.False(t, IsTextMIME("image/png"))
}

func TestSniff(t *testing.T) {
	assert.Equal(t, "image/png", Sniff(createTestImage(t, "png", 4, 4)))
	assert.Equal(t, "image/jpeg", Sniff(createTestImage(t, "jpeg", 4, 4)))
	assert.Contains(t, Sniff([]byte("plain words here")), "text/plain")
}
