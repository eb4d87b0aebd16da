// Package imaging normalizes uploaded binary blobs into the canonical form
// the pipeline works with: PDF bytes pass through untouched, image bytes are
// decoded and flattened to an opaque RGB PNG of the same pixel dimensions.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupportedFormat indicates the blob is neither a PDF nor a decodable image.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Normalized is the canonical in-memory form of one upload: either the
// original PDF bytes or a single RGB PNG page.
type Normalized struct {
	PDF    bool
	Data   []byte
	Width  int // image pixel dimensions; zero for PDF passthrough
	Height int
}

// Normalize converts one upload to its canonical form. PDFs are detected by
// magic bytes first, falling back to the filename extension for files whose
// header was mangled in transit.
func Normalize(data []byte, filename string) (*Normalized, error) {
	if IsPDF(data, filename) {
		return &Normalized{PDF: true, Data: data}, nil
	}

	img, err := DecodeRGB(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode normalized page: %w", err)
	}
	b := img.Bounds()
	return &Normalized{Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

// IsPDF reports whether the blob should be treated as a PDF document.
func IsPDF(data []byte, filename string) bool {
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// DecodeRGB decodes image bytes (PNG, JPEG, GIF, BMP, TIFF, WebP) and
// flattens them onto an opaque white canvas, preserving pixel dimensions.
// Transparency is dropped: scanned documents are opaque and Tesseract
// performs poorly on alpha channels.
func DecodeRGB(data []byte) (*image.RGBA, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst, nil
}
