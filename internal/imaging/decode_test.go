package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestNormalize_ImagePreservesDimensions(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 25))
	for y := 0; y < 25; y++ {
		for x := 0; x < 40; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}

	n, err := Normalize(encodePNG(t, src), "scan.png")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if n.PDF {
		t.Fatal("expected image, got PDF passthrough")
	}
	if n.Width != 40 || n.Height != 25 {
		t.Errorf("expected 40x25, got %dx%d", n.Width, n.Height)
	}

	// Output must itself be a decodable PNG.
	out, err := png.Decode(bytes.NewReader(n.Data))
	if err != nil {
		t.Fatalf("decode normalized output: %v", err)
	}
	if out.Bounds().Dx() != 40 || out.Bounds().Dy() != 25 {
		t.Errorf("normalized output dimensions changed: %v", out.Bounds())
	}
}

func TestNormalize_JPEGInput(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	n, err := Normalize(buf.Bytes(), "scan.jpg")
	if err != nil {
		t.Fatalf("normalize jpeg: %v", err)
	}
	if n.PDF || n.Width != 10 || n.Height != 10 {
		t.Errorf("unexpected result: pdf=%v %dx%d", n.PDF, n.Width, n.Height)
	}
}

func TestNormalize_PDFPassthrough(t *testing.T) {
	data := []byte("%PDF-1.4\n%fake document")
	n, err := Normalize(data, "doc.pdf")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !n.PDF {
		t.Fatal("expected PDF passthrough")
	}
	if !bytes.Equal(n.Data, data) {
		t.Error("PDF bytes must pass through unchanged")
	}
}

func TestNormalize_PDFByExtensionOnly(t *testing.T) {
	// No magic bytes, but the filename says PDF.
	n, err := Normalize([]byte("not really a pdf"), "upload.PDF")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !n.PDF {
		t.Error("expected extension-based PDF detection")
	}
}

func TestNormalize_UndecodableFails(t *testing.T) {
	_, err := Normalize([]byte{0x00, 0x01, 0x02, 0x03}, "garbage.bin")
	if err == nil {
		t.Fatal("expected error for undecodable input")
	}
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDecodeRGB_FlattensTransparency(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 255})
	src.Set(1, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 0}) // fully transparent

	out, err := DecodeRGB(encodePNG(t, src))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	r, g, b, a := out.At(1, 0).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff || a != 0xffff {
		t.Errorf("transparent pixel not flattened to white: %v %v %v %v", r, g, b, a)
	}
	r, _, _, _ = out.At(0, 0).RGBA()
	if r != 0 {
		t.Errorf("opaque pixel changed: r=%v", r)
	}
}
