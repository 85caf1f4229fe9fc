package ioutils

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func pngFixture(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestResizeImageDownscales(t *testing.T) {
	svc := NewImageService()

	out, err := svc.ResizeImage(context.Background(), pngFixture(t, 400, 200), 100, 100)
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}

	img, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("output format = %q, want jpeg", format)
	}

	// Aspect ratio 2:1 preserved within the 100x100 bounds.
	bounds := img.Bounds()
	if bounds.Dx() != 100 || bounds.Dy() != 50 {
		t.Errorf("output bounds = %dx%d, want 100x50", bounds.Dx(), bounds.Dy())
	}
}

func TestResizeImageWithinBoundsConvertsOnly(t *testing.T) {
	svc := NewImageService()

	out, err := svc.ResizeImage(context.Background(), pngFixture(t, 60, 40), 100, 100)
	if err != nil {
		t.Fatalf("ResizeImage failed: %v", err)
	}

	img, format, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("output format = %q, want jpeg: PNG art must be normalized", format)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 60 || bounds.Dy() != 40 {
		t.Errorf("output bounds = %dx%d, want unchanged 60x40", bounds.Dx(), bounds.Dy())
	}
}

func TestResizeImageRejectsGarbage(t *testing.T) {
	svc := NewImageService()
	if _, err := svc.ResizeImage(context.Background(), []byte("not an image"), 100, 100); err == nil {
		t.Fatal("expected an error for undecodable data")
	}
}
