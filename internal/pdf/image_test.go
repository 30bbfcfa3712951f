package pdf

import (
	"bytes"
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

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestImageFromBytesJPEGPassthrough(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 6))
	for i := range src.Pix {
		src.Pix[i] = 0xCC
	}
	payload := encodeJPEG(t, src)

	img, err := ImageFromBytes(payload)
	if err != nil {
		t.Fatalf("ImageFromBytes failed: %v", err)
	}
	if img.Filter != "DCTDecode" {
		t.Errorf("Expected DCTDecode, got %s", img.Filter)
	}
	if !bytes.Equal(img.Data, payload) {
		t.Errorf("JPEG payload must pass through untouched")
	}
	if img.Width != 8 || img.Height != 6 {
		t.Errorf("Expected 8x6, got %dx%d", img.Width, img.Height)
	}
	if img.ColorSpace != "DeviceRGB" {
		t.Errorf("Expected DeviceRGB, got %s", img.ColorSpace)
	}
}

func TestImageFromBytesGrayJPEG(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	payload := encodeJPEG(t, src)

	img, err := ImageFromBytes(payload)
	if err != nil {
		t.Fatalf("ImageFromBytes failed: %v", err)
	}
	if img.ColorSpace != "DeviceGray" {
		t.Errorf("Expected DeviceGray, got %s", img.ColorSpace)
	}
}

func TestImageFromBytesCMYKJPEG(t *testing.T) {
	// image/jpeg cannot encode CMYK, so build just enough of one by hand:
	// DecodeConfig scans from SOI through the four-component SOF0 and stops
	// at the SOS marker.
	payload := []byte{
		0xFF, 0xD8, // SOI
		0xFF, 0xC0, // SOF0
		0x00, 0x14, // segment length
		0x08,       // precision
		0x00, 0x10, // height 16
		0x00, 0x10, // width 16
		0x04,             // components
		0x01, 0x11, 0x00, // C
		0x02, 0x11, 0x00, // M
		0x03, 0x11, 0x00, // Y
		0x04, 0x11, 0x00, // K
		0xFF, 0xDA, 0x00, 0x02, // SOS
	}

	img, err := ImageFromBytes(payload)
	if err != nil {
		t.Fatalf("ImageFromBytes failed: %v", err)
	}
	if img.ColorSpace != "DeviceCMYK" {
		t.Errorf("Expected DeviceCMYK, got %s", img.ColorSpace)
	}
	if img.Filter != "DCTDecode" {
		t.Errorf("Expected DCTDecode passthrough, got %s", img.Filter)
	}
	if img.Width != 16 || img.Height != 16 {
		t.Errorf("Expected 16x16, got %dx%d", img.Width, img.Height)
	}
}

func TestImageFromBytesPNGRepack(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.Set(0, 0, color.NRGBA{R: 255, A: 255})
	src.Set(1, 0, color.NRGBA{G: 255, A: 255})
	src.Set(2, 0, color.NRGBA{B: 255, A: 255})
	payload := encodePNG(t, src)

	img, err := ImageFromBytes(payload)
	if err != nil {
		t.Fatalf("ImageFromBytes failed: %v", err)
	}
	if img.Filter != "FlateDecode" || img.ColorSpace != "DeviceRGB" {
		t.Errorf("Expected flate RGB repack, got %s/%s", img.Filter, img.ColorSpace)
	}
	if img.Width != 3 || img.Height != 2 {
		t.Errorf("Expected 3x2, got %dx%d", img.Width, img.Height)
	}

	rgb := decompress(t, img.Data)
	if len(rgb) != 3*2*3 {
		t.Fatalf("Expected %d RGB bytes, got %d", 3*2*3, len(rgb))
	}
	// First row: pure red, green, blue.
	want := []byte{255, 0, 0, 0, 255, 0, 0, 0, 255}
	if !bytes.Equal(rgb[:9], want) {
		t.Errorf("First row mismatch: got %v", rgb[:9])
	}
}

func TestImageFromBytesGarbage(t *testing.T) {
	if _, err := ImageFromBytes([]byte("not an image")); err == nil {
		t.Errorf("Expected decode error")
	}
}
