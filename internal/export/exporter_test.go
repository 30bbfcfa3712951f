package export

import (
	"bytes"
	"compress/zlib"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/snapbinder/snapbinder/internal/models"
)

func testOptions() Options {
	return Options{Margin: 24, MinPageW: 595, MinPageH: 842, MinWordBoxPt: 2}
}

func pngPayload(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i+3] = 255
	}
	img.Set(0, 0, color.White)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// contentStreams inflates every non-image flate stream in the document and
// concatenates them, exposing the page operators for inspection.
func contentStreams(t *testing.T, doc []byte) string {
	t.Helper()
	var out strings.Builder
	rest := doc
	for {
		i := bytes.Index(rest, []byte("<< /Filter /FlateDecode /Length"))
		if i < 0 {
			break
		}
		rest = rest[i:]
		start := bytes.Index(rest, []byte("stream\n"))
		if start < 0 {
			break
		}
		start += len("stream\n")
		end := bytes.Index(rest[start:], []byte("\nendstream"))
		if end < 0 {
			break
		}
		zr, err := zlib.NewReader(bytes.NewReader(rest[start : start+end]))
		if err != nil {
			t.Fatalf("zlib reader: %v", err)
		}
		data, err := io.ReadAll(zr)
		zr.Close()
		if err != nil {
			t.Fatalf("zlib read: %v", err)
		}
		out.Write(data)
		rest = rest[start+end:]
	}
	return out.String()
}

func TestExportEmpty(t *testing.T) {
	e := New(testOptions())
	if _, err := e.Export("t", nil); err != ErrNoImages {
		t.Errorf("Expected ErrNoImages, got %v", err)
	}
	if _, err := e.Export("t", []Input{}); err != ErrNoImages {
		t.Errorf("Expected ErrNoImages, got %v", err)
	}
}

func TestExportSkipsCorrupt(t *testing.T) {
	e := New(testOptions())
	inputs := []Input{
		{Image: models.StoredImage{ID: "bad"}, Payload: []byte("corrupt")},
		{Image: models.StoredImage{ID: "a"}, Payload: pngPayload(t, 100, 80)},
		{Image: models.StoredImage{ID: "b"}, Payload: pngPayload(t, 50, 40)},
	}
	out, err := e.Export("partial", inputs)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if !strings.Contains(string(out), "/Count 2") {
		t.Errorf("Expected 2 surviving pages")
	}
	if !strings.Contains(string(out), "(partial)") {
		t.Errorf("Title not set")
	}
}

func TestExportAllCorruptStillValid(t *testing.T) {
	e := New(testOptions())
	out, err := e.Export("empty", []Input{{Payload: []byte("junk")}})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	doc := string(out)
	if !strings.HasPrefix(doc, "%PDF-1.4") || !strings.Contains(doc, "/Count 0") {
		t.Errorf("Expected a valid zero-page document")
	}
}

func TestExportCentersSmallImage(t *testing.T) {
	e := New(testOptions())
	out, err := e.Export("t", []Input{{Payload: pngPayload(t, 100, 80)}})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	doc := string(out)
	if !strings.Contains(doc, "/MediaBox [0 0 595 842]") {
		t.Errorf("Small image should land on the minimum page size")
	}
	// Native size, centered: offX = (595-100)/2, offY = (842-80)/2.
	ops := contentStreams(t, out)
	if !strings.Contains(ops, "100 0 0 80 247.5 381 cm") {
		t.Errorf("Image not centered at native size: %q", ops)
	}
}

func TestExportLargeImageGrowsPage(t *testing.T) {
	e := New(testOptions())
	out, err := e.Export("t", []Input{{Payload: pngPayload(t, 1200, 900)}})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	doc := string(out)
	// Page canvas = image + margins; the image draws at native size.
	if !strings.Contains(doc, "/MediaBox [0 0 1248 948]") {
		t.Errorf("Page should grow to hold a large image")
	}
	ops := contentStreams(t, out)
	if !strings.Contains(ops, "1200 0 0 900 24 24 cm") {
		t.Errorf("Large image should draw at native size inside the margins: %q", ops)
	}
}

func TestExportWordBoxGeometry(t *testing.T) {
	e := New(testOptions())
	ann := &models.Annotation{
		// Recognition saw a 2x-upscaled copy of the 100x80 capture; boxes are
		// in those coordinates.
		Width:  200,
		Height: 160,
		Words: []models.Word{
			{Text: "hello", X: 20, Y: 30, Width: 60, Height: 20},
			{Text: "dot", X: 0, Y: 0, Width: 2, Height: 2}, // below noise floor
		},
		Attempted: true,
	}
	inputs := []Input{{
		Image:   models.StoredImage{ID: "x", Annotation: ann},
		Payload: pngPayload(t, 100, 80),
	}}
	out, err := e.Export("t", inputs)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	ops := contentStreams(t, out)

	// Box lands at x=247.5+20*0.5, y=381+80-(30+20)*0.5, h=10 so the baseline
	// sits 2pt above the box bottom; Tz stretches 5 glyphs over 30pt.
	if !strings.Contains(ops, "1 0 0 1 257.5 438 Tm") {
		t.Errorf("Word misplaced: %q", ops)
	}
	if !strings.Contains(ops, "/F1 10 Tf") {
		t.Errorf("Font size should track box height: %q", ops)
	}
	if !strings.Contains(ops, "120 Tz") {
		t.Errorf("Horizontal stretch wrong: %q", ops)
	}
	if !strings.Contains(ops, "(hello) Tj") {
		t.Errorf("Text run missing: %q", ops)
	}
	if strings.Contains(ops, "(dot)") {
		t.Errorf("Sub-threshold box should be skipped")
	}
	if !strings.Contains(ops, "3 Tr") {
		t.Errorf("Text layer must be invisible")
	}
}

func TestExportClampsOverflowingBoxes(t *testing.T) {
	e := New(testOptions())
	ann := &models.Annotation{
		Width:  200,
		Height: 160,
		Words: []models.Word{
			// Extends past the right edge of the rendered image.
			{Text: "edge", X: 190, Y: 40, Width: 40, Height: 20},
		},
	}
	out, err := e.Export("t", []Input{{
		Image:   models.StoredImage{Annotation: ann},
		Payload: pngPayload(t, 100, 80),
	}})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	ops := contentStreams(t, out)
	if !strings.Contains(ops, "(edge) Tj") {
		t.Fatalf("Clamped word should still render: %q", ops)
	}
	// Width clamped from 20pt to 5pt shrinks the stretch accordingly.
	if !strings.Contains(ops, "25 Tz") {
		t.Errorf("Clamp not applied to stretch: %q", ops)
	}
}

func TestExportNoAnnotation(t *testing.T) {
	e := New(testOptions())
	out, err := e.Export("t", []Input{{Payload: pngPayload(t, 100, 80)}})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if strings.Contains(contentStreams(t, out), "BT") {
		t.Errorf("No text layer expected without an annotation")
	}
}
