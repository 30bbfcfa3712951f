// Package pdf writes paginated PDF documents: one embedded image per page
// plus invisible text runs positioned over recognized words. The serializer
// emits PDF objects directly; no general-purpose PDF library exposes the
// invisible text rendering mode the text layer depends on.
package pdf

import (
	"strings"
	"unicode/utf8"
)

// Document accumulates pages and produces the final byte stream.
type Document struct {
	title string
	pages []*Page
}

// Page holds one image placement and any invisible text runs above it.
// Coordinates follow the PDF convention: origin at the lower-left corner,
// units in points.
type Page struct {
	width  float64
	height float64

	image                  *Image
	imgX, imgY, imgW, imgH float64

	texts []textRun
}

type textRun struct {
	text     string
	x, y     float64
	fontSize float64
	hscale   float64
}

func NewDocument(title string) *Document {
	return &Document{title: title}
}

func (d *Document) AddPage(width, height float64) *Page {
	p := &Page{width: width, height: height}
	d.pages = append(d.pages, p)
	return p
}

func (d *Document) PageCount() int { return len(d.pages) }

// DrawImage places the page's image at (x, y) with the given rendered size.
func (p *Page) DrawImage(img *Image, x, y, w, h float64) {
	p.image = img
	p.imgX, p.imgY, p.imgW, p.imgH = x, y, w, h
}

// AddInvisibleText lays a non-rendering text run over the rectangle at
// (x, y) sized w×h. The glyphs are stretched horizontally so the run spans
// the full rectangle, which keeps selection and extraction aligned with the
// visible word underneath.
func (p *Page) AddInvisibleText(text string, x, y, w, h float64) {
	text = strings.TrimSpace(text)
	if text == "" || w <= 0 || h <= 0 {
		return
	}
	fontSize := h
	// Approximate Helvetica advance as half an em per glyph; the horizontal
	// scale factor then stretches the run to the measured box width.
	est := 0.5 * fontSize * float64(utf8.RuneCountInString(text))
	hscale := 100.0
	if est > 0 {
		hscale = w / est * 100.0
	}
	p.texts = append(p.texts, textRun{
		text:     text,
		x:        x,
		y:        y + 0.2*fontSize, // baseline above the box bottom for descenders
		fontSize: fontSize,
		hscale:   hscale,
	})
}
