// Package export turns a capture session's ordered images into a paginated
// PDF whose visible pages are the images themselves, overlaid with an
// invisible text layer derived from recognition annotations.
package export

import (
	"errors"
	"log/slog"

	"github.com/snapbinder/snapbinder/internal/models"
	"github.com/snapbinder/snapbinder/internal/pdf"
)

// ErrNoImages rejects an export attempt before any page is generated.
var ErrNoImages = errors.New("no images to export")

// Options control page geometry and text-layer noise suppression.
type Options struct {
	Margin       float64
	MinPageW     float64
	MinPageH     float64
	MinWordBoxPt float64
}

// Input pairs one stored image record with its payload.
type Input struct {
	Image   models.StoredImage
	Payload []byte
}

type Exporter struct {
	opts Options
}

func New(opts Options) *Exporter {
	return &Exporter{opts: opts}
}

// Export produces the document. A payload that fails to decode is logged and
// skipped; the remaining images still export, in their original order, and a
// document where every image was skipped is still a valid (empty) document.
func (e *Exporter) Export(title string, inputs []Input) ([]byte, error) {
	if len(inputs) == 0 {
		return nil, ErrNoImages
	}

	doc := pdf.NewDocument(title)
	for i, in := range inputs {
		img, err := pdf.ImageFromBytes(in.Payload)
		if err != nil {
			slog.Warn("Skipping undecodable image", "index", i, "image_id", in.Image.ID, "err", err)
			continue
		}
		e.addPage(doc, img, in.Image.Annotation)
	}
	return doc.Bytes()
}

func (e *Exporter) addPage(doc *pdf.Document, img *pdf.Image, ann *models.Annotation) {
	imgW := float64(img.Width)
	imgH := float64(img.Height)

	// Page canvas: image plus margins, floored at the minimum page size so
	// tiny captures still land on a standard page.
	pageW := imgW + 2*e.opts.Margin
	if pageW < e.opts.MinPageW {
		pageW = e.opts.MinPageW
	}
	pageH := imgH + 2*e.opts.Margin
	if pageH < e.opts.MinPageH {
		pageH = e.opts.MinPageH
	}

	// Fit-to-page: shrink to the margin box when needed, never enlarge.
	availW := pageW - 2*e.opts.Margin
	availH := pageH - 2*e.opts.Margin
	scale := 1.0
	if imgW > availW || imgH > availH {
		scale = availW / imgW
		if s := availH / imgH; s < scale {
			scale = s
		}
	}
	renderW := imgW * scale
	renderH := imgH * scale
	offX := (pageW - renderW) / 2
	offY := (pageH - renderH) / 2

	page := doc.AddPage(pageW, pageH)
	page.DrawImage(img, offX, offY, renderW, renderH)

	if ann == nil || ann.Width <= 0 || ann.Height <= 0 {
		return
	}
	// Word boxes are in the coordinates of the image that was actually
	// recognized (possibly upscaled), so the scale factors come from the
	// annotation's dimensions, not the capture dimensions.
	scaleX := renderW / float64(ann.Width)
	scaleY := renderH / float64(ann.Height)
	for _, w := range ann.Words {
		bw := w.Width * scaleX
		bh := w.Height * scaleY
		if bw < e.opts.MinWordBoxPt || bh < e.opts.MinWordBoxPt {
			continue
		}
		x := offX + w.X*scaleX
		// Flip from image top-left origin to PDF bottom-left origin.
		y := offY + renderH - (w.Y+w.Height)*scaleY
		x, y, bw, bh = clampBox(x, y, bw, bh, offX, offY, renderW, renderH)
		if bw <= 0 || bh <= 0 {
			continue
		}
		page.AddInvisibleText(w.Text, x, y, bw, bh)
	}
}

// clampBox confines a word rectangle to the rendered image rectangle.
func clampBox(x, y, w, h, minX, minY, maxW, maxH float64) (float64, float64, float64, float64) {
	maxX := minX + maxW
	maxY := minY + maxH
	if x < minX {
		w -= minX - x
		x = minX
	}
	if y < minY {
		h -= minY - y
		y = minY
	}
	if x+w > maxX {
		w = maxX - x
	}
	if y+h > maxY {
		h = maxY - y
	}
	return x, y, w, h
}
