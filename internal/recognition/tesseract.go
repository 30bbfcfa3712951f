package recognition

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/snapbinder/snapbinder/internal/models"
)

// Tesseract recognizes text locally through the gosseract binding. Unlike
// the vision-model engines it produces measured word boxes rather than
// model-estimated ones.
type Tesseract struct {
	clientFactory func() *gosseract.Client
}

func NewTesseract() *Tesseract {
	return &Tesseract{clientFactory: gosseract.NewClient}
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Recognize(ctx context.Context, payload []byte) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(payload); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}

	res := Result{Text: strings.TrimSpace(text)}
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Text without geometry is still worth keeping.
		return res, nil
	}
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		res.Words = append(res.Words, models.Word{
			Text:       b.Word,
			X:          float64(b.Box.Min.X),
			Y:          float64(b.Box.Min.Y),
			Width:      float64(b.Box.Dx()),
			Height:     float64(b.Box.Dy()),
			Confidence: b.Confidence / 100.0,
		})
	}
	return res, nil
}
