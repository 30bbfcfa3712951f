// Package recognition turns stored image payloads into text annotations with
// per-word bounding boxes. Engines wrap external recognizers; the Queue
// serializes all calls so a shared, single-instance backend is never hit by
// more than one request at a time.
package recognition

import (
	"context"
	"fmt"

	"github.com/snapbinder/snapbinder/internal/models"
)

// Result is an engine's output for one image. Word boxes are in the pixel
// coordinates of the payload handed to Recognize. Width and Height may be
// zero when the engine does not know the image dimensions; the queue fills
// them in from the submitted image.
type Result struct {
	Text   string
	Words  []models.Word
	Width  int
	Height int
}

// Engine recognizes text in a single encoded image.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, payload []byte) (Result, error)
}

// NewEngine builds the engine for a configured provider name.
func NewEngine(provider, model string) (Engine, error) {
	switch provider {
	case "ollama":
		return NewOllama(model), nil
	case "openai":
		return NewOpenAI(model), nil
	case "gemini":
		return NewGemini(model), nil
	case "tesseract":
		return NewTesseract(), nil
	default:
		return nil, fmt.Errorf("unsupported recognition provider: %s", provider)
	}
}
