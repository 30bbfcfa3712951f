package recognition

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini recognizes text with a Google Gemini vision model.
type Gemini struct {
	model string
}

func NewGemini(model string) *Gemini {
	if model == "" {
		model = os.Getenv("GEMINI_MODEL")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{model: model}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Recognize(ctx context.Context, payload []byte) (Result, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return Result{}, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.model)
	model.SetTemperature(0)

	resp, err := model.GenerateContent(ctx,
		genai.ImageData("png", payload),
		genai.Text(recognitionPrompt),
	)
	if err != nil {
		return Result{}, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return Result{}, fmt.Errorf("no candidates returned from Gemini")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return Result{}, fmt.Errorf("empty content returned from Gemini")
	}

	txt, ok := candidate.Content.Parts[0].(genai.Text)
	if !ok {
		return Result{}, fmt.Errorf("unexpected response format from Gemini")
	}
	return parseLLMResult(string(txt))
}
