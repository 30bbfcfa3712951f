package recognition

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/snapbinder/snapbinder/internal/models"
)

// recognitionPrompt asks vision models for transcription plus word geometry
// in a machine-readable shape.
const recognitionPrompt = `You are performing OCR on a screenshot.

Extract ALL visible text from the image and report the position of every word.
Coordinates are pixels with the origin at the top-left corner of the image.

Respond with ONLY a JSON object in this exact shape, no commentary:
{
  "text": "full transcribed text with line breaks",
  "words": [
    {"text": "word", "x": 0, "y": 0, "w": 0, "h": 0}
  ]
}

Rules:
1. Transcribe text exactly as it appears, preserving line breaks and case.
2. One entry per word in "words", in reading order.
3. Use [?] for illegible portions in "text" and omit them from "words".
4. If the image contains no text, return {"text": "", "words": []}.`

type llmWord struct {
	Text string  `json:"text"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	W    float64 `json:"w"`
	H    float64 `json:"h"`
}

type llmResult struct {
	Text  string    `json:"text"`
	Words []llmWord `json:"words"`
}

// parseLLMResult decodes a model response, tolerating markdown code fences
// and leading prose around the JSON object.
func parseLLMResult(raw string) (Result, error) {
	body := strings.TrimSpace(raw)
	if i := strings.Index(body, "```"); i >= 0 {
		body = body[i+3:]
		body = strings.TrimPrefix(body, "json")
		if j := strings.Index(body, "```"); j >= 0 {
			body = body[:j]
		}
	}
	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end <= start {
		return Result{}, fmt.Errorf("no JSON object in model response")
	}

	var parsed llmResult
	if err := json.Unmarshal([]byte(body[start:end+1]), &parsed); err != nil {
		return Result{}, fmt.Errorf("decode model response: %w", err)
	}

	res := Result{Text: parsed.Text}
	for _, w := range parsed.Words {
		if strings.TrimSpace(w.Text) == "" || w.W <= 0 || w.H <= 0 {
			continue
		}
		res.Words = append(res.Words, models.Word{
			Text:   w.Text,
			X:      w.X,
			Y:      w.Y,
			Width:  w.W,
			Height: w.H,
		})
	}
	return res, nil
}
