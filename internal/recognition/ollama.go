package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// Ollama recognizes text with a local Ollama vision model.
type Ollama struct {
	model string
}

func NewOllama(model string) *Ollama {
	if model == "" {
		model = os.Getenv("OLLAMA_MODEL")
	}
	if model == "" {
		model = "llama3.2-vision"
	}
	return &Ollama{model: model}
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) Recognize(ctx context.Context, payload []byte) (Result, error) {
	ollamaURL := os.Getenv("OLLAMA_URL")
	if ollamaURL == "" {
		ollamaURL = os.Getenv("OLLAMA_HOST")
	}
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}

	requestBody, err := json.Marshal(map[string]interface{}{
		"model":  o.model,
		"prompt": recognitionPrompt,
		"images": []string{base64.StdEncoding.EncodeToString(payload)},
		"stream": false,
		"options": map[string]interface{}{
			"temperature": 0.0,
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", ollamaURL+"/api/generate", bytes.NewBuffer(requestBody))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to call Ollama API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("ollama API returned status %d: %s", resp.StatusCode, string(body))
	}

	var ollamaResp struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return Result{}, fmt.Errorf("failed to decode Ollama response: %w", err)
	}

	return parseLLMResult(ollamaResp.Response)
}
