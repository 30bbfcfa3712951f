package recognition

import "testing"

func TestParseLLMResult(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantText  string
		wantWords int
		wantErr   bool
	}{
		{
			name:      "bare json",
			raw:       `{"text": "hello world", "words": [{"text": "hello", "x": 1, "y": 2, "w": 40, "h": 12}, {"text": "world", "x": 45, "y": 2, "w": 42, "h": 12}]}`,
			wantText:  "hello world",
			wantWords: 2,
		},
		{
			name:      "fenced json",
			raw:       "```json\n{\"text\": \"hi\", \"words\": []}\n```",
			wantText:  "hi",
			wantWords: 0,
		},
		{
			name:      "fence without language tag",
			raw:       "```\n{\"text\": \"hi\", \"words\": []}\n```",
			wantText:  "hi",
			wantWords: 0,
		},
		{
			name:      "leading prose",
			raw:       "Here is the transcription you asked for:\n{\"text\": \"x\", \"words\": []}",
			wantText:  "x",
			wantWords: 0,
		},
		{
			name:      "drops degenerate words",
			raw:       `{"text": "a b c", "words": [{"text": "a", "x": 0, "y": 0, "w": 10, "h": 10}, {"text": "", "x": 0, "y": 0, "w": 10, "h": 10}, {"text": "c", "x": 0, "y": 0, "w": 0, "h": 10}]}`,
			wantText:  "a b c",
			wantWords: 1,
		},
		{
			name:      "empty image",
			raw:       `{"text": "", "words": []}`,
			wantText:  "",
			wantWords: 0,
		},
		{
			name:    "no json at all",
			raw:     "I cannot read this image.",
			wantErr: true,
		},
		{
			name:    "broken json",
			raw:     `{"text": "unterminated`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := parseLLMResult(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error, got %+v", res)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseLLMResult failed: %v", err)
			}
			if res.Text != tt.wantText {
				t.Errorf("Expected text %q, got %q", tt.wantText, res.Text)
			}
			if len(res.Words) != tt.wantWords {
				t.Errorf("Expected %d words, got %+v", tt.wantWords, res.Words)
			}
		})
	}
}

func TestParseLLMResultWordGeometry(t *testing.T) {
	res, err := parseLLMResult(`{"text": "word", "words": [{"text": "word", "x": 10.5, "y": 20, "w": 55, "h": 14}]}`)
	if err != nil {
		t.Fatalf("parseLLMResult failed: %v", err)
	}
	w := res.Words[0]
	if w.X != 10.5 || w.Y != 20 || w.Width != 55 || w.Height != 14 {
		t.Errorf("Unexpected geometry: %+v", w)
	}
}
