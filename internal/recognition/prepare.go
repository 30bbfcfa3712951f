package recognition

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

// prepare decodes a payload and, when its smallest dimension is below
// minDim, upscales it so the recognizer sees enough pixels. It returns the
// payload actually to be submitted along with that payload's dimensions;
// word boxes and annotation dimensions must refer to these, not to the
// original capture size.
func prepare(payload []byte, minDim int) ([]byte, int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}
	short := cfg.Width
	if cfg.Height < short {
		short = cfg.Height
	}
	if minDim <= 0 || short >= minDim || short == 0 {
		return payload, cfg.Width, cfg.Height, nil
	}

	src, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode image: %w", err)
	}
	factor := float64(minDim) / float64(short)
	w := int(float64(cfg.Width)*factor + 0.5)
	h := int(float64(cfg.Height)*factor + 0.5)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, 0, 0, fmt.Errorf("encode upscaled image: %w", err)
	}
	return buf.Bytes(), w, h, nil
}
