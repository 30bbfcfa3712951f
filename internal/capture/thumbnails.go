package capture

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/jpeg"
	"log/slog"
	"time"

	"golang.org/x/image/draw"
)

// Thumbnail is a small preview of one session image, ready for a UI strip.
type Thumbnail struct {
	ID         string    `json:"id"`
	Index      int       `json:"index"`
	DataURL    string    `json:"data_url"`
	CapturedAt time.Time `json:"captured_at"`
}

// GetThumbnails renders a downscaled JPEG data URL per session image, in
// capture order. Images that fail to decode keep their slot with an empty
// DataURL so indexes stay aligned with the session list.
func (s *Service) GetThumbnails() []Thumbnail {
	images := s.store.Images()
	out := make([]Thumbnail, 0, len(images))
	for i, img := range images {
		t := Thumbnail{ID: img.ID, Index: i, CapturedAt: img.Meta.CapturedAt}
		if payload, ok := s.store.Payload(img.ID); ok {
			if url, err := thumbnailDataURL(payload, s.thumbEdge); err != nil {
				slog.Warn("Thumbnail generation failed", "image_id", img.ID, "err", err)
			} else {
				t.DataURL = url
			}
		}
		out = append(out, t)
	}
	return out
}

func thumbnailDataURL(payload []byte, edge int) (string, error) {
	src, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	long := w
	if h > long {
		long = h
	}
	if edge > 0 && long > edge {
		scale := float64(edge) / float64(long)
		w = int(float64(w)*scale + 0.5)
		h = int(float64(h)*scale + 0.5)
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 75}); err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
