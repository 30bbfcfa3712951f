package models

import "time"

// SessionStatus tracks where a capture session is in its lifecycle.
type SessionStatus string

const (
	StatusIdle   SessionStatus = "idle"
	StatusActive SessionStatus = "active"
	StatusPaused SessionStatus = "paused"
)

// CaptureSession represents one logical capture run. It owns an ordered list
// of image ids; the payloads live in the blob store.
type CaptureSession struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Status     SessionStatus `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
	ImageIDs   []string      `json:"image_ids"`
	ImageCount int           `json:"image_count"`
	UsageBytes int64         `json:"usage_bytes"`
}

// ImageMeta carries capture-time context for an image.
type ImageMeta struct {
	SourceURL   string    `json:"source_url,omitempty"`
	SourceTitle string    `json:"source_title,omitempty"`
	CapturedAt  time.Time `json:"captured_at"`
}

// Word is a single recognized token with its bounding box in the pixel
// coordinates of the image that was submitted for recognition.
type Word struct {
	Text       string  `json:"text"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Annotation is the recognition output attached to a stored image. Width and
// Height are the dimensions of the image actually sent to the recognizer,
// which may have been upscaled from the capture size.
type Annotation struct {
	Text      string `json:"text"`
	Words     []Word `json:"words,omitempty"`
	Width     int    `json:"source_width"`
	Height    int    `json:"source_height"`
	Attempted bool   `json:"attempted"`
}

// StoredImage is the per-image record kept by the capture session store.
type StoredImage struct {
	ID         string      `json:"id"`
	Meta       ImageMeta   `json:"meta"`
	Size       int64       `json:"size"`
	Annotation *Annotation `json:"annotation,omitempty"`
}

// UploadImage is one slot in a broker session: payload and its recognized
// text live in the same record so they can never drift apart.
type UploadImage struct {
	Payload []byte    `json:"payload"`
	Text    string    `json:"text"`
	AddedAt time.Time `json:"added_at"`
}

// UploadSession is the broker-side ephemeral session. The upload window and
// the retention deadline run on independent clocks.
type UploadSession struct {
	ID             string        `json:"id"`
	Name           string        `json:"name,omitempty"`
	Token          string        `json:"-"`
	CreatedAt      time.Time     `json:"created_at"`
	RetainUntil    time.Time     `json:"retain_until"`
	WindowDeadline time.Time     `json:"upload_expires_at"`
	Closed         bool          `json:"closed"`
	Images         []UploadImage `json:"images"`
}
