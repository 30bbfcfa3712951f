package handlers

import (
	"encoding/base64"
	"errors"
	"strings"
)

var errUnsupportedPayload = errors.New("unsupported image payload")

// decodePayload accepts either a data URL ("data:image/png;base64,...") or a
// bare base64 string and returns the raw image bytes. Non-image data URLs
// are rejected before any decoding work.
func decodePayload(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errUnsupportedPayload
	}
	if strings.HasPrefix(s, "data:") {
		rest := strings.TrimPrefix(s, "data:")
		sep := strings.Index(rest, ";base64,")
		if sep < 0 {
			return nil, errUnsupportedPayload
		}
		mime := rest[:sep]
		if !strings.HasPrefix(mime, "image/") {
			return nil, errUnsupportedPayload
		}
		s = rest[sep+len(";base64,"):]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, errUnsupportedPayload
	}
	return data, nil
}
