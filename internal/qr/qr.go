// Package qr isolates QR image generation behind an interface so the
// rendering collaborator can be swapped or stubbed in tests.
package qr

import qrcode "github.com/skip2/go-qrcode"

// Encoder renders content as a PNG QR image of the given pixel size.
type Encoder interface {
	Encode(content string, size int) ([]byte, error)
}

type Default struct{}

func (Default) Encode(content string, size int) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, size)
}
