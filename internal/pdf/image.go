package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is an embeddable image XObject. JPEG payloads pass through untouched
// as DCTDecode streams; everything else is decoded and re-packed as
// flate-compressed RGB.
type Image struct {
	Width      int
	Height     int
	Data       []byte
	Filter     string
	ColorSpace string
}

// ImageFromBytes prepares an encoded image payload for embedding. The
// decode step is where corrupt payloads surface; callers treat failure as
// recoverable.
func ImageFromBytes(payload []byte) (*Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if format == "jpeg" {
		return &Image{
			Width:      cfg.Width,
			Height:     cfg.Height,
			Data:       payload,
			Filter:     "DCTDecode",
			ColorSpace: jpegColorSpace(payload),
		}, nil
	}

	src, _, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	rgb := make([]byte, 0, w*h*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := src.At(x, y).RGBA()
			rgb = append(rgb, byte(r>>8), byte(g>>8), byte(b>>8))
		}
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(rgb); err != nil {
		return nil, fmt.Errorf("compress image data: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress image data: %w", err)
	}

	return &Image{
		Width:      w,
		Height:     h,
		Data:       buf.Bytes(),
		Filter:     "FlateDecode",
		ColorSpace: "DeviceRGB",
	}, nil
}

// jpegColorSpace reports the color space declared by the JPEG header so
// grayscale and CMYK payloads don't get misdeclared as RGB.
func jpegColorSpace(payload []byte) string {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(payload))
	if err != nil {
		return "DeviceRGB"
	}
	switch cfg.ColorModel {
	case color.GrayModel:
		return "DeviceGray"
	case color.CMYKModel:
		return "DeviceCMYK"
	default:
		return "DeviceRGB"
	}
}
