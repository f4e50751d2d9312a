// Package qrimage renders token payloads as QR code images.
package qrimage

import (
	"fmt"
	"image"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 1024
)

// ClampSize maps a requested edge length onto [MinSize, MaxSize].  Zero or
// negative means DefaultSize.
func ClampSize(size int) int {
	if size <= 0 {
		return DefaultSize
	}
	return min(max(size, MinSize), MaxSize)
}

func encode(payload string) (*qrcode.QRCode, error) {
	if payload == "" {
		return nil, fmt.Errorf("qrimage: empty payload")
	}
	q, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qrimage: encode: %w", err)
	}
	return q, nil
}

// PNG encodes payload as a square PNG of the clamped size.
func PNG(payload string, size int) ([]byte, error) {
	q, err := encode(payload)
	if err != nil {
		return nil, err
	}
	out, err := q.PNG(ClampSize(size))
	if err != nil {
		return nil, fmt.Errorf("qrimage: png: %w", err)
	}
	return out, nil
}

// Image returns payload as a black-on-white image with no quiet zone, for
// printers that already add their own margin.
func Image(payload string, size int) (image.Image, error) {
	q, err := encode(payload)
	if err != nil {
		return nil, err
	}
	q.DisableBorder = true
	return q.Image(ClampSize(size)), nil
}
