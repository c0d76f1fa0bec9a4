package attendance

import (
	"net/url"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	// DefaultQRSize is the PNG edge length in pixels.
	DefaultQRSize = 320
	minQRSize     = 128
	maxQRSize     = 1024
)

// PortalURL is the link encoded in an invitee's QR code.
func PortalURL(baseURL, code string) string {
	return baseURL + "/portal?code=" + url.QueryEscape(code)
}

// QRCodePNG renders content as a PNG QR code. size is clamped to a sane range.
func QRCodePNG(content string, size int) ([]byte, error) {
	switch {
	case size <= 0:
		size = DefaultQRSize
	case size < minQRSize:
		size = minQRSize
	case size > maxQRSize:
		size = maxQRSize
	}
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return q.PNG(size)
}
