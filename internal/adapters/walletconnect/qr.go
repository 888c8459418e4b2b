package walletconnect

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// RenderQR draws uri as a terminal QR code using half-block characters.
func RenderQR(uri string) (string, error) {
	code, err := qrcode.New(uri, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("encode pairing qr: %w", err)
	}
	return code.ToSmallString(false), nil
}

// WriteQRPNG saves uri as a PNG QR code at path.
func WriteQRPNG(uri, path string, size int) error {
	if size <= 0 {
		size = 256
	}
	if err := qrcode.WriteFile(uri, qrcode.Medium, size, path); err != nil {
		return fmt.Errorf("write pairing qr %s: %w", path, err)
	}
	return nil
}
