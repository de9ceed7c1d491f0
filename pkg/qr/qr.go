package qr

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Generator renders verification QR codes as PNG bytes.
type Generator struct {
	baseURL string
	size    int
}

// NewGenerator builds a QR generator pointing at the public verification site.
func NewGenerator(baseURL string, size int) *Generator {
	if size <= 0 {
		size = 200
	}
	return &Generator{baseURL: strings.TrimRight(baseURL, "/"), size: size}
}

// VerificationURL returns the public URL a QR for the given code encodes.
func (g *Generator) VerificationURL(code string) string {
	return fmt.Sprintf("%s/verificar/%s", g.baseURL, code)
}

// Render produces a PNG QR encoding the verification URL for a code.
// High error correction so the code survives print-and-scan cycles.
func (g *Generator) Render(code string) ([]byte, error) {
	if code == "" {
		return nil, fmt.Errorf("verification code required")
	}
	png, err := qrcode.Encode(g.VerificationURL(code), qrcode.High, g.size)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	return png, nil
}
