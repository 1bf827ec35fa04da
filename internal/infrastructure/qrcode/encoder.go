package qrcode

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	goqrcode "github.com/skip2/go-qrcode"
)

const DefaultSizePixels = 256

type Encoder struct {
	size  int
	level goqrcode.RecoveryLevel
}

// New returns an encoder producing size x size PNG rasters at medium error
// correction. Non-positive sizes fall back to DefaultSizePixels.
func New(size int) *Encoder {
	if size <= 0 {
		size = DefaultSizePixels
	}
	return &Encoder{size: size, level: goqrcode.Medium}
}

// Encode renders text as a PNG QR code. Empty text yields an all-white raster
// of the same size: callers still get an embeddable picture, and no symbol is
// drawn that a scanner could read as a product code.
func (e *Encoder) Encode(text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return blankPNG(e.size)
	}
	raw, err := goqrcode.Encode(text, e.level, e.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return raw, nil
}

func blankPNG(size int) ([]byte, error) {
	img := image.NewGray(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode blank qr raster: %w", err)
	}
	return buf.Bytes(), nil
}
