package labeling

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kirillkom/box-labels/internal/core/domain"
	"github.com/kirillkom/box-labels/internal/labeling/docx"
)

// DefaultMaxImagePixels caps the decoded size of one picture.
const DefaultMaxImagePixels = 50_000_000

// FileImageLoader reads and fully decodes an image file so that corrupt
// payloads are caught before they reach the document. Formats Word cannot
// embed (webp) are re-encoded as PNG. Pictures whose header claims more than
// MaxPixels pixels are rejected before decoding; zero means
// DefaultMaxImagePixels.
type FileImageLoader struct {
	MaxPixels int
}

func (l FileImageLoader) Load(path string) (*domain.ImageAsset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return DecodeImage(path, data, l.MaxPixels)
}

// DecodeImage validates raw image bytes and returns the embeddable asset.
// The header is checked against maxPixels before any pixel data is decoded.
func DecodeImage(path string, data []byte, maxPixels int) (*domain.ImageAsset, error) {
	if len(data) == 0 {
		return nil, errors.New("image file is empty")
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxImagePixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("image has invalid size %dx%d", cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("image size %dx%d exceeds the limit of %d pixels", cfg.Width, cfg.Height, maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("image has invalid size %dx%d", bounds.Dx(), bounds.Dy())
	}

	if !docx.SupportedPictureFormat(format) {
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("re-encode %s image as png: %w", format, err)
		}
		data = buf.Bytes()
		format = "png"
	}

	return &domain.ImageAsset{
		Path:   path,
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Data:   data,
	}, nil
}
