package labeling

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/jpeg"
	"math"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileImageLoaderReadsPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "item.png")
	writePNG(t, path, 40, 20)

	asset, err := FileImageLoader{}.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if asset.Format != "png" || asset.Width != 40 || asset.Height != 20 || asset.Path != path {
		t.Fatalf("unexpected asset %+v", asset)
	}
}

func TestDecodeImageKeepsJPEGBytes(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 6)), nil); err != nil {
		t.Fatalf("jpeg.Encode() error = %v", err)
	}
	asset, err := DecodeImage("item.jpg", buf.Bytes(), 0)
	if err != nil {
		t.Fatalf("DecodeImage() error = %v", err)
	}
	if asset.Format != "jpeg" || !bytes.Equal(asset.Data, buf.Bytes()) {
		t.Fatalf("expected jpeg passthrough, got format %q", asset.Format)
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	if _, err := DecodeImage("x.png", []byte("definitely not an image"), 0); err == nil {
		t.Fatalf("expected decode error")
	}
	if _, err := DecodeImage("x.png", nil, 0); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

// pngHeader returns a PNG signature and IHDR chunk claiming w x h RGBA pixels,
// followed by an empty IEND. It carries no pixel data.
func pngHeader(w, h uint32) []byte {
	var buf bytes.Buffer
	buf.Write([]byte("\x89PNG\r\n\x1a\n"))
	chunk := func(kind string, payload []byte) {
		_ = binary.Write(&buf, binary.BigEndian, uint32(len(payload)))
		body := append([]byte(kind), payload...)
		buf.Write(body)
		_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(body))
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth
	ihdr[9] = 6 // RGBA
	chunk("IHDR", ihdr)
	chunk("IEND", nil)
	return buf.Bytes()
}

func TestDecodeImageRejectsOversizedHeader(t *testing.T) {
	_, err := DecodeImage("huge.png", pngHeader(50000, 50000), 0)
	if err == nil {
		t.Fatalf("expected size limit error")
	}
	if !strings.Contains(err.Error(), "50000x50000 exceeds the limit") {
		t.Fatalf("expected size in error, got %v", err)
	}
}

func TestDecodeImageHonoursCustomPixelLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "item.png")
	writePNG(t, path, 40, 20)

	if _, err := (FileImageLoader{MaxPixels: 799}).Load(path); err == nil {
		t.Fatalf("expected 40x20 image to exceed a 799 pixel limit")
	}
	if _, err := (FileImageLoader{MaxPixels: 800}).Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestFileImageLoaderMissingFile(t *testing.T) {
	if _, err := (FileImageLoader{}).Load(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestImageDisplaySize(t *testing.T) {
	cases := []struct {
		name         string
		w, h         int
		wantW, wantH float64
	}{
		{name: "landscape keeps width", w: 200, h: 100, wantW: 2.5, wantH: 1.25},
		{name: "square", w: 50, h: 50, wantW: 2.5, wantH: 2.5},
		{name: "tall is capped", w: 100, h: 300, wantW: 1.0, wantH: 3.0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, h, err := ImageDisplaySize(tc.w, tc.h)
			if err != nil {
				t.Fatalf("ImageDisplaySize() error = %v", err)
			}
			if math.Abs(w-tc.wantW) > 1e-9 || math.Abs(h-tc.wantH) > 1e-9 {
				t.Fatalf("got %.4fx%.4f, want %.4fx%.4f", w, h, tc.wantW, tc.wantH)
			}
			if h > ImageMaxHeightInches+1e-9 {
				t.Fatalf("height %.4f exceeds cap", h)
			}
		})
	}

	if _, _, err := ImageDisplaySize(0, 10); err == nil {
		t.Fatalf("expected error for zero width")
	}
}
