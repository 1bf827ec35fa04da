package labeling

import "fmt"

// Header image box, in inches.
const (
	ImageWidthInches     = 2.5
	ImageMaxHeightInches = 3.0
)

// ImageDisplaySize scales a picture to the fixed header width, keeping its
// aspect ratio, then shrinks both sides proportionally if the height would
// exceed the cap.
func ImageDisplaySize(pixelWidth, pixelHeight int) (width, height float64, err error) {
	if pixelWidth <= 0 || pixelHeight <= 0 {
		return 0, 0, fmt.Errorf("invalid image size %dx%d", pixelWidth, pixelHeight)
	}
	width = ImageWidthInches
	height = width * float64(pixelHeight) / float64(pixelWidth)
	if height > ImageMaxHeightInches {
		ratio := ImageMaxHeightInches / height
		width *= ratio
		height = ImageMaxHeightInches
	}
	return width, height, nil
}
