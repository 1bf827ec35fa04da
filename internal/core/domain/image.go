package domain

import "fmt"

// ImageAsset is a resolved image file read from the working image directory.
type ImageAsset struct {
	Path   string
	Format string
	Width  int
	Height int
	Data   []byte
}

type ImageSlotState int

const (
	ImageMissing ImageSlotState = iota
	ImageFound
	ImageBroken
)

func (s ImageSlotState) String() string {
	switch s {
	case ImageFound:
		return "found"
	case ImageBroken:
		return "broken"
	default:
		return "missing"
	}
}

// ImageSlot is the outcome of resolving and loading the image of one record.
// The page builder renders a picture for ImageFound and placeholder text for
// the other two states.
type ImageSlot struct {
	State     ImageSlotState
	Reference string
	Asset     *ImageAsset
	Reason    string
}

func FoundImage(reference string, asset *ImageAsset) ImageSlot {
	return ImageSlot{State: ImageFound, Reference: reference, Asset: asset}
}

func MissingImage(reference string) ImageSlot {
	return ImageSlot{State: ImageMissing, Reference: reference}
}

func BrokenImage(reference string, err error) ImageSlot {
	reason := "unknown error"
	if err != nil {
		reason = err.Error()
	}
	return ImageSlot{State: ImageBroken, Reference: reference, Reason: reason}
}

func (s ImageSlot) String() string {
	switch s.State {
	case ImageFound:
		return fmt.Sprintf("found %s", s.Asset.Path)
	case ImageBroken:
		return fmt.Sprintf("broken %q: %s", s.Reference, s.Reason)
	default:
		return fmt.Sprintf("missing %q", s.Reference)
	}
}
