package labeling

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Style holds the cosmetic knobs of the label layout. Geometry (column
// widths, image box, log grid) is fixed and lives in builder.go.
type Style struct {
	CodeColor    string  `yaml:"code_color"`
	CodeSizePt   float64 `yaml:"code_size_pt"`
	CodeBold     *bool   `yaml:"code_bold"`
	QRSizeInches float64 `yaml:"qr_size_in"`
	DateLayout   string  `yaml:"date_layout"`
}

func DefaultStyle() Style {
	bold := true
	return Style{
		CodeColor:    "C00000",
		CodeSizePt:   26,
		CodeBold:     &bold,
		QRSizeInches: 1.2,
		DateLayout:   "02/01/2006",
	}
}

// LoadStyle reads a YAML style file. An empty path yields the defaults;
// fields missing from the file keep their default values.
func LoadStyle(path string) (Style, error) {
	style := DefaultStyle()
	if strings.TrimSpace(path) == "" {
		return style, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Style{}, fmt.Errorf("read label style: %w", err)
	}
	var override Style
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return Style{}, fmt.Errorf("parse label style: %w", err)
	}
	return style.merge(override).normalize()
}

func (s Style) merge(o Style) Style {
	if o.CodeColor != "" {
		s.CodeColor = o.CodeColor
	}
	if o.CodeSizePt != 0 {
		s.CodeSizePt = o.CodeSizePt
	}
	if o.CodeBold != nil {
		s.CodeBold = o.CodeBold
	}
	if o.QRSizeInches != 0 {
		s.QRSizeInches = o.QRSizeInches
	}
	if o.DateLayout != "" {
		s.DateLayout = o.DateLayout
	}
	return s
}

func (s Style) normalize() (Style, error) {
	s.CodeColor = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(s.CodeColor), "#"))
	if len(s.CodeColor) != 6 || strings.Trim(s.CodeColor, "0123456789ABCDEF") != "" {
		return Style{}, fmt.Errorf("label style: code_color %q is not a RRGGBB hex value", s.CodeColor)
	}
	if s.CodeSizePt < 6 || s.CodeSizePt > 96 {
		return Style{}, fmt.Errorf("label style: code_size_pt %.1f out of range [6, 96]", s.CodeSizePt)
	}
	if s.QRSizeInches <= 0 || s.QRSizeInches > 2.5 {
		return Style{}, fmt.Errorf("label style: qr_size_in %.2f out of range (0, 2.5]", s.QRSizeInches)
	}
	return s, nil
}

func (s Style) codeBold() bool {
	return s.CodeBold == nil || *s.CodeBold
}

// codeSizeHalfPoints converts the code font size to the half-point unit
// used by run properties.
func (s Style) codeSizeHalfPoints() int {
	return int(s.CodeSizePt*2 + 0.5)
}
