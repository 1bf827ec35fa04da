package labeling

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/box-labels/internal/labeling/docx"
)

func writeStyle(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "style.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write style: %v", err)
	}
	return path
}

func TestLoadStyleDefaults(t *testing.T) {
	style, err := LoadStyle("")
	if err != nil {
		t.Fatalf("LoadStyle() error = %v", err)
	}
	if style.CodeColor != "C00000" || style.CodeSizePt != 26 || !style.codeBold() {
		t.Fatalf("unexpected defaults %+v", style)
	}
}

func TestLoadStyleOverrides(t *testing.T) {
	path := writeStyle(t, "code_color: '#1f4e79'\ncode_bold: false\nqr_size_in: 1.0\n")

	style, err := LoadStyle(path)
	if err != nil {
		t.Fatalf("LoadStyle() error = %v", err)
	}
	if style.CodeColor != "1F4E79" {
		t.Fatalf("expected normalized color, got %q", style.CodeColor)
	}
	if style.codeBold() {
		t.Fatalf("expected bold override to false")
	}
	if style.QRSizeInches != 1.0 || style.CodeSizePt != 26 || style.DateLayout != "02/01/2006" {
		t.Fatalf("expected untouched fields to keep defaults, got %+v", style)
	}
}

func TestLoadStyleValidation(t *testing.T) {
	cases := map[string]string{
		"bad color": "code_color: red\n",
		"tiny font": "code_size_pt: 2\n",
		"huge qr":   "qr_size_in: 4\n",
		"not yaml":  "code_color: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadStyle(writeStyle(t, body)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestFormatTableAppliesOwnCellsOnly(t *testing.T) {
	outer := docx.NewTable(1, []int{1000})
	inner := docx.NewTable(1, []int{500})
	inner.Cell(0, 0).SetText("inner")
	outer.Cell(0, 0).SetText("outer")
	outer.Cell(0, 0).Add(inner)

	FormatTable(outer)

	if outer.Props.Borders == nil || !strings.EqualFold(outer.Props.Borders.Style, "single") {
		t.Fatalf("expected single borders")
	}
	if p := outer.Cell(0, 0).Paragraphs()[0]; p.Props.Spacing == nil || p.Props.Spacing.Before != 20 {
		t.Fatalf("expected tightened spacing on own paragraph")
	}
	if inner.Props.Borders != nil || inner.Cell(0, 0).Props.Margins != nil {
		t.Fatalf("nested table must be formatted separately")
	}
}
