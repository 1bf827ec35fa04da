package labeling

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/box-labels/internal/core/domain"
	"github.com/kirillkom/box-labels/internal/labeling/docx"
)

type qrFake struct {
	payload []byte
	err     error
	calls   []string
}

func (f *qrFake) Encode(text string) ([]byte, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func sampleRecord() domain.ProductRecord {
	return domain.ProductRecord{
		Row:            2,
		Code:           "ABC123",
		Description:    "Steel bolts",
		Quantity:       "40",
		ImageReference: "ABC123",
		BoxCount:       3,
	}
}

func receivedAt() time.Time {
	return time.Date(2024, time.March, 9, 10, 0, 0, 0, time.UTC)
}

func TestPageBuilderLayout(t *testing.T) {
	qr := &qrFake{payload: []byte("qr-png")}
	b := NewPageBuilder(DefaultStyle(), qr, receivedAt())

	page := b.Build(sampleRecord(), 2, domain.MissingImage("ABC123"))

	if len(page.Rows) != 2 || len(page.Grid) != 2 {
		t.Fatalf("expected 2x2 outer table, got %d rows, %d columns", len(page.Rows), len(page.Grid))
	}
	if page.Grid[0] != 4320 || page.Grid[1] != 4320 {
		t.Fatalf("expected 3in columns, got %v", page.Grid)
	}
	if page.Props.Align != docx.AlignCenter || page.Props.Borders == nil {
		t.Fatalf("expected centered bordered outer table, got %+v", page.Props)
	}

	obs := page.Rows[1]
	if len(obs.Cells) != 1 || obs.Cells[0].Props.GridSpan != 2 {
		t.Fatalf("expected merged observation row, got %d cells", len(obs.Cells))
	}
	if obs.Props.MinHeight != ObservationMinHeight {
		t.Fatalf("expected observation min height %d, got %d", ObservationMinHeight, obs.Props.MinHeight)
	}
	if got := docx.PlainText(obs.Cells[0].Content); got != "OBSERVATION:" {
		t.Fatalf("observation text = %q", got)
	}

	left := docx.PlainText(page.Cell(0, 0).Content)
	for _, want := range []string{
		"IMAGE NOT FOUND: ABC123",
		"ABC123",
		"REVIEWED BY:",
		"RECEIVED: 09/03/2024",
		"DESCRIPTION: Steel bolts",
		"BOX 2 OF 3",
		"QUANTITY: 40",
	} {
		if !strings.Contains(left, want) {
			t.Fatalf("left column missing %q in:\n%s", want, left)
		}
	}
	if len(qr.calls) != 1 || qr.calls[0] != "ABC123" {
		t.Fatalf("expected QR for the code, got %v", qr.calls)
	}
}

func TestPageBuilderIdentityBlockMerges(t *testing.T) {
	b := NewPageBuilder(DefaultStyle(), &qrFake{payload: []byte("qr")}, receivedAt())
	page := b.Build(sampleRecord(), 1, domain.MissingImage(""))

	tables := page.Cell(0, 0).Tables()
	if len(tables) != 1 {
		t.Fatalf("expected one identity table, got %d", len(tables))
	}
	identity := tables[0]
	if len(identity.Rows) != identityRows {
		t.Fatalf("expected %d identity rows, got %d", identityRows, len(identity.Rows))
	}
	if identity.Cell(0, 0).Props.VMerge != docx.VMergeRestart {
		t.Fatalf("code block must start a vertical merge")
	}
	for row := 1; row < codeBlockRows; row++ {
		if identity.Cell(row, 0).Props.VMerge != docx.VMergeContinue {
			t.Fatalf("row %d must continue the code block merge", row)
		}
	}
	if identity.Cell(4, 0).Props.VMerge != docx.VMergeRestart || identity.Cell(5, 0).Props.VMerge != docx.VMergeContinue {
		t.Fatalf("reviewed-by block must span rows 4 and 5")
	}

	code := identity.Cell(0, 0).Paragraphs()[0].Runs[0]
	if !code.Bold || code.Color != "C00000" || code.SizeHalfP != 52 {
		t.Fatalf("unexpected code run formatting: %+v", code)
	}
	for _, c := range identity.Cells() {
		if c.Props.Margins == nil || c.Props.VAlign != docx.VAlignTop {
			t.Fatalf("expected formatted identity cells")
		}
		if len(c.Content) == 0 {
			t.Fatalf("every identity cell must hold a paragraph")
		}
	}
}

func TestPageBuilderLogTable(t *testing.T) {
	b := NewPageBuilder(DefaultStyle(), &qrFake{payload: []byte("qr")}, receivedAt())
	page := b.Build(sampleRecord(), 1, domain.MissingImage(""))

	tables := page.Cell(0, 1).Tables()
	if len(tables) != 1 {
		t.Fatalf("expected one log table, got %d", len(tables))
	}
	log := tables[0]
	if len(log.Rows) != LogRows || len(log.Grid) != 4 {
		t.Fatalf("expected %dx4 log table, got %dx%d", LogRows, len(log.Rows), len(log.Grid))
	}
	for col, want := range LogHeader {
		if got := log.Cell(0, col).Paragraphs()[0].Text(); got != want {
			t.Fatalf("header[%d] = %q, want %q", col, got, want)
		}
	}
	width := 0
	for _, w := range log.Grid {
		width += w
	}
	if width != innerWidth {
		t.Fatalf("log table width %d must fit the column (%d)", width, innerWidth)
	}
}

func TestPageBuilderEmbedsFoundImage(t *testing.T) {
	b := NewPageBuilder(DefaultStyle(), &qrFake{payload: []byte("qr")}, receivedAt())
	asset := &domain.ImageAsset{Path: "/tmp/abc123.png", Format: "png", Width: 100, Height: 200, Data: []byte("img")}

	page := b.Build(sampleRecord(), 1, domain.FoundImage("ABC123", asset))

	pics := docx.Pictures(page.Cell(0, 0).Content)
	if len(pics) != 2 {
		t.Fatalf("expected product picture and QR, got %d pictures", len(pics))
	}
	img := pics[0]
	if img.Height != docx.InchesToEMU(ImageMaxHeightInches) {
		t.Fatalf("tall image must be capped at %.1fin, got %d EMU", ImageMaxHeightInches, img.Height)
	}
	if img.Width != docx.InchesToEMU(1.5) {
		t.Fatalf("expected width 1.5in after rescale, got %d EMU", img.Width)
	}
	qr := pics[1]
	if qr.Width != docx.InchesToEMU(1.2) || qr.Width != qr.Height {
		t.Fatalf("expected square 1.2in QR, got %dx%d", qr.Width, qr.Height)
	}
}

func TestPageBuilderPlaceholders(t *testing.T) {
	b := NewPageBuilder(DefaultStyle(), &qrFake{err: errors.New("too long")}, receivedAt())

	page := b.Build(sampleRecord(), 1, domain.BrokenImage("ABC123", errors.New("decode image: bad header")))

	text := docx.PlainText(page.Cell(0, 0).Content)
	if !strings.Contains(text, "IMAGE COULD NOT BE LOADED: decode image: bad header") {
		t.Fatalf("expected broken image placeholder in:\n%s", text)
	}
	if !strings.Contains(text, "QR UNAVAILABLE") {
		t.Fatalf("expected QR placeholder in:\n%s", text)
	}
	if pics := docx.Pictures(page.Cell(0, 0).Content); len(pics) != 0 {
		t.Fatalf("expected no pictures, got %d", len(pics))
	}
}

func TestBoxLabel(t *testing.T) {
	if got := BoxLabel(3, 3); got != "BOX 3 OF 3" {
		t.Fatalf("BoxLabel() = %q", got)
	}
}
