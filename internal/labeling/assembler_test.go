package labeling

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/box-labels/internal/core/domain"
	"github.com/kirillkom/box-labels/internal/labeling/docx"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
}

func newTestAssembler() *Assembler {
	return NewAssembler(FileImageLoader{}, &qrFake{payload: []byte("qr")},
		WithClock(func() time.Time { return receivedAt() }),
	)
}

func pageTables(doc *docx.Document) []*docx.Table {
	var out []*docx.Table
	for _, b := range doc.Body {
		if t, ok := b.(*docx.Table); ok {
			out = append(out, t)
		}
	}
	return out
}

func pageBreaks(doc *docx.Document) int {
	n := 0
	for _, b := range doc.Body {
		if p, ok := b.(*docx.Paragraph); ok && p.HasPageBreak() {
			n++
		}
	}
	return n
}

func TestComposeOnePagePerBox(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "nested", "abc123.png"), 20, 10)

	records := []domain.ProductRecord{
		sampleRecord(),
		{Row: 3, Code: "XYZ", Description: "Washers", Quantity: "10", ImageReference: "missing.jpg", BoxCount: 1},
	}
	doc, stats, err := newTestAssembler().Compose(records, dir)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}

	pages := pageTables(doc)
	if len(pages) != 4 || stats.Pages != 4 {
		t.Fatalf("expected 4 pages, got %d tables and stats %+v", len(pages), stats)
	}
	if got := pageBreaks(doc); got != 3 {
		t.Fatalf("expected 3 page breaks between 4 pages, got %d", got)
	}
	if _, ok := doc.Body[len(doc.Body)-1].(*docx.Table); !ok {
		t.Fatalf("document must not end with a page break")
	}
	if doc.Margins != (docx.PageMargins{Top: 432, Right: 720, Bottom: 432, Left: 720}) {
		t.Fatalf("unexpected page margins %+v", doc.Margins)
	}

	for i, want := range []string{"BOX 1 OF 3", "BOX 2 OF 3", "BOX 3 OF 3", "BOX 1 OF 1"} {
		if text := docx.PlainText([]docx.Block{pages[i]}); !strings.Contains(text, want) {
			t.Fatalf("page %d missing %q", i+1, want)
		}
	}
	if pics := docx.Pictures([]docx.Block{pages[0]}); len(pics) != 2 {
		t.Fatalf("expected case-insensitive match to embed abc123.png, got %d pictures", len(pics))
	}
	if text := docx.PlainText([]docx.Block{pages[3]}); !strings.Contains(text, "IMAGE NOT FOUND: missing.jpg") {
		t.Fatalf("expected placeholder on last page")
	}
	want := domain.JobStats{Records: 2, Pages: 4, ImagesFound: 1, ImagesMissing: 1}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
}

func TestComposeBrokenImage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "ABC123.png"), []byte("not a png"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	rec := sampleRecord()
	rec.BoxCount = 1

	doc, stats, err := newTestAssembler().Compose([]domain.ProductRecord{rec}, dir)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if stats.ImagesBroken != 1 {
		t.Fatalf("expected broken image, got %+v", stats)
	}
	if text := docx.PlainText(doc.Body); !strings.Contains(text, "IMAGE COULD NOT BE LOADED") {
		t.Fatalf("expected load failure placeholder")
	}
}

func TestComposeRejectsInvalidRecords(t *testing.T) {
	records := []domain.ProductRecord{
		sampleRecord(),
		{Row: 7, Description: "No code", Quantity: "1"},
	}
	doc, stats, err := newTestAssembler().Compose(records, "")
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if doc != nil || stats.Pages != 0 {
		t.Fatalf("expected no output on validation failure")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input kind, got %v", err)
	}
	if !strings.Contains(err.Error(), "row 7: column CODIGO") {
		t.Fatalf("expected row and column in error, got %v", err)
	}
}

func TestComposeRejectsEmptyRecordSet(t *testing.T) {
	if _, _, err := newTestAssembler().Compose(nil, ""); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty record set, got %v", err)
	}
}

func TestComposeMissingImageDirectory(t *testing.T) {
	_, _, err := newTestAssembler().Compose([]domain.ProductRecord{sampleRecord()}, filepath.Join(t.TempDir(), "absent"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for absent image directory, got %v", err)
	}
}

func TestComposeUnparseableBoxCountYieldsOnePage(t *testing.T) {
	rec := sampleRecord()
	rec.BoxCount = domain.ParseBoxCount("abc")

	_, stats, err := newTestAssembler().Compose([]domain.ProductRecord{rec}, "")
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if stats.Pages != 1 {
		t.Fatalf("expected one page, got %d", stats.Pages)
	}
}

func TestComposeRejectsBoxCountAboveRowLimit(t *testing.T) {
	rec := sampleRecord()
	rec.Row = 4
	rec.BoxCount = domain.ParseBoxCount("2147483647")

	doc, stats, err := newTestAssembler().Compose([]domain.ProductRecord{rec}, "")
	if err == nil {
		t.Fatalf("expected page limit error")
	}
	if doc != nil || stats.Pages != 0 {
		t.Fatalf("expected no output when the page limit is exceeded")
	}
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Row != 4 || verr.Field != domain.ColumnBoxCount {
		t.Fatalf("expected validation error on row 4 column %s, got %v", domain.ColumnBoxCount, err)
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input kind, got %v", err)
	}
}

func TestComposeRejectsDocumentAboveJobLimit(t *testing.T) {
	records := []domain.ProductRecord{sampleRecord(), sampleRecord(), sampleRecord()}
	for i := range records {
		records[i].Row = i + 2
		records[i].BoxCount = 2
	}
	assembler := NewAssembler(FileImageLoader{}, &qrFake{payload: []byte("qr")},
		WithPageLimits(PageLimits{MaxPages: 5, MaxBoxesPerRecord: 3}),
	)

	_, _, err := assembler.Compose(records, "")
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Row != 4 || verr.Field != domain.ColumnBoxCount {
		t.Fatalf("expected job limit error on the row that crosses it, got %v", err)
	}
	if !strings.Contains(err.Error(), "limit of 5 pages") {
		t.Fatalf("expected limit in error, got %v", err)
	}

	records = records[:2]
	_, stats, err := assembler.Compose(records, "")
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if stats.Pages != 4 {
		t.Fatalf("expected 4 pages under the limit, got %d", stats.Pages)
	}
}

func TestComposeOversizedImageBecomesBroken(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "abc123.png"), pngHeader(50000, 50000), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	doc, stats, err := newTestAssembler().Compose([]domain.ProductRecord{sampleRecord()}, dir)
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if stats.ImagesBroken != 1 || stats.ImagesFound != 0 {
		t.Fatalf("expected one broken image, got %+v", stats)
	}
	if !strings.Contains(docx.PlainText(doc.Body), "exceeds the limit") {
		t.Fatalf("expected size reason on the placeholder")
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "abc123.png"), 30, 30)
	records := []domain.ProductRecord{sampleRecord()}

	first, _, err := newTestAssembler().Assemble(records, dir)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	second, _, err := newTestAssembler().Assemble(records, dir)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("expected byte-identical documents for identical inputs")
	}
	if !bytes.HasPrefix(first, []byte("PK")) {
		t.Fatalf("expected a zip package")
	}
}
