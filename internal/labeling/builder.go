package labeling

import (
	"fmt"
	"time"

	"github.com/kirillkom/box-labels/internal/core/domain"
	"github.com/kirillkom/box-labels/internal/labeling/docx"
)

// Fixed page geometry, in twips unless noted.
var (
	pageMargins = docx.PageMargins{
		Top:    docx.InchesToTwips(0.3),
		Right:  docx.InchesToTwips(0.5),
		Bottom: docx.InchesToTwips(0.3),
		Left:   docx.InchesToTwips(0.5),
	}

	outerColumnWidth = docx.InchesToTwips(3)
	innerWidth       = outerColumnWidth - 2*cellMarginLeftRight

	// DATE | QTY. | INIT. | SIGNATURE
	logGrid = []int{1400, 800, 800, innerWidth - 3000}
)

const (
	// Identity block rows.
	identityRows      = 11
	codeBlockRows     = 4
	reviewedBlockRow  = 4
	reviewedBlockRows = 2
	spacerRow         = 6
	receivedRow       = 7
	descriptionRow    = 8
	boxRow            = 9
	quantityRow       = 10

	// LogRows includes the header row.
	LogRows    = 22
	logColumns = 4
)

// LogHeader is the header row of the manual inspection log.
var LogHeader = [logColumns]string{"DATE DD/MM/YY", "QTY.", "INIT.", "SIGNATURE"}

const (
	labelReviewedBy  = "REVIEWED BY:"
	labelReceived    = "RECEIVED: "
	labelDescription = "DESCRIPTION: "
	labelQuantity    = "QUANTITY: "
	labelObservation = "OBSERVATION:"

	placeholderNotFound   = "IMAGE NOT FOUND"
	placeholderLoadFailed = "IMAGE COULD NOT BE LOADED: "
	placeholderNoQR       = "QR UNAVAILABLE"
)

// QREncoder renders a code string as a raster image.
type QREncoder interface {
	Encode(text string) ([]byte, error)
}

// PageBuilder lays out one label page. A builder is bound to one generation
// run: the received date is fixed when it is created.
type PageBuilder struct {
	style    Style
	qr       QREncoder
	received string
}

func NewPageBuilder(style Style, qr QREncoder, received time.Time) *PageBuilder {
	layout := style.DateLayout
	if layout == "" {
		layout = DefaultStyle().DateLayout
	}
	return &PageBuilder{
		style:    style,
		qr:       qr,
		received: received.Format(layout),
	}
}

// Build returns the outer 2x2 table of one page: identity block and log table
// side by side, observation line underneath.
func (b *PageBuilder) Build(record domain.ProductRecord, boxIndex int, image domain.ImageSlot) *docx.Table {
	outer := docx.NewTable(2, []int{outerColumnWidth, outerColumnWidth})
	outer.Props.Align = docx.AlignCenter
	outer.Props.FixedLayout = true

	left := outer.Cell(0, 0)
	left.Add(b.imageHeader(image))
	left.Add(b.identityBlock(record, boxIndex))

	right := outer.Cell(0, 1)
	right.Add(b.logTable())

	obs := outer.MergeRow(1)
	obs.SetText(labelObservation)

	FormatTable(outer)
	SetRowMinHeight(outer.Rows[1], ObservationMinHeight)
	return outer
}

func (b *PageBuilder) imageHeader(slot domain.ImageSlot) *docx.Paragraph {
	p := &docx.Paragraph{Props: docx.ParagraphProps{Align: docx.AlignCenter}}
	switch slot.State {
	case domain.ImageFound:
		w, h, err := ImageDisplaySize(slot.Asset.Width, slot.Asset.Height)
		if err != nil {
			p.AddRun(docx.Run{Text: placeholderLoadFailed + err.Error()})
			return p
		}
		p.AddRun(docx.Run{Picture: &docx.Picture{
			Name:   slot.Reference,
			Format: slot.Asset.Format,
			Data:   slot.Asset.Data,
			Width:  docx.InchesToEMU(w),
			Height: docx.InchesToEMU(h),
		}})
	case domain.ImageBroken:
		p.AddRun(docx.Run{Text: placeholderLoadFailed + slot.Reason})
	default:
		text := placeholderNotFound
		if slot.Reference != "" {
			text += ": " + slot.Reference
		}
		p.AddRun(docx.Run{Text: text})
	}
	return p
}

func (b *PageBuilder) identityBlock(record domain.ProductRecord, boxIndex int) *docx.Table {
	t := docx.NewTable(identityRows, []int{innerWidth})
	t.Props.Align = docx.AlignCenter

	code := t.MergeDown(0, 0, codeBlockRows)
	codePara := &docx.Paragraph{Props: docx.ParagraphProps{Align: docx.AlignCenter}}
	codePara.AddRun(docx.Run{
		Text:      record.Code,
		Bold:      b.style.codeBold(),
		SizeHalfP: b.style.codeSizeHalfPoints(),
		Color:     b.style.CodeColor,
	})
	code.Content = []docx.Block{codePara, b.qrParagraph(record.Code)}

	reviewed := t.MergeDown(reviewedBlockRow, 0, reviewedBlockRows)
	reviewed.SetText(labelReviewedBy)

	t.Cell(spacerRow, 0).SetText("")
	t.Cell(receivedRow, 0).SetText(labelReceived + b.received)
	t.Cell(descriptionRow, 0).SetText(labelDescription + record.Description)
	t.Cell(boxRow, 0).SetText(BoxLabel(boxIndex, record.Boxes()))
	t.Cell(quantityRow, 0).SetText(labelQuantity + record.Quantity)

	// Continuation cells of a vertical merge still need their own paragraph.
	for _, c := range t.Cells() {
		if len(c.Content) == 0 {
			c.SetText("")
		}
	}

	FormatTable(t)
	return t
}

func (b *PageBuilder) qrParagraph(code string) *docx.Paragraph {
	p := &docx.Paragraph{Props: docx.ParagraphProps{Align: docx.AlignCenter}}
	raster, err := b.qr.Encode(code)
	if err != nil || len(raster) == 0 {
		p.AddRun(docx.Run{Text: placeholderNoQR})
		return p
	}
	side := docx.InchesToEMU(b.style.QRSizeInches)
	p.AddRun(docx.Run{Picture: &docx.Picture{
		Name:   "QR " + code,
		Format: "png",
		Data:   raster,
		Width:  side,
		Height: side,
	}})
	return p
}

func (b *PageBuilder) logTable() *docx.Table {
	t := docx.NewTable(LogRows, logGrid)
	t.Props.Align = docx.AlignCenter
	for col, header := range LogHeader {
		t.Cell(0, col).SetText(header)
	}
	for row := 1; row < LogRows; row++ {
		for col := 0; col < logColumns; col++ {
			t.Cell(row, col).SetText("")
		}
	}
	FormatTable(t)
	return t
}

// BoxLabel renders the box counter line of a page.
func BoxLabel(boxIndex, boxCount int) string {
	return fmt.Sprintf("BOX %d OF %d", boxIndex, boxCount)
}
