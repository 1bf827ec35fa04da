package labeling

import "github.com/kirillkom/box-labels/internal/labeling/docx"

const (
	borderStyle = "single"
	borderSize  = 8
	borderColor = "000000"

	cellMarginTopBottom = 40
	cellMarginLeftRight = 60

	paragraphSpacing = 20

	// ObservationMinHeight is the minimum observation row height in twips (40pt).
	ObservationMinHeight = 800
)

// ApplyBorders draws single black lines on every edge and inner grid line.
func ApplyBorders(t *docx.Table) {
	t.Props.Borders = &docx.BorderSpec{
		Style: borderStyle,
		Size:  borderSize,
		Space: 0,
		Color: borderColor,
	}
}

// ApplyCellMargins sets the small internal padding and pins content to the
// top unless the cell already asks for another alignment.
func ApplyCellMargins(c *docx.Cell) {
	c.Props.Margins = &docx.CellMargins{
		Top:    cellMarginTopBottom,
		Left:   cellMarginLeftRight,
		Bottom: cellMarginTopBottom,
		Right:  cellMarginLeftRight,
	}
	if c.Props.VAlign == docx.VAlignDefault {
		c.Props.VAlign = docx.VAlignTop
	}
}

// TightenParagraphSpacing keeps a small gap around a paragraph. Zero spacing
// renders cramped in Word.
func TightenParagraphSpacing(p *docx.Paragraph) {
	if p == nil {
		return
	}
	p.Props.Spacing = &docx.Spacing{Before: paragraphSpacing, After: paragraphSpacing}
}

// SetRowMinHeight enforces a minimum row height; the row may still grow.
func SetRowMinHeight(r *docx.Row, minimum int) {
	r.Props.MinHeight = minimum
}

// FormatTable applies borders to t and margins plus paragraph spacing to each
// of its cells. Nested tables are left to their own FormatTable call.
func FormatTable(t *docx.Table) {
	ApplyBorders(t)
	for _, c := range t.Cells() {
		ApplyCellMargins(c)
		for _, p := range c.Paragraphs() {
			TightenParagraphSpacing(p)
		}
	}
}
