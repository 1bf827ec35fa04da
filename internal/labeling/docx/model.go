// Package docx models the subset of WordprocessingML needed for label sheets
// (tables, text runs, inline pictures, page breaks) and writes it out as a
// .docx package.
package docx

import "strings"

// Length conversions. Table and paragraph geometry is expressed in twips
// (1/20 pt); drawing extents in EMU.
const (
	TwipsPerInch = 1440
	EMUPerInch   = 914400
)

func InchesToTwips(in float64) int {
	return int(in*TwipsPerInch + 0.5)
}

func InchesToEMU(in float64) int64 {
	return int64(in*EMUPerInch + 0.5)
}

type Alignment string

const (
	AlignDefault Alignment = ""
	AlignLeft    Alignment = "left"
	AlignCenter  Alignment = "center"
	AlignRight   Alignment = "right"
)

type VerticalAlignment string

const (
	VAlignDefault VerticalAlignment = ""
	VAlignTop     VerticalAlignment = "top"
	VAlignCenter  VerticalAlignment = "center"
	VAlignBottom  VerticalAlignment = "bottom"
)

// VMerge marks a cell as the start or continuation of a vertical merge.
type VMerge string

const (
	VMergeNone     VMerge = ""
	VMergeRestart  VMerge = "restart"
	VMergeContinue VMerge = "continue"
)

// Block is a body-level element: a paragraph or a table.
type Block interface {
	isBlock()
}

type PageMargins struct {
	Top    int
	Right  int
	Bottom int
	Left   int
}

// Page size is fixed to US Letter.
const (
	PageWidth  = 12240
	PageHeight = 15840
)

type Document struct {
	Margins PageMargins
	Body    []Block
}

func New() *Document {
	return &Document{
		Margins: PageMargins{Top: 1440, Right: 1440, Bottom: 1440, Left: 1440},
	}
}

func (d *Document) Append(blocks ...Block) {
	d.Body = append(d.Body, blocks...)
}

// AddPageBreak appends a paragraph holding a single hard page break.
func (d *Document) AddPageBreak() {
	d.Body = append(d.Body, &Paragraph{Runs: []Run{{PageBreak: true}}})
}

type Spacing struct {
	Before int
	After  int
}

type ParagraphProps struct {
	Align   Alignment
	Spacing *Spacing
}

type Paragraph struct {
	Props ParagraphProps
	Runs  []Run
}

func (*Paragraph) isBlock() {}

func NewParagraph(text string) *Paragraph {
	p := &Paragraph{}
	if text != "" {
		p.Runs = append(p.Runs, Run{Text: text})
	}
	return p
}

func (p *Paragraph) AddRun(r Run) *Paragraph {
	p.Runs = append(p.Runs, r)
	return p
}

// HasPageBreak reports whether the paragraph carries a hard page break.
func (p *Paragraph) HasPageBreak() bool {
	for _, r := range p.Runs {
		if r.PageBreak {
			return true
		}
	}
	return false
}

func (p *Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// Run is a span of uniformly formatted content. Exactly one of Text, Picture
// or PageBreak is expected to be set.
type Run struct {
	Text      string
	Bold      bool
	SizeHalfP int
	Color     string
	Picture   *Picture
	PageBreak bool
}

// Picture is an inline raster image. Data is embedded as a media part; equal
// payloads are stored once per package.
type Picture struct {
	Name   string
	Format string
	Data   []byte
	Width  int64
	Height int64
}

type BorderSpec struct {
	Style string
	Size  int
	Space int
	Color string
}

type TableProps struct {
	Align       Alignment
	FixedLayout bool
	Borders     *BorderSpec
}

type Table struct {
	Props TableProps
	Grid  []int
	Rows  []*Row
}

func (*Table) isBlock() {}

// NewTable builds a rows x len(grid) table of empty cells, each cell sized to
// its grid column.
func NewTable(rows int, grid []int) *Table {
	t := &Table{Grid: append([]int(nil), grid...)}
	for i := 0; i < rows; i++ {
		row := &Row{}
		for _, w := range grid {
			row.Cells = append(row.Cells, &Cell{Props: CellProps{Width: w}})
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func (t *Table) Cell(row, col int) *Cell {
	return t.Rows[row].Cells[col]
}

// Cells returns every cell in row-major order.
func (t *Table) Cells() []*Cell {
	var out []*Cell
	for _, r := range t.Rows {
		out = append(out, r.Cells...)
	}
	return out
}

// MergeRow collapses a whole row into one cell spanning every grid column.
func (t *Table) MergeRow(row int) *Cell {
	r := t.Rows[row]
	width := 0
	for _, w := range t.Grid {
		width += w
	}
	merged := r.Cells[0]
	merged.Props.GridSpan = len(t.Grid)
	merged.Props.Width = width
	r.Cells = []*Cell{merged}
	return merged
}

// MergeDown vertically merges the cell at (row, col) with the n-1 cells below.
func (t *Table) MergeDown(row, col, n int) *Cell {
	if n < 2 {
		return t.Cell(row, col)
	}
	head := t.Cell(row, col)
	head.Props.VMerge = VMergeRestart
	for i := 1; i < n; i++ {
		t.Cell(row+i, col).Props.VMerge = VMergeContinue
	}
	return head
}

type RowProps struct {
	MinHeight int
}

type Row struct {
	Props RowProps
	Cells []*Cell
}

type CellMargins struct {
	Top    int
	Left   int
	Bottom int
	Right  int
}

type CellProps struct {
	Width    int
	GridSpan int
	VMerge   VMerge
	Margins  *CellMargins
	VAlign   VerticalAlignment
}

// Cell content is a sequence of paragraphs and nested tables.
type Cell struct {
	Props   CellProps
	Content []Block
}

func (c *Cell) Add(blocks ...Block) {
	c.Content = append(c.Content, blocks...)
}

func (c *Cell) SetText(text string) *Paragraph {
	p := NewParagraph(text)
	c.Content = []Block{p}
	return p
}

// Paragraphs returns the cell's own paragraphs, not those of nested tables.
func (c *Cell) Paragraphs() []*Paragraph {
	var out []*Paragraph
	for _, b := range c.Content {
		if p, ok := b.(*Paragraph); ok {
			out = append(out, p)
		}
	}
	return out
}

// Tables returns the tables nested directly in the cell.
func (c *Cell) Tables() []*Table {
	var out []*Table
	for _, b := range c.Content {
		if t, ok := b.(*Table); ok {
			out = append(out, t)
		}
	}
	return out
}

// PlainText flattens blocks into text, one line per paragraph, depth first.
func PlainText(blocks []Block) string {
	var lines []string
	var walk func([]Block)
	walk = func(bs []Block) {
		for _, b := range bs {
			switch v := b.(type) {
			case *Paragraph:
				if s := v.Text(); s != "" {
					lines = append(lines, s)
				}
			case *Table:
				for _, row := range v.Rows {
					for _, cell := range row.Cells {
						walk(cell.Content)
					}
				}
			}
		}
	}
	walk(blocks)
	return strings.Join(lines, "\n")
}

// Pictures collects every inline picture in blocks, depth first.
func Pictures(blocks []Block) []*Picture {
	var out []*Picture
	var walk func([]Block)
	walk = func(bs []Block) {
		for _, b := range bs {
			switch v := b.(type) {
			case *Paragraph:
				for _, r := range v.Runs {
					if r.Picture != nil {
						out = append(out, r.Picture)
					}
				}
			case *Table:
				for _, row := range v.Rows {
					for _, cell := range row.Cells {
						walk(cell.Content)
					}
				}
			}
		}
	}
	walk(blocks)
	return out
}
