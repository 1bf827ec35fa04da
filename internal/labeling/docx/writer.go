package docx

import (
	"bytes"
	"crypto/sha256"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
)

const (
	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPic = "http://schemas.openxmlformats.org/drawingml/2006/picture"

	relTypeOfficeDocument = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument"
	relTypeImage          = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

	contentTypeMain = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	contentTypeRels = "application/vnd.openxmlformats-package.relationships+xml"

	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
)

// Zip entries carry a fixed timestamp so equal documents produce equal bytes.
var packageModTime = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

var imageContentTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// SupportedPictureFormat reports whether a picture format can be embedded as is.
func SupportedPictureFormat(format string) bool {
	_, ok := imageContentTypes[normalizeFormat(format)]
	return ok
}

func normalizeFormat(format string) string {
	f := strings.ToLower(strings.TrimSpace(format))
	switch f {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	}
	return f
}

type packagePart struct {
	name string
	data []byte
}

type mediaPart struct {
	relID  string
	name   string
	format string
	data   []byte
}

type mediaSet struct {
	byHash map[[sha256.Size]byte]*mediaPart
	order  []*mediaPart
}

func newMediaSet() *mediaSet {
	return &mediaSet{byHash: make(map[[sha256.Size]byte]*mediaPart)}
}

func (m *mediaSet) add(pic *Picture) (*mediaPart, error) {
	format := normalizeFormat(pic.Format)
	if _, ok := imageContentTypes[format]; !ok {
		return nil, fmt.Errorf("unsupported picture format %q", pic.Format)
	}
	if len(pic.Data) == 0 {
		return nil, fmt.Errorf("picture %q has no data", pic.Name)
	}
	sum := sha256.Sum256(pic.Data)
	if part, ok := m.byHash[sum]; ok {
		return part, nil
	}
	n := len(m.order) + 1
	part := &mediaPart{
		relID:  "rId" + strconv.Itoa(n),
		name:   fmt.Sprintf("media/image%d.%s", n, format),
		format: format,
		data:   pic.Data,
	}
	m.byHash[sum] = part
	m.order = append(m.order, part)
	return part, nil
}

// Write serializes the document as a .docx package.
func (d *Document) Write(w io.Writer) error {
	media := newMediaSet()
	body, err := renderDocument(d, media)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	parts := []packagePart{
		{"[Content_Types].xml", renderContentTypes(media)},
		{"_rels/.rels", renderPackageRels()},
		{"word/document.xml", body},
		{"word/_rels/document.xml.rels", renderDocumentRels(media)},
	}
	for _, m := range media.order {
		parts = append(parts, packagePart{"word/" + m.name, m.data})
	}

	for _, p := range parts {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     p.name,
			Method:   zip.Deflate,
			Modified: packageModTime,
		})
		if err != nil {
			return fmt.Errorf("create package part %s: %w", p.name, err)
		}
		if _, err := fw.Write(p.data); err != nil {
			return fmt.Errorf("write package part %s: %w", p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close package: %w", err)
	}
	return nil
}

// Bytes returns the serialized .docx package.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type xmlWriter struct {
	buf      bytes.Buffer
	media    *mediaSet
	drawings int
	err      error
}

func (w *xmlWriter) tag(name string, closed bool, attrs []string) {
	w.buf.WriteByte('<')
	w.buf.WriteString(name)
	for i := 0; i+1 < len(attrs); i += 2 {
		w.buf.WriteByte(' ')
		w.buf.WriteString(attrs[i])
		w.buf.WriteString(`="`)
		_ = xml.EscapeText(&w.buf, []byte(attrs[i+1]))
		w.buf.WriteByte('"')
	}
	if closed {
		w.buf.WriteString("/>")
		return
	}
	w.buf.WriteByte('>')
}

func (w *xmlWriter) open(name string, attrs ...string) { w.tag(name, false, attrs) }

func (w *xmlWriter) void(name string, attrs ...string) { w.tag(name, true, attrs) }

func (w *xmlWriter) close(name string) {
	w.buf.WriteString("</")
	w.buf.WriteString(name)
	w.buf.WriteByte('>')
}

func (w *xmlWriter) text(s string) {
	_ = xml.EscapeText(&w.buf, []byte(s))
}

func itoa(n int) string { return strconv.Itoa(n) }

func renderDocument(d *Document, media *mediaSet) ([]byte, error) {
	w := &xmlWriter{media: media}
	w.buf.WriteString(xmlHeader)
	w.open("w:document",
		"xmlns:w", nsW,
		"xmlns:r", nsR,
		"xmlns:wp", nsWP,
		"xmlns:a", nsA,
		"xmlns:pic", nsPic,
	)
	w.open("w:body")
	w.blocks(d.Body)
	w.open("w:sectPr")
	w.void("w:pgSz", "w:w", itoa(PageWidth), "w:h", itoa(PageHeight))
	w.void("w:pgMar",
		"w:top", itoa(d.Margins.Top),
		"w:right", itoa(d.Margins.Right),
		"w:bottom", itoa(d.Margins.Bottom),
		"w:left", itoa(d.Margins.Left),
		"w:header", "720",
		"w:footer", "720",
		"w:gutter", "0",
	)
	w.close("w:sectPr")
	w.close("w:body")
	w.close("w:document")
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

func (w *xmlWriter) blocks(blocks []Block) {
	for _, b := range blocks {
		switch v := b.(type) {
		case *Paragraph:
			w.paragraph(v)
		case *Table:
			w.table(v)
		}
	}
}

func (w *xmlWriter) paragraph(p *Paragraph) {
	w.open("w:p")
	if p.Props.Spacing != nil || p.Props.Align != AlignDefault {
		w.open("w:pPr")
		if s := p.Props.Spacing; s != nil {
			w.void("w:spacing", "w:before", itoa(s.Before), "w:after", itoa(s.After))
		}
		if p.Props.Align != AlignDefault {
			w.void("w:jc", "w:val", string(p.Props.Align))
		}
		w.close("w:pPr")
	}
	for i := range p.Runs {
		w.run(&p.Runs[i])
	}
	w.close("w:p")
}

func (w *xmlWriter) run(r *Run) {
	w.open("w:r")
	if r.Bold || r.Color != "" || r.SizeHalfP > 0 {
		w.open("w:rPr")
		if r.Bold {
			w.void("w:b")
			w.void("w:bCs")
		}
		if r.Color != "" {
			w.void("w:color", "w:val", r.Color)
		}
		if r.SizeHalfP > 0 {
			w.void("w:sz", "w:val", itoa(r.SizeHalfP))
			w.void("w:szCs", "w:val", itoa(r.SizeHalfP))
		}
		w.close("w:rPr")
	}
	switch {
	case r.PageBreak:
		w.void("w:br", "w:type", "page")
	case r.Picture != nil:
		w.drawing(r.Picture)
	default:
		w.open("w:t", "xml:space", "preserve")
		w.text(r.Text)
		w.close("w:t")
	}
	w.close("w:r")
}

func (w *xmlWriter) drawing(pic *Picture) {
	part, err := w.media.add(pic)
	if err != nil {
		if w.err == nil {
			w.err = err
		}
		return
	}
	w.drawings++
	id := itoa(w.drawings)
	cx := strconv.FormatInt(pic.Width, 10)
	cy := strconv.FormatInt(pic.Height, 10)
	name := pic.Name
	if name == "" {
		name = "Picture " + id
	}

	w.open("w:drawing")
	w.open("wp:inline", "distT", "0", "distB", "0", "distL", "0", "distR", "0")
	w.void("wp:extent", "cx", cx, "cy", cy)
	w.void("wp:docPr", "id", id, "name", name)
	w.open("wp:cNvGraphicFramePr")
	w.void("a:graphicFrameLocks", "noChangeAspect", "1")
	w.close("wp:cNvGraphicFramePr")
	w.open("a:graphic")
	w.open("a:graphicData", "uri", nsPic)
	w.open("pic:pic")
	w.open("pic:nvPicPr")
	w.void("pic:cNvPr", "id", "0", "name", name)
	w.void("pic:cNvPicPr")
	w.close("pic:nvPicPr")
	w.open("pic:blipFill")
	w.void("a:blip", "r:embed", part.relID)
	w.open("a:stretch")
	w.void("a:fillRect")
	w.close("a:stretch")
	w.close("pic:blipFill")
	w.open("pic:spPr")
	w.open("a:xfrm")
	w.void("a:off", "x", "0", "y", "0")
	w.void("a:ext", "cx", cx, "cy", cy)
	w.close("a:xfrm")
	w.open("a:prstGeom", "prst", "rect")
	w.void("a:avLst")
	w.close("a:prstGeom")
	w.close("pic:spPr")
	w.close("pic:pic")
	w.close("a:graphicData")
	w.close("a:graphic")
	w.close("wp:inline")
	w.close("w:drawing")
}

func (w *xmlWriter) table(t *Table) {
	w.open("w:tbl")
	w.open("w:tblPr")
	w.void("w:tblW", "w:w", "0", "w:type", "auto")
	if t.Props.Align != AlignDefault {
		w.void("w:jc", "w:val", string(t.Props.Align))
	}
	if b := t.Props.Borders; b != nil {
		w.open("w:tblBorders")
		for _, edge := range []string{"w:top", "w:left", "w:bottom", "w:right", "w:insideH", "w:insideV"} {
			w.void(edge,
				"w:val", b.Style,
				"w:sz", itoa(b.Size),
				"w:space", itoa(b.Space),
				"w:color", b.Color,
			)
		}
		w.close("w:tblBorders")
	}
	if t.Props.FixedLayout {
		w.void("w:tblLayout", "w:type", "fixed")
	}
	w.close("w:tblPr")

	w.open("w:tblGrid")
	for _, col := range t.Grid {
		w.void("w:gridCol", "w:w", itoa(col))
	}
	w.close("w:tblGrid")

	for _, row := range t.Rows {
		w.open("w:tr")
		if row.Props.MinHeight > 0 {
			w.open("w:trPr")
			w.void("w:trHeight", "w:val", itoa(row.Props.MinHeight), "w:hRule", "atLeast")
			w.close("w:trPr")
		}
		for _, cell := range row.Cells {
			w.cell(cell)
		}
		w.close("w:tr")
	}
	w.close("w:tbl")
}

func (w *xmlWriter) cell(c *Cell) {
	w.open("w:tc")
	w.open("w:tcPr")
	if c.Props.Width > 0 {
		w.void("w:tcW", "w:w", itoa(c.Props.Width), "w:type", "dxa")
	}
	if c.Props.GridSpan > 1 {
		w.void("w:gridSpan", "w:val", itoa(c.Props.GridSpan))
	}
	switch c.Props.VMerge {
	case VMergeRestart:
		w.void("w:vMerge", "w:val", "restart")
	case VMergeContinue:
		w.void("w:vMerge")
	}
	if m := c.Props.Margins; m != nil {
		w.open("w:tcMar")
		w.void("w:top", "w:w", itoa(m.Top), "w:type", "dxa")
		w.void("w:left", "w:w", itoa(m.Left), "w:type", "dxa")
		w.void("w:bottom", "w:w", itoa(m.Bottom), "w:type", "dxa")
		w.void("w:right", "w:w", itoa(m.Right), "w:type", "dxa")
		w.close("w:tcMar")
	}
	if c.Props.VAlign != VAlignDefault {
		w.void("w:vAlign", "w:val", string(c.Props.VAlign))
	}
	w.close("w:tcPr")

	w.blocks(c.Content)
	// A cell must end with a paragraph, including after a nested table.
	if n := len(c.Content); n == 0 {
		w.void("w:p")
	} else if _, ok := c.Content[n-1].(*Table); ok {
		w.void("w:p")
	}
	w.close("w:tc")
}

func renderContentTypes(media *mediaSet) []byte {
	w := &xmlWriter{}
	w.buf.WriteString(xmlHeader)
	w.open("Types", "xmlns", "http://schemas.openxmlformats.org/package/2006/content-types")
	w.void("Default", "Extension", "rels", "ContentType", contentTypeRels)
	w.void("Default", "Extension", "xml", "ContentType", "application/xml")
	seen := map[string]bool{}
	for _, m := range media.order {
		if seen[m.format] {
			continue
		}
		seen[m.format] = true
		w.void("Default", "Extension", m.format, "ContentType", imageContentTypes[m.format])
	}
	w.void("Override", "PartName", "/word/document.xml", "ContentType", contentTypeMain)
	w.close("Types")
	return w.buf.Bytes()
}

func renderPackageRels() []byte {
	w := &xmlWriter{}
	w.buf.WriteString(xmlHeader)
	w.open("Relationships", "xmlns", "http://schemas.openxmlformats.org/package/2006/relationships")
	w.void("Relationship", "Id", "rId1", "Type", relTypeOfficeDocument, "Target", "word/document.xml")
	w.close("Relationships")
	return w.buf.Bytes()
}

func renderDocumentRels(media *mediaSet) []byte {
	w := &xmlWriter{}
	w.buf.WriteString(xmlHeader)
	w.open("Relationships", "xmlns", "http://schemas.openxmlformats.org/package/2006/relationships")
	for _, m := range media.order {
		w.void("Relationship", "Id", m.relID, "Type", relTypeImage, "Target", m.name)
	}
	w.close("Relationships")
	return w.buf.Bytes()
}
