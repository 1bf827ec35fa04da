package domain

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// Spreadsheet column names understood by the record source.
const (
	ColumnCode        = "CODIGO"
	ColumnDescription = "DESCRIPCION"
	ColumnQuantity    = "CANTIDAD"
	ColumnImage       = "IMAGEN"
	ColumnBoxCount    = "CONTEO_CAJAS"
)

// RequiredColumns lists the header names a record source must carry.
var RequiredColumns = []string{ColumnCode, ColumnDescription, ColumnQuantity}

// ProductRecord is one spreadsheet row. Row is the 1-based sheet row the
// record was read from and is used only for error reporting.
type ProductRecord struct {
	Row            int    `json:"row"`
	Code           string `json:"code"`
	Description    string `json:"description"`
	Quantity       string `json:"quantity"`
	ImageReference string `json:"image_reference,omitempty"`
	BoxCount       int    `json:"box_count"`
}

// Validate checks the required fields. It does not touch BoxCount, which is
// normalized by ParseBoxCount when the record is read.
func (r ProductRecord) Validate() error {
	switch {
	case strings.TrimSpace(r.Code) == "":
		return &ValidationError{Row: r.Row, Field: ColumnCode, Reason: "value is required"}
	case strings.TrimSpace(r.Description) == "":
		return &ValidationError{Row: r.Row, Field: ColumnDescription, Reason: "value is required"}
	case strings.TrimSpace(r.Quantity) == "":
		return &ValidationError{Row: r.Row, Field: ColumnQuantity, Reason: "value is required"}
	}
	return nil
}

// Boxes returns the number of pages the record expands into.
func (r ProductRecord) Boxes() int {
	if r.BoxCount < 1 {
		return 1
	}
	return r.BoxCount
}

// MaxBoxCount bounds ParseBoxCount so that absurd cell values stay
// representable; page limits are enforced by the assembler.
const MaxBoxCount = math.MaxInt32

// ParseBoxCount coerces a raw cell value into a box count. Fractional numbers
// are truncated toward zero; anything below 1 or not numeric falls back to 1.
func ParseBoxCount(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return clampBoxCount(float64(n))
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 1
	}
	return clampBoxCount(math.Trunc(f))
}

func clampBoxCount(f float64) int {
	switch {
	case math.IsNaN(f) || f < 1:
		return 1
	case f > MaxBoxCount:
		return MaxBoxCount
	default:
		return int(f)
	}
}

// TotalPages is the number of label pages a record set produces.
func TotalPages(records []ProductRecord) int {
	total := 0
	for _, r := range records {
		total += r.Boxes()
	}
	return total
}
