package spreadsheet

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/box-labels/internal/core/domain"
	"github.com/kirillkom/box-labels/internal/core/ports"
)

// Reader loads product records from .xlsx workbooks kept in object storage.
type Reader struct {
	storage ports.ObjectStorage
}

func NewReader(storage ports.ObjectStorage) *Reader {
	return &Reader{storage: storage}
}

func (r *Reader) ReadRecords(ctx context.Context, key string) ([]domain.ProductRecord, error) {
	reader, err := r.storage.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open records spreadsheet: %w", err)
	}
	defer reader.Close()

	return Parse(reader)
}

// ParseFile reads records from a workbook on disk.
func ParseFile(path string) ([]domain.ProductRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open spreadsheet", err)
	}
	defer f.Close()
	return parseWorkbook(f)
}

// Parse reads records from the first sheet of a workbook. The first row is
// the header; column names match case-insensitively. Blank rows are skipped.
func Parse(src io.Reader) ([]domain.ProductRecord, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open spreadsheet", err)
	}
	defer f.Close()
	return parseWorkbook(f)
}

func parseWorkbook(f *excelize.File) ([]domain.ProductRecord, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &domain.ValidationError{Reason: "workbook has no sheets"}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read sheet "+sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, &domain.ValidationError{Reason: "sheet " + sheets[0] + " is empty"}
	}

	cols, err := headerIndex(rows[0])
	if err != nil {
		return nil, err
	}

	records := make([]domain.ProductRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blank(row) {
			continue
		}
		records = append(records, domain.ProductRecord{
			Row:            i + 2,
			Code:           cols.value(row, domain.ColumnCode),
			Description:    cols.value(row, domain.ColumnDescription),
			Quantity:       cols.value(row, domain.ColumnQuantity),
			ImageReference: cols.value(row, domain.ColumnImage),
			BoxCount:       domain.ParseBoxCount(cols.value(row, domain.ColumnBoxCount)),
		})
	}
	return records, nil
}

type columns map[string]int

func headerIndex(header []string) (columns, error) {
	cols := make(columns, len(header))
	for i, name := range header {
		key := strings.ToUpper(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, seen := cols[key]; !seen {
			cols[key] = i
		}
	}
	for _, required := range domain.RequiredColumns {
		if _, ok := cols[required]; !ok {
			return nil, &domain.ValidationError{Field: required, Reason: "required column is missing"}
		}
	}
	return cols, nil
}

func (c columns) value(row []string, column string) string {
	i, ok := c[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
