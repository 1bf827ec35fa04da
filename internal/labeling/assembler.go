// Package labeling turns product records and a directory of pictures into a
// printable label document, one page per physical box.
package labeling

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/box-labels/internal/core/domain"
	"github.com/kirillkom/box-labels/internal/labeling/docx"
)

// ImageLoader reads one image file into an embeddable asset.
type ImageLoader interface {
	Load(path string) (*domain.ImageAsset, error)
}

// Default page limits of one generation run.
const (
	DefaultMaxPages          = 5000
	DefaultMaxBoxesPerRecord = 1000
)

type Assembler struct {
	loader ImageLoader
	qr     QREncoder
	style  Style
	now    func() time.Time
	logger *slog.Logger
	limits PageLimits
}

// PageLimits bounds the pages one record and one document may expand into.
// Non-positive fields take the package defaults.
type PageLimits struct {
	MaxPages          int
	MaxBoxesPerRecord int
}

func (l PageLimits) normalize() PageLimits {
	if l.MaxPages <= 0 {
		l.MaxPages = DefaultMaxPages
	}
	if l.MaxBoxesPerRecord <= 0 {
		l.MaxBoxesPerRecord = DefaultMaxBoxesPerRecord
	}
	if l.MaxBoxesPerRecord > l.MaxPages {
		l.MaxBoxesPerRecord = l.MaxPages
	}
	return l
}

type Option func(*Assembler)

func WithStyle(style Style) Option {
	return func(a *Assembler) { a.style = style }
}

// WithClock overrides the source of the received date printed on every page.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) {
		if now != nil {
			a.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithPageLimits(limits PageLimits) Option {
	return func(a *Assembler) { a.limits = limits.normalize() }
}

func NewAssembler(loader ImageLoader, qr QREncoder, opts ...Option) *Assembler {
	a := &Assembler{
		loader: loader,
		qr:     qr,
		style:  DefaultStyle(),
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
		limits: PageLimits{}.normalize(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compose validates every record, then lays out Boxes() pages per record in
// input order. Pages are separated by hard page breaks; the last page has none.
// Nothing is produced when any record is invalid or the page limits are
// exceeded.
func (a *Assembler) Compose(records []domain.ProductRecord, imagesRoot string) (*docx.Document, domain.JobStats, error) {
	if err := validateRecords(records, a.limits); err != nil {
		return nil, domain.JobStats{}, err
	}

	index, err := BuildImageIndex(imagesRoot)
	if err != nil {
		return nil, domain.JobStats{}, domain.WrapError(domain.ErrInvalidInput, "index images", err)
	}

	builder := NewPageBuilder(a.style, a.qr, a.now())
	doc := docx.New()
	doc.Margins = pageMargins

	stats := domain.JobStats{Records: len(records)}
	for _, record := range records {
		slot := a.resolveImage(index, record)
		switch slot.State {
		case domain.ImageFound:
			stats.ImagesFound++
		case domain.ImageBroken:
			stats.ImagesBroken++
			a.logger.Warn("image_load_failed", "row", record.Row, "code", record.Code, "reference", slot.Reference, "error", slot.Reason)
		default:
			stats.ImagesMissing++
			a.logger.Warn("image_not_found", "row", record.Row, "code", record.Code, "reference", slot.Reference)
		}

		boxes := record.Boxes()
		for box := 1; box <= boxes; box++ {
			if stats.Pages > 0 {
				doc.AddPageBreak()
			}
			doc.Append(builder.Build(record, box, slot))
			stats.Pages++
		}
	}

	a.logger.Info("label_document_composed",
		"records", stats.Records,
		"pages", stats.Pages,
		"images_indexed", index.Files(),
		"images_found", stats.ImagesFound,
		"images_missing", stats.ImagesMissing,
		"images_broken", stats.ImagesBroken,
	)
	return doc, stats, nil
}

// Assemble composes the document and serializes it as .docx bytes.
func (a *Assembler) Assemble(records []domain.ProductRecord, imagesRoot string) ([]byte, domain.JobStats, error) {
	doc, stats, err := a.Compose(records, imagesRoot)
	if err != nil {
		return nil, domain.JobStats{}, err
	}
	raw, err := doc.Bytes()
	if err != nil {
		return nil, domain.JobStats{}, fmt.Errorf("write label document: %w", err)
	}
	return raw, stats, nil
}

func (a *Assembler) resolveImage(index *ImageIndex, record domain.ProductRecord) domain.ImageSlot {
	path, ok := index.Resolve(record.ImageReference)
	if !ok {
		return domain.MissingImage(record.ImageReference)
	}
	asset, err := a.loader.Load(path)
	if err != nil {
		return domain.BrokenImage(record.ImageReference, err)
	}
	return domain.FoundImage(record.ImageReference, asset)
}

func validateRecords(records []domain.ProductRecord, limits PageLimits) error {
	if len(records) == 0 {
		return &domain.ValidationError{Reason: "no product rows"}
	}
	var errs []error
	pages := 0
	jobLimitHit := false
	for _, r := range records {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
		boxes := r.Boxes()
		if boxes > limits.MaxBoxesPerRecord {
			errs = append(errs, &domain.ValidationError{
				Row:    r.Row,
				Field:  domain.ColumnBoxCount,
				Reason: fmt.Sprintf("box count %d exceeds the limit of %d per row", boxes, limits.MaxBoxesPerRecord),
			})
			continue
		}
		pages += boxes
		if pages > limits.MaxPages && !jobLimitHit {
			jobLimitHit = true
			errs = append(errs, &domain.ValidationError{
				Row:    r.Row,
				Field:  domain.ColumnBoxCount,
				Reason: fmt.Sprintf("document would exceed the limit of %d pages", limits.MaxPages),
			})
		}
	}
	return errors.Join(errs...)
}
