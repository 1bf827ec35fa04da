package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/box-labels/internal/core/domain"
	"github.com/kirillkom/box-labels/internal/core/ports"
)

const (
	recordsExtension = ".xlsx"
	imagesExtension  = ".zip"
)

type SubmitJobUseCase struct {
	repo    ports.JobRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
	now     func() time.Time
}

func NewSubmitJobUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *SubmitJobUseCase {
	return &SubmitJobUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Submit stores both uploads, records a queued job and announces it to the
// workers.
func (uc *SubmitJobUseCase) Submit(ctx context.Context, sub ports.Submission) (*domain.GenerationJob, error) {
	if err := checkUpload(sub.Records, "records", recordsExtension); err != nil {
		return nil, err
	}
	if err := checkUpload(sub.Images, "images", imagesExtension); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := uc.now()
	job := &domain.GenerationJob{
		ID:              id,
		SubmittedBy:     strings.TrimSpace(sub.SubmittedBy),
		RecordsFilename: sub.Records.Filename,
		ImagesFilename:  sub.Images.Filename,
		RecordsKey:      fmt.Sprintf("uploads/records/%s_%s", id, sanitizeFilename(sub.Records.Filename, "records.xlsx")),
		ImagesKey:       fmt.Sprintf("uploads/images/%s_%s", id, sanitizeFilename(sub.Images.Filename, "images.zip")),
		Status:          domain.JobQueued,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := uc.storage.Save(ctx, job.RecordsKey, sub.Records.Body); err != nil {
		return nil, fmt.Errorf("save records to object storage: %w", err)
	}
	if err := uc.storage.Save(ctx, job.ImagesKey, sub.Images.Body); err != nil {
		_ = uc.storage.Delete(ctx, job.RecordsKey)
		return nil, fmt.Errorf("save images to object storage: %w", err)
	}

	if err := uc.repo.Create(ctx, job); err != nil {
		_ = uc.storage.Delete(ctx, job.RecordsKey)
		_ = uc.storage.Delete(ctx, job.ImagesKey)
		return nil, fmt.Errorf("create job metadata: %w", err)
	}

	if err := uc.queue.PublishJobSubmitted(ctx, job.ID); err != nil {
		_ = uc.repo.UpdateStatus(ctx, job.ID, domain.JobFailed, "queue unavailable")
		return nil, fmt.Errorf("publish job event: %w", err)
	}

	return job, nil
}

func checkUpload(u ports.Upload, field, ext string) error {
	if u.Body == nil || strings.TrimSpace(u.Filename) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "submit job", fmt.Errorf("%s file is required", field))
	}
	if !strings.EqualFold(filepath.Ext(u.Filename), ext) {
		return domain.WrapError(domain.ErrInvalidInput, "submit job",
			errors.New(field+" file must be a "+ext+" file"))
	}
	return nil
}

func sanitizeFilename(name, fallback string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return fallback
	}
	return base
}
