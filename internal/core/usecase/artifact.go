package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/kirillkom/box-labels/internal/core/domain"
	"github.com/kirillkom/box-labels/internal/core/ports"
)

// ArtifactUseCase hands out generated documents. Each document can be
// downloaded once: opening it consumes the job's ticket.
type ArtifactUseCase struct {
	repo    ports.JobRepository
	storage ports.ObjectStorage
	tickets ports.TicketStore
	logger  *slog.Logger
}

func NewArtifactUseCase(repo ports.JobRepository, storage ports.ObjectStorage, tickets ports.TicketStore, logger *slog.Logger) *ArtifactUseCase {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ArtifactUseCase{repo: repo, storage: storage, tickets: tickets, logger: logger}
}

func (uc *ArtifactUseCase) Open(ctx context.Context, jobID string) (io.ReadCloser, error) {
	if _, err := uc.repo.GetByID(ctx, jobID); err != nil {
		return nil, fmt.Errorf("fetch job by id: %w", err)
	}
	key, err := uc.tickets.Consume(ctx, jobID)
	if err != nil {
		return nil, err
	}
	body, err := uc.storage.Open(ctx, key)
	if err != nil {
		return nil, domain.WrapError(domain.ErrArtifactUnavailable, "open artifact", err)
	}
	return body, nil
}

// Delivered marks the job delivered and removes the stored document.
func (uc *ArtifactUseCase) Delivered(ctx context.Context, jobID string) error {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetch job by id: %w", err)
	}
	if err := uc.repo.UpdateStatus(ctx, jobID, domain.JobDelivered, ""); err != nil {
		return fmt.Errorf("set status=delivered: %w", err)
	}
	key := job.ArtifactKey
	if key == "" {
		key = ArtifactKey(jobID)
	}
	if err := uc.storage.Delete(ctx, key); err != nil {
		uc.logger.Warn("artifact_cleanup_failed", "job_id", jobID, "key", key, "error", err)
	}
	return nil
}
