package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kirillkom/box-labels/internal/core/domain"
	"github.com/kirillkom/box-labels/internal/core/ports"
)

// ArtifactKey is where the generated document of a job is stored.
func ArtifactKey(jobID string) string {
	return fmt.Sprintf("output/%s_labels.docx", jobID)
}

type GenerateLabelsUseCase struct {
	repo      ports.JobRepository
	storage   ports.ObjectStorage
	records   ports.RecordSource
	archive   ports.ArchiveUnpacker
	assembler ports.LabelAssembler
	tickets   ports.TicketStore
	metrics   ports.GenerationMetrics
	logger    *slog.Logger

	workDir     string
	artifactTTL time.Duration
	now         func() time.Time
}

type GenerateOptions struct {
	WorkDir     string
	ArtifactTTL time.Duration
	Metrics     ports.GenerationMetrics
	Logger      *slog.Logger
}

func NewGenerateLabelsUseCase(
	repo ports.JobRepository,
	storage ports.ObjectStorage,
	records ports.RecordSource,
	archive ports.ArchiveUnpacker,
	assembler ports.LabelAssembler,
	tickets ports.TicketStore,
	opts GenerateOptions,
) *GenerateLabelsUseCase {
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	if opts.ArtifactTTL <= 0 {
		opts.ArtifactTTL = time.Hour
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &GenerateLabelsUseCase{
		repo:        repo,
		storage:     storage,
		records:     records,
		archive:     archive,
		assembler:   assembler,
		tickets:     tickets,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		workDir:     opts.WorkDir,
		artifactTTL: opts.ArtifactTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ProcessByID runs one generation job to completion. Jobs already in a
// terminal state are acknowledged without work so that redelivered messages
// are harmless.
func (uc *GenerateLabelsUseCase) ProcessByID(ctx context.Context, jobID string) error {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("fetch job by id: %w", err)
	}
	switch job.Status {
	case domain.JobReady, domain.JobDelivered, domain.JobFailed:
		uc.logger.Info("job_already_finished", "job_id", job.ID, "status", job.Status)
		return nil
	}

	start := uc.now()
	uc.metrics.ObserveQueueLag(start.Sub(job.CreatedAt))
	uc.metrics.StartJob()

	err = uc.run(ctx, job)
	uc.metrics.FinishJob(uc.now().Sub(start), err)
	return err
}

func (uc *GenerateLabelsUseCase) run(ctx context.Context, job *domain.GenerationJob) error {
	if err := uc.markStatus(ctx, job.ID, domain.JobProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}
	defer uc.releaseInputs(job)

	result, err := uc.pipeline(ctx, job)
	if err != nil {
		if failErr := uc.markFailed(ctx, job.ID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		uc.logger.Warn("job_failed", "job_id", job.ID, "error", err)
		return err
	}

	if err := uc.markStatus(ctx, job.ID, domain.JobReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}
	uc.logger.Info("job_ready",
		"job_id", job.ID,
		"records", result.Stats.Records,
		"pages", result.Stats.Pages,
		"images_found", result.Stats.ImagesFound,
		"images_missing", result.Stats.ImagesMissing,
		"images_broken", result.Stats.ImagesBroken,
		"expires_at", result.ExpiresAt,
	)
	return nil
}

func (uc *GenerateLabelsUseCase) pipeline(ctx context.Context, job *domain.GenerationJob) (domain.JobResult, error) {
	records, err := uc.records.ReadRecords(ctx, job.RecordsKey)
	if err != nil {
		return domain.JobResult{}, fmt.Errorf("read records: %w", err)
	}

	dir := filepath.Join(uc.workDir, job.ID)
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			uc.logger.Warn("work_dir_cleanup_failed", "job_id", job.ID, "dir", dir, "error", err)
		}
	}()

	files, err := uc.archive.Unpack(ctx, job.ImagesKey, dir)
	if err != nil {
		return domain.JobResult{}, fmt.Errorf("unpack images: %w", err)
	}
	uc.logger.Debug("images_unpacked", "job_id", job.ID, "files", files)

	raw, stats, err := uc.assembler.Assemble(records, dir)
	if err != nil {
		return domain.JobResult{}, fmt.Errorf("assemble labels: %w", err)
	}

	key := ArtifactKey(job.ID)
	if err := uc.storage.Save(ctx, key, bytes.NewReader(raw)); err != nil {
		return domain.JobResult{}, fmt.Errorf("save artifact: %w", err)
	}

	result := domain.JobResult{
		ArtifactKey: key,
		Stats:       stats,
		ExpiresAt:   uc.now().Add(uc.artifactTTL),
	}
	if err := uc.publish(ctx, job.ID, result); err != nil {
		_ = uc.storage.Delete(ctx, key)
		return domain.JobResult{}, err
	}
	uc.metrics.ObserveDocument(stats)
	return result, nil
}

func (uc *GenerateLabelsUseCase) publish(ctx context.Context, jobID string, result domain.JobResult) error {
	if err := uc.repo.SaveResult(ctx, jobID, result); err != nil {
		return fmt.Errorf("save job result: %w", err)
	}
	if err := uc.tickets.Issue(ctx, jobID, result.ArtifactKey, uc.artifactTTL); err != nil {
		return fmt.Errorf("issue download ticket: %w", err)
	}
	return nil
}

// releaseInputs drops the uploads of anonymous submissions. Inputs of
// identified submitters are kept.
func (uc *GenerateLabelsUseCase) releaseInputs(job *domain.GenerationJob) {
	if job.SubmittedBy != "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, key := range []string{job.RecordsKey, job.ImagesKey} {
		if err := uc.storage.Delete(ctx, key); err != nil {
			uc.logger.Warn("input_cleanup_failed", "job_id", job.ID, "key", key, "error", err)
		}
	}
}

func (uc *GenerateLabelsUseCase) markStatus(ctx context.Context, jobID string, status domain.JobStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, jobID, status, errMessage)
}

// markFailed still records the failure when the job context has expired.
func (uc *GenerateLabelsUseCase) markFailed(ctx context.Context, jobID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return uc.markStatus(ctx, jobID, domain.JobFailed, processErr.Error())
}

type noopMetrics struct{}

func (noopMetrics) StartJob() {}

func (noopMetrics) FinishJob(time.Duration, error) {}

func (noopMetrics) ObserveQueueLag(time.Duration) {}

func (noopMetrics) ObserveDocument(domain.JobStats) {}
