package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/box-labels/internal/core/domain"
)

// JobRepository persists and reads generation job state.
type JobRepository interface {
	Create(ctx context.Context, job *domain.GenerationJob) error
	GetByID(ctx context.Context, id string) (*domain.GenerationJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string) error
	SaveResult(ctx context.Context, id string, result domain.JobResult) error
}

// ObjectStorage stores uploads and generated documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes job submission events.
type MessageQueue interface {
	PublishJobSubmitted(ctx context.Context, jobID string) error
	SubscribeJobSubmitted(ctx context.Context, handler func(context.Context, string) error) error
}

// RecordSource reads product records from a stored spreadsheet.
type RecordSource interface {
	ReadRecords(ctx context.Context, key string) ([]domain.ProductRecord, error)
}

// ArchiveUnpacker extracts a stored image archive into dest and reports the
// number of files written.
type ArchiveUnpacker interface {
	Unpack(ctx context.Context, key, dest string) (int, error)
}

// LabelAssembler renders records into a serialized label document.
type LabelAssembler interface {
	Assemble(records []domain.ProductRecord, imagesRoot string) ([]byte, domain.JobStats, error)
}

// TicketStore issues one-shot download tickets for generated documents.
type TicketStore interface {
	Issue(ctx context.Context, jobID, artifactKey string, ttl time.Duration) error
	Consume(ctx context.Context, jobID string) (string, error)
}

// GenerationMetrics observes worker-side generation runs.
type GenerationMetrics interface {
	StartJob()
	FinishJob(duration time.Duration, err error)
	ObserveQueueLag(lag time.Duration)
	ObserveDocument(stats domain.JobStats)
}
