package ports

import (
	"context"
	"io"

	"github.com/kirillkom/box-labels/internal/core/domain"
)

// Upload is one file of a submission as received from the client.
type Upload struct {
	Filename string
	Body     io.Reader
}

// Submission is a label generation request: a records spreadsheet and a zip
// archive of product pictures. SubmittedBy is empty for anonymous clients.
type Submission struct {
	SubmittedBy string
	Records     Upload
	Images      Upload
}

// JobSubmitter is the inbound contract for accepting generation requests.
type JobSubmitter interface {
	Submit(ctx context.Context, sub Submission) (*domain.GenerationJob, error)
}

// JobReader is the inbound read model for job state.
type JobReader interface {
	GetByID(ctx context.Context, id string) (*domain.GenerationJob, error)
}

// JobProcessor is the inbound contract for asynchronous document generation.
type JobProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}

// ArtifactFetcher hands a finished document to its requester exactly once.
type ArtifactFetcher interface {
	Open(ctx context.Context, jobID string) (io.ReadCloser, error)
	Delivered(ctx context.Context, jobID string) error
}
