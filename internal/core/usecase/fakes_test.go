package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kirillkom/box-labels/internal/core/domain"
)

type statusCall struct {
	status domain.JobStatus
	errMsg string
}

type jobRepoFake struct {
	job         *domain.GenerationJob
	created     *domain.GenerationJob
	createErr   error
	getErr      error
	statusErr   error
	statusCalls []statusCall
	result      *domain.JobResult
	resultErr   error
}

func (f *jobRepoFake) Create(_ context.Context, job *domain.GenerationJob) error {
	if f.createErr != nil {
		return f.createErr
	}
	copyJob := *job
	f.created = &copyJob
	return nil
}

func (f *jobRepoFake) GetByID(_ context.Context, id string) (*domain.GenerationJob, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.job == nil || f.job.ID != id {
		return nil, domain.WrapError(domain.ErrJobNotFound, "get job", errors.New(id))
	}
	copyJob := *f.job
	return &copyJob, nil
}

func (f *jobRepoFake) UpdateStatus(_ context.Context, _ string, status domain.JobStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	return f.statusErr
}

func (f *jobRepoFake) SaveResult(_ context.Context, _ string, result domain.JobResult) error {
	if f.resultErr != nil {
		return f.resultErr
	}
	f.result = &result
	return nil
}

func (f *jobRepoFake) lastStatus() domain.JobStatus {
	if len(f.statusCalls) == 0 {
		return ""
	}
	return f.statusCalls[len(f.statusCalls)-1].status
}

type storageFake struct {
	objects map[string][]byte
	saveErr map[string]error
	deleted []string
}

func newStorageFake() *storageFake {
	return &storageFake{objects: map[string][]byte{}, saveErr: map[string]error{}}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	for prefix, err := range f.saveErr {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			return err
		}
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.objects[key] = raw
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.objects[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	delete(f.objects, key)
	return nil
}

type queueFake struct {
	jobID string
	err   error
}

func (f *queueFake) PublishJobSubmitted(_ context.Context, jobID string) error {
	if f.err != nil {
		return f.err
	}
	f.jobID = jobID
	return nil
}

func (f *queueFake) SubscribeJobSubmitted(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type recordSourceFake struct {
	records []domain.ProductRecord
	err     error
}

func (f *recordSourceFake) ReadRecords(context.Context, string) ([]domain.ProductRecord, error) {
	return f.records, f.err
}

// unpackerFake writes one file so the work directory exists while assembling.
type unpackerFake struct {
	dest string
	err  error
}

func (f *unpackerFake) Unpack(_ context.Context, _ string, dest string) (int, error) {
	f.dest = dest
	if f.err != nil {
		return 0, f.err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return 0, err
	}
	return 1, os.WriteFile(filepath.Join(dest, "abc.png"), []byte("png"), 0o644)
}

type assemblerFake struct {
	root    string
	records []domain.ProductRecord
	stats   domain.JobStats
	err     error
}

func (f *assemblerFake) Assemble(records []domain.ProductRecord, imagesRoot string) ([]byte, domain.JobStats, error) {
	f.root = imagesRoot
	f.records = records
	if f.err != nil {
		return nil, domain.JobStats{}, f.err
	}
	return []byte("PK-docx"), f.stats, nil
}

type ticketFake struct {
	issued     map[string]string
	ttl        time.Duration
	issueErr   error
	consumeErr error
}

func newTicketFake() *ticketFake {
	return &ticketFake{issued: map[string]string{}}
}

func (f *ticketFake) Issue(_ context.Context, jobID, artifactKey string, ttl time.Duration) error {
	if f.issueErr != nil {
		return f.issueErr
	}
	f.issued[jobID] = artifactKey
	f.ttl = ttl
	return nil
}

func (f *ticketFake) Consume(_ context.Context, jobID string) (string, error) {
	if f.consumeErr != nil {
		return "", f.consumeErr
	}
	key, ok := f.issued[jobID]
	if !ok {
		return "", domain.WrapError(domain.ErrArtifactUnavailable, "consume ticket", errors.New(jobID))
	}
	delete(f.issued, jobID)
	return key, nil
}

type metricsFake struct {
	started   int
	finished  int
	lastErr   error
	documents []domain.JobStats
}

func (f *metricsFake) StartJob() { f.started++ }

func (f *metricsFake) FinishJob(_ time.Duration, err error) {
	f.finished++
	f.lastErr = err
}

func (f *metricsFake) ObserveQueueLag(time.Duration) {}

func (f *metricsFake) ObserveDocument(stats domain.JobStats) {
	f.documents = append(f.documents, stats)
}
