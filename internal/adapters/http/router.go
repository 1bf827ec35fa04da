package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/box-labels/internal/core/ports"
	"github.com/kirillkom/box-labels/internal/observability/metrics"
)

const (
	userIDHeader        = "X-User-Id"
	docxContentType     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	artifactDisposition = `attachment; filename="labels.docx"`

	multipartMemory = 32 << 20
)

type Options struct {
	Service         string
	MaxUploadBytes  int64
	RateLimitRPS    float64
	RateLimitBurst  int
	MaxInFlight     int
	InFlightTimeout time.Duration
	Logger          *slog.Logger
	Metrics         *metrics.HTTPServerMetrics
}

type Router struct {
	submitter ports.JobSubmitter
	reader    ports.JobReader
	artifacts ports.ArtifactFetcher
	opts      Options
	logger    *slog.Logger
}

func NewRouter(
	submitter ports.JobSubmitter,
	reader ports.JobReader,
	artifacts ports.ArtifactFetcher,
	opts Options,
) *Router {
	if opts.Service == "" {
		opts.Service = "api"
	}
	if opts.InFlightTimeout <= 0 {
		opts.InFlightTimeout = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		submitter: submitter,
		reader:    reader,
		artifacts: artifacts,
		opts:      opts,
		logger:    logger,
	}
}

func (rt *Router) Handler() http.Handler {
	jobs := http.NewServeMux()
	jobs.HandleFunc("POST /v1/jobs", rt.submitJob)
	jobs.HandleFunc("GET /v1/jobs/{id}", rt.getJob)
	jobs.HandleFunc("GET /v1/jobs/{id}/artifact", rt.downloadArtifact)

	var api http.Handler = jobs
	api = backpressureMiddleware(api, rt.opts.MaxInFlight, rt.opts.InFlightTimeout)
	api = rateLimitMiddleware(api, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.opts.Metrics != nil {
		mux.Handle("GET /metrics", rt.opts.Metrics.Handler())
	}
	mux.Handle("/v1/", api)

	var handler http.Handler = mux
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.Service, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) submitJob(w http.ResponseWriter, r *http.Request) {
	if rt.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form is required"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	records, recordsHeader, err := r.FormFile("records")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'records' is required"})
		return
	}
	defer records.Close()

	images, imagesHeader, err := r.FormFile("images")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'images' is required"})
		return
	}
	defer images.Close()

	submittedBy := strings.TrimSpace(r.Header.Get(userIDHeader))
	job, err := rt.submitter.Submit(r.Context(), ports.Submission{
		SubmittedBy: submittedBy,
		Records:     upload(recordsHeader, records),
		Images:      upload(imagesHeader, images),
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordSubmission(rt.opts.Service, submittedBy)
	}
	writeJSON(w, http.StatusAccepted, job)
}

func upload(header *multipart.FileHeader, body multipart.File) ports.Upload {
	return ports.Upload{Filename: header.Filename, Body: body}
}

func (rt *Router) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := rt.reader.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// downloadArtifact streams the document once. The ticket is consumed before
// the first byte is written, so an interrupted transfer cannot be retried.
func (rt *Router) downloadArtifact(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	body, err := rt.artifacts.Open(r.Context(), jobID)
	if err != nil {
		rt.recordDownload(strings.ReplaceAll(http.StatusText(mapErrorToHTTPStatus(err)), " ", "_"))
		rt.writeError(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", artifactDisposition)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	outcome := "delivered"
	if _, err := io.Copy(w, body); err != nil {
		outcome = "interrupted"
		rt.logger.Warn("artifact_stream_failed",
			"request_id", requestIDFromContext(r.Context()),
			"job_id", jobID,
			"error", err,
		)
	}
	rt.recordDownload(outcome)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 10*time.Second)
	defer cancel()
	if err := rt.artifacts.Delivered(ctx, jobID); err != nil {
		rt.logger.Error("artifact_delivery_update_failed",
			"request_id", requestIDFromContext(r.Context()),
			"job_id", jobID,
			"error", err,
		)
	}
}

func (rt *Router) recordDownload(outcome string) {
	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordDownload(rt.opts.Service, strings.ToLower(outcome))
	}
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		rt.logger.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal server error"
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
