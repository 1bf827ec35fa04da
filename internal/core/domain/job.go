package domain

import "time"

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobReady      JobStatus = "ready"
	JobFailed     JobStatus = "failed"
	JobDelivered  JobStatus = "delivered"
)

// GenerationJob correlates the uploaded record source, the uploaded image
// archive and the generated label document.
type GenerationJob struct {
	ID              string     `json:"id"`
	SubmittedBy     string     `json:"submitted_by,omitempty"`
	RecordsFilename string     `json:"records_filename"`
	ImagesFilename  string     `json:"images_filename"`
	RecordsKey      string     `json:"-"`
	ImagesKey       string     `json:"-"`
	ArtifactKey     string     `json:"-"`
	Status          JobStatus  `json:"status"`
	Error           string     `json:"error,omitempty"`
	Stats           JobStats   `json:"stats"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// JobStats summarizes one assembled document.
type JobStats struct {
	Records       int `json:"records"`
	Pages         int `json:"pages"`
	ImagesFound   int `json:"images_found"`
	ImagesMissing int `json:"images_missing"`
	ImagesBroken  int `json:"images_broken"`
}

// JobResult is what a finished generation leaves behind for download.
type JobResult struct {
	ArtifactKey string
	Stats       JobStats
	ExpiresAt   time.Time
}
