package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/box-labels/internal/core/domain"
)

type JobRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101701)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS generation_jobs (
	id TEXT PRIMARY KEY,
	submitted_by TEXT NOT NULL DEFAULT '',
	records_filename TEXT NOT NULL,
	images_filename TEXT NOT NULL,
	records_key TEXT NOT NULL,
	images_key TEXT NOT NULL,
	artifact_key TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	stats JSONB NOT NULL DEFAULT '{}'::jsonb,
	expires_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_generation_jobs_status ON generation_jobs(status);
CREATE INDEX IF NOT EXISTS idx_generation_jobs_created_at ON generation_jobs(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *JobRepository) Create(ctx context.Context, job *domain.GenerationJob) error {
	statsJSON, err := json.Marshal(job.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO generation_jobs (
	id, submitted_by, records_filename, images_filename, records_key, images_key, artifact_key, status, error_message, stats, expires_at, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`,
		job.ID, job.SubmittedBy, job.RecordsFilename, job.ImagesFilename, job.RecordsKey, job.ImagesKey,
		job.ArtifactKey, string(job.Status), job.Error, statsJSON, job.ExpiresAt, job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.GenerationJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, submitted_by, records_filename, images_filename, records_key, images_key, artifact_key, status, error_message, stats, expires_at, created_at, updated_at
FROM generation_jobs
WHERE id = $1
`, id)

	var (
		job       domain.GenerationJob
		status    string
		statsRaw  []byte
		expiresAt sql.NullTime
	)
	err := row.Scan(
		&job.ID, &job.SubmittedBy, &job.RecordsFilename, &job.ImagesFilename, &job.RecordsKey, &job.ImagesKey,
		&job.ArtifactKey, &status, &job.Error, &statsRaw, &expiresAt, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "get job", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	if len(statsRaw) > 0 {
		if err := json.Unmarshal(statsRaw, &job.Stats); err != nil {
			return nil, fmt.Errorf("unmarshal stats: %w", err)
		}
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		job.ExpiresAt = &t
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}

func (r *JobRepository) UpdateStatus(ctx context.Context, id string, status domain.JobStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE generation_jobs
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, r.now())
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return requireRow(res, "update job status", id)
}

// SaveResult records where the generated document lives, its statistics and
// when its download ticket expires.
func (r *JobRepository) SaveResult(ctx context.Context, id string, result domain.JobResult) error {
	statsJSON, err := json.Marshal(result.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE generation_jobs
SET artifact_key = $2, stats = $3, expires_at = $4, updated_at = $5
WHERE id = $1
`, id, result.ArtifactKey, statsJSON, result.ExpiresAt.UTC(), r.now())
	if err != nil {
		return fmt.Errorf("save job result: %w", err)
	}
	return requireRow(res, "save job result", id)
}

func requireRow(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return domain.WrapError(domain.ErrJobNotFound, op, fmt.Errorf("id=%s", id))
	}
	return nil
}
