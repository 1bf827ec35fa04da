package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/box-labels/internal/config"
	"github.com/kirillkom/box-labels/internal/core/ports"
	"github.com/kirillkom/box-labels/internal/core/usecase"
	"github.com/kirillkom/box-labels/internal/infrastructure/archive"
	"github.com/kirillkom/box-labels/internal/infrastructure/qrcode"
	"github.com/kirillkom/box-labels/internal/infrastructure/queue/nats"
	"github.com/kirillkom/box-labels/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/box-labels/internal/infrastructure/resilience"
	"github.com/kirillkom/box-labels/internal/infrastructure/spreadsheet"
	"github.com/kirillkom/box-labels/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/box-labels/internal/infrastructure/storage/minio"
	"github.com/kirillkom/box-labels/internal/infrastructure/tickets/redis"
	"github.com/kirillkom/box-labels/internal/labeling"
)

type App struct {
	Config config.Config

	Queue      ports.MessageQueue
	Repo       ports.JobRepository
	SubmitUC   ports.JobSubmitter
	GenerateUC ports.JobProcessor
	ArtifactUC ports.ArtifactFetcher

	closeFn func()
}

// New wires every adapter. generationMetrics may be nil for processes that do
// not run generation jobs.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, generationMetrics ports.GenerationMetrics) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	executor := resilience.NewExecutor(cfg.Resilience()).WithLogger(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewJobRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	tickets, err := redis.New(ctx, redis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, executor)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init ticket store: %w", err)
	}

	style, err := labeling.LoadStyle(cfg.LabelStylePath)
	if err != nil {
		_ = tickets.Close()
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("load label style: %w", err)
	}
	assembler := labeling.NewAssembler(
		labeling.FileImageLoader{MaxPixels: cfg.MaxImagePixels},
		qrcode.New(cfg.QRSizePixels),
		labeling.WithStyle(style),
		labeling.WithLogger(logger),
		labeling.WithPageLimits(labeling.PageLimits{
			MaxPages:          cfg.MaxPages,
			MaxBoxesPerRecord: cfg.MaxBoxesPerRecord,
		}),
	)
	unpacker := archive.New(storage, archive.Limits{
		MaxArchiveBytes:   cfg.MaxArchiveBytes,
		MaxExtractedBytes: cfg.MaxExtractedBytes,
		MaxFiles:          cfg.MaxArchiveFiles,
	})

	submitUC := usecase.NewSubmitJobUseCase(repo, storage, queue)
	generateUC := usecase.NewGenerateLabelsUseCase(
		repo,
		storage,
		spreadsheet.NewReader(storage),
		unpacker,
		assembler,
		tickets,
		usecase.GenerateOptions{
			WorkDir:     cfg.WorkDir,
			ArtifactTTL: cfg.ArtifactTTL,
			Metrics:     generationMetrics,
			Logger:      logger,
		},
	)
	artifactUC := usecase.NewArtifactUseCase(repo, storage, tickets, logger)

	return &App{
		Config: cfg,
		Queue:  queue,
		Repo:   repo,

		SubmitUC:   submitUC,
		GenerateUC: generateUC,
		ArtifactUC: artifactUC,

		closeFn: func() {
			queue.Close()
			_ = tickets.Close()
			_ = db.Close()
		},
	}, nil
}

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "", "localfs":
		storage, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		return storage, nil
	case "minio":
		storage, err := minio.New(ctx, minio.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			return nil, err
		}
		return storage, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
