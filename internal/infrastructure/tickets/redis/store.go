package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/box-labels/internal/core/domain"
	"github.com/kirillkom/box-labels/internal/infrastructure/resilience"
)

const keyPrefix = "labels:artifact:"

type client interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *goredis.StatusCmd
	GetDel(ctx context.Context, key string) *goredis.StringCmd
	Close() error
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

// TicketStore keeps one download ticket per finished job. A ticket maps the
// job id to its artifact key, expires after a TTL and is removed by the read
// that consumes it.
type TicketStore struct {
	rdb      client
	executor *resilience.Executor
}

func New(ctx context.Context, cfg Config, executor *resilience.Executor) (*TicketStore, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newStore(rdb, executor), nil
}

func newStore(rdb client, executor *resilience.Executor) *TicketStore {
	return &TicketStore{rdb: rdb, executor: executor}
}

func (s *TicketStore) Close() error {
	return s.rdb.Close()
}

func (s *TicketStore) Issue(ctx context.Context, jobID, artifactKey string, ttl time.Duration) error {
	if strings.TrimSpace(jobID) == "" || strings.TrimSpace(artifactKey) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "issue ticket", errors.New("job id and artifact key are required"))
	}
	if ttl <= 0 {
		return domain.WrapError(domain.ErrInvalidInput, "issue ticket", fmt.Errorf("non-positive ttl %s", ttl))
	}
	err := s.executor.Execute(ctx, resilience.OpTicketIssue, func(ctx context.Context) error {
		return s.rdb.Set(ctx, keyPrefix+jobID, artifactKey, ttl).Err()
	}, classifyRedisError)
	if err != nil {
		return wrapRedisError("issue ticket", err)
	}
	return nil
}

// Consume returns the artifact key of jobID and deletes the ticket in the
// same round trip. A missing, expired or already consumed ticket yields
// domain.ErrArtifactUnavailable.
func (s *TicketStore) Consume(ctx context.Context, jobID string) (string, error) {
	key, err := resilience.Do(ctx, s.executor, resilience.OpTicketConsume, func(ctx context.Context) (string, error) {
		return s.rdb.GetDel(ctx, keyPrefix+jobID).Result()
	}, classifyRedisError)
	if errors.Is(err, goredis.Nil) {
		return "", domain.WrapError(domain.ErrArtifactUnavailable, "consume ticket", fmt.Errorf("no ticket for job %s", jobID))
	}
	if err != nil {
		return "", wrapRedisError("consume ticket", err)
	}
	return key, nil
}

var classifyRedisError = resilience.TransientClassifier(isTransientRedisError)

func isTransientRedisError(err error) bool {
	if errors.Is(err, goredis.Nil) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) || errors.Is(err, goredis.ErrClosed)
}

func wrapRedisError(op string, err error) error {
	if classifyRedisError(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
