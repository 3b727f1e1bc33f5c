package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/mohammad-safakhou/intelliweb/config"
	"github.com/mohammad-safakhou/intelliweb/models"
	"github.com/mohammad-safakhou/intelliweb/repository/inmemory_repository"
	"github.com/mohammad-safakhou/intelliweb/repository/redis_repository"
)

// TranscriptRepository stores the conversation of each session. Append
// writes all given turns or none of them.
type TranscriptRepository interface {
	Create(ctx context.Context, sessionID string) error
	Get(ctx context.Context, sessionID string) (models.Transcript, error)
	Append(ctx context.Context, sessionID string, turns ...models.Turn) error
	Delete(ctx context.Context, sessionID string) error
}

type RepoType string

const (
	RepoTypeInMemory RepoType = "inmemory"
	RepoTypeRedis    RepoType = "redis"
)

// NewTranscriptRepository builds the configured store. Redis entries expire
// ttl after their last append.
func NewTranscriptRepository(ctx context.Context, cfg config.StorageConfig, ttl time.Duration) (TranscriptRepository, error) {
	switch RepoType(cfg.Backend) {
	case "", RepoTypeInMemory:
		return inmemory_repository.New(), nil
	case RepoTypeRedis:
		r := cfg.Redis
		c, err := redis_repository.Conn(ctx, r.Host, r.Port, r.Password, r.DB, r.Timeout)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return redis_repository.NewRedisTranscriptRepository(c, ttl), nil
	}
	return nil, fmt.Errorf("invalid repository type: %s", cfg.Backend)
}
