package redis_repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/intelliweb/models"
)

const (
	sessionKeyPrefix = "intelliweb:session:"
	maxAppendRetries = 5
)

var ErrSessionExists = errors.New("session already exists")

// redisTranscriptRepository keeps each transcript as a JSON array under one
// key. The key expires ttl after the last write.
type redisTranscriptRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTranscriptRepository(client *redis.Client, ttl time.Duration) *redisTranscriptRepository {
	return &redisTranscriptRepository{client: client, ttl: ttl}
}

func TranscriptKey(sessionID string) string {
	return sessionKeyPrefix + sessionID + ":turns"
}

func (r *redisTranscriptRepository) Create(ctx context.Context, sessionID string) error {
	ok, err := r.client.SetNX(ctx, TranscriptKey(sessionID), "[]", r.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}
	return nil
}

func (r *redisTranscriptRepository) Get(ctx context.Context, sessionID string) (models.Transcript, error) {
	return get(ctx, r.client, TranscriptKey(sessionID))
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func get(ctx context.Context, c getter, key string) (models.Transcript, error) {
	val, err := c.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrSessionNotFound
		}
		return nil, err
	}
	var t models.Transcript
	if err := json.Unmarshal([]byte(val), &t); err != nil {
		return nil, fmt.Errorf("decode transcript %s: %w", key, err)
	}
	return t, nil
}

// Append adds turns under WATCH so concurrent writers from other processes
// cannot interleave; a lost race is retried.
func (r *redisTranscriptRepository) Append(ctx context.Context, sessionID string, turns ...models.Turn) error {
	key := TranscriptKey(sessionID)
	txf := func(tx *redis.Tx) error {
		t, err := get(ctx, tx, key)
		if err != nil {
			return err
		}
		for _, turn := range turns {
			if t, err = t.Append(turn); err != nil {
				return err
			}
		}
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, string(data), r.ttl)
			return nil
		})
		return err
	}
	for i := 0; i < maxAppendRetries; i++ {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			logger.Printf("append to %s raced, retrying", key)
			continue
		}
		return err
	}
	return fmt.Errorf("append to %s: too many concurrent writers", key)
}

func (r *redisTranscriptRepository) Delete(ctx context.Context, sessionID string) error {
	n, err := r.client.Del(ctx, TranscriptKey(sessionID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrSessionNotFound
	}
	return nil
}
