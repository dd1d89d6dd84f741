package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// OpenRedis parses redisURL and verifies the server answers a PING.
func OpenRedis(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisStore implements Store using Redis string keys with a TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an open client. A zero ttl keeps transcripts forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisStore) transcriptKey(id string) string {
	return fmt.Sprintf("transcript:%s", id)
}

func (r *RedisStore) SaveTranscript(ctx context.Context, t *Transcript) error {
	if t.ID == "" {
		return errors.New("transcript id is required")
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	if err := r.client.Set(ctx, r.transcriptKey(t.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save transcript to Redis: %w", err)
	}
	return nil
}

func (r *RedisStore) LoadTranscript(ctx context.Context, id string) (*Transcript, error) {
	data, err := r.client.Get(ctx, r.transcriptKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTranscriptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript from Redis: %w", err)
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse transcript data: %w", err)
	}
	return &t, nil
}

func (r *RedisStore) DeleteTranscript(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.transcriptKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	return nil
}

func (r *RedisStore) TranscriptExists(ctx context.Context, id string) (bool, error) {
	exists, err := r.client.Exists(ctx, r.transcriptKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check transcript existence: %w", err)
	}
	return exists > 0, nil
}
