package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const indexKey = "profiles"

// Store keeps profiles in Redis behind an expiring LRU read cache. Other
// processes may write the same keys, so a cached profile is served for at
// most the cache TTL.
type Store struct {
	client *redis.Client
	cache  *expirable.LRU[string, Profile]
	log    logrus.FieldLogger
}

// NewStore caches up to cacheSize profiles for cacheTTL each. A cacheTTL of
// zero disables the cache and every Get reads Redis.
func NewStore(client *redis.Client, cacheSize int, cacheTTL time.Duration, logger logrus.FieldLogger) (*Store, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Store{client: client, log: logger}
	if cacheTTL > 0 {
		if cacheSize <= 0 {
			return nil, fmt.Errorf("profile cache size must be positive, got %d", cacheSize)
		}
		s.cache = expirable.NewLRU[string, Profile](cacheSize, nil, cacheTTL)
	}
	return s, nil
}

func (s *Store) cached(id string) (Profile, bool) {
	if s.cache == nil {
		return Profile{}, false
	}
	return s.cache.Get(id)
}

func (s *Store) remember(p Profile) {
	if s.cache != nil {
		s.cache.Add(p.ID, p)
	}
}

func (s *Store) forget(id string) {
	if s.cache != nil {
		s.cache.Remove(id)
	}
}

func profileKey(id string) string {
	return fmt.Sprintf("profile:%s", id)
}

// Save validates p and stores it, assigning an id when p has none.
func (s *Store) Save(ctx context.Context, p Profile) (Profile, error) {
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("invalid profile: %w", err)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	data, err := json.Marshal(p)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to marshal profile: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, profileKey(p.ID), data, 0)
		pipe.SAdd(ctx, indexKey, p.ID)
		return nil
	})
	if err != nil {
		return Profile{}, fmt.Errorf("failed to save profile to Redis: %w", err)
	}

	s.remember(p)
	s.log.WithFields(logrus.Fields{"profile_id": p.ID, "name": p.Name}).Info("Saved profile")
	return p, nil
}

func (s *Store) Get(ctx context.Context, id string) (Profile, error) {
	if p, ok := s.cached(id); ok {
		return p, nil
	}

	data, err := s.client.Get(ctx, profileKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Profile{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Profile{}, fmt.Errorf("failed to load profile from Redis: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile data: %w", err)
	}
	if p.ID == "" {
		p.ID = id
	}
	s.remember(p)
	return p, nil
}

// List returns every stored profile ordered by name.
func (s *Store) List(ctx context.Context) ([]Profile, error) {
	ids, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	if len(ids) == 0 {
		return []Profile{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = profileKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	profiles := make([]Profile, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			// index entry without a body
			s.log.WithField("profile_id", ids[i]).Warn("Profile index references missing profile")
			continue
		}
		var p Profile
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to parse profile %s: %w", ids[i], err)
		}
		profiles = append(profiles, p)
	}

	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Name == profiles[j].Name {
			return profiles[i].ID < profiles[j].ID
		}
		return profiles[i].Name < profiles[j].Name
	})
	return profiles, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, profileKey(id))
		pipe.SRem(ctx, indexKey, id)
		return nil
	})
	s.forget(id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.log.WithField("profile_id", id).Info("Deleted profile")
	return nil
}
