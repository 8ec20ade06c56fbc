package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// QuestionSetTTL bounds how long a pinned question set stays in Redis.
const QuestionSetTTL = 6 * time.Hour

// QuestionCache caches pinned question sets in Redis. Questions are immutable
// while referenced by an exam, so a (cutoff, limit) pair always maps to the
// same set.
type QuestionCache struct {
	rdb *redis.Client
}

// NewQuestionCache creates a new QuestionCache.
func NewQuestionCache(rdb *redis.Client) *QuestionCache {
	return &QuestionCache{rdb: rdb}
}

// Get returns the cached set. A miss is (nil, false, nil).
func (c *QuestionCache) Get(ctx context.Context, cutoff int64, limit int) ([]model.Question, bool, error) {
	raw, err := c.rdb.Get(ctx, config.CacheKey.QuestionSetKey(cutoff, limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var questions []model.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, false, err
	}
	return questions, true, nil
}

// Set stores the set under its (cutoff, limit) key.
func (c *QuestionCache) Set(ctx context.Context, cutoff int64, limit int, questions []model.Question) error {
	raw, err := json.Marshal(questions)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, config.CacheKey.QuestionSetKey(cutoff, limit), raw, QuestionSetTTL).Err()
}
