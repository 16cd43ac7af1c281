package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vmquan2200/edufinai/pkg/apperror"
)

// Member is one (user, score) pair inside a bucket, ordered by score.
type Member struct {
	UserID uuid.UUID
	Score  int
}

// Index is the externally addressable ranked store backing the leaderboard.
// Increments must be atomic per bucket so concurrent grants never lose
// updates.
type Index interface {
	IncrementScore(ctx context.Context, bucketKey string, userID uuid.UUID, delta int) error
	TopN(ctx context.Context, bucketKey string, n int) ([]Member, error)
	// Rank returns the 1-based descending position, or apperror.ErrNotRanked.
	Rank(ctx context.Context, bucketKey string, userID uuid.UUID) (int, error)
}

type redisIndex struct {
	client *redis.Client
}

func NewRedisIndex(client *redis.Client) Index {
	return &redisIndex{client: client}
}

func bucketRedisKey(bucketKey string) string {
	return fmt.Sprintf("leaderboard:%s", bucketKey)
}

func (r *redisIndex) IncrementScore(ctx context.Context, bucketKey string, userID uuid.UUID, delta int) error {
	_, err := r.client.ZIncrBy(ctx, bucketRedisKey(bucketKey), float64(delta), userID.String()).Result()
	if err != nil {
		return fmt.Errorf("failed to increment %s for %s: %w", bucketKey, userID, err)
	}
	return nil
}

func (r *redisIndex) TopN(ctx context.Context, bucketKey string, n int) ([]Member, error) {
	zs, err := r.client.ZRevRangeWithScores(ctx, bucketRedisKey(bucketKey), 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read top of %s: %w", bucketKey, err)
	}

	members := make([]Member, 0, len(zs))
	for _, z := range zs {
		raw, ok := z.Member.(string)
		if !ok {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		members = append(members, Member{UserID: id, Score: int(z.Score)})
	}
	return members, nil
}

func (r *redisIndex) Rank(ctx context.Context, bucketKey string, userID uuid.UUID) (int, error) {
	pos, err := r.client.ZRevRank(ctx, bucketRedisKey(bucketKey), userID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, apperror.ErrNotRanked
		}
		return 0, fmt.Errorf("failed to read rank in %s: %w", bucketKey, err)
	}
	return int(pos) + 1, nil
}
