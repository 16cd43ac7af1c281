package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vmquan2200/edufinai/internal/clock"
	"github.com/vmquan2200/edufinai/internal/modules/leaderboard/dto"
	lbRepo "github.com/vmquan2200/edufinai/internal/modules/leaderboard/repository"
	userRepo "github.com/vmquan2200/edufinai/internal/modules/user/repository"
	"github.com/vmquan2200/edufinai/pkg/apperror"
)

type LeaderboardService interface {
	GetTop(ctx context.Context, scope string, limit int) ([]dto.LeaderboardEntry, error)
	GetMyRank(ctx context.Context, scope string, userID uuid.UUID) (*dto.MyRankResponse, error)

	// IncrementAll applies the same delta to all four time buckets. Callers
	// (the reward ledger) invoke it once per grant.
	IncrementAll(ctx context.Context, userID uuid.UUID, delta int) error
}

type leaderboardService struct {
	index    lbRepo.Index
	userRepo userRepo.UserRepository
	clk      clock.Clock
	loc      *time.Location
}

func NewLeaderboardService(index lbRepo.Index, users userRepo.UserRepository, clk clock.Clock, loc *time.Location) LeaderboardService {
	if clk == nil {
		clk = clock.System()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &leaderboardService{index: index, userRepo: users, clk: clk, loc: loc}
}

func (s *leaderboardService) now() time.Time {
	return s.clk.Now().In(s.loc)
}

func (s *leaderboardService) GetTop(ctx context.Context, scope string, limit int) ([]dto.LeaderboardEntry, error) {
	if !ValidScope(scope) {
		return nil, apperror.ErrInvalidInput
	}

	members, err := s.index.TopN(ctx, BucketKey(scope, s.now()), limit)
	if err != nil {
		return nil, err
	}

	entries := make([]dto.LeaderboardEntry, 0, len(members))
	for i, m := range members {
		entry := dto.LeaderboardEntry{
			Position: i + 1,
			UserID:   m.UserID,
			Score:    m.Score,
		}

		// Enrichment is best-effort: a failed lookup keeps the entry with
		// a nil username rather than failing the whole query.
		if user, err := s.userRepo.FindByID(ctx, m.UserID); err == nil {
			entry.Username = &user.Username
			if user.FirstName != "" {
				entry.FirstName = &user.FirstName
			}
			if user.LastName != "" {
				entry.LastName = &user.LastName
			}
		} else {
			log.Printf("leaderboard: identity lookup failed for %s: %v", m.UserID, err)
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *leaderboardService) GetMyRank(ctx context.Context, scope string, userID uuid.UUID) (*dto.MyRankResponse, error) {
	if !ValidScope(scope) {
		return nil, apperror.ErrInvalidInput
	}

	bucket := BucketKey(scope, s.now())
	rank, err := s.index.Rank(ctx, bucket, userID)
	if err != nil {
		return nil, err
	}

	return &dto.MyRankResponse{
		Scope:  scope,
		Bucket: bucket,
		UserID: userID,
		Rank:   rank,
	}, nil
}

func (s *leaderboardService) IncrementAll(ctx context.Context, userID uuid.UUID, delta int) error {
	var firstErr error
	for _, bucket := range AllBucketKeys(s.now()) {
		if err := s.incrementWithRetry(ctx, bucket, userID, delta); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// incrementWithRetry retries a failed bucket update once before reporting
// the inconsistency. A grant already written to the ledger must never lose
// its bucket update silently.
func (s *leaderboardService) incrementWithRetry(ctx context.Context, bucket string, userID uuid.UUID, delta int) error {
	err := s.index.IncrementScore(ctx, bucket, userID, delta)
	if err == nil {
		return nil
	}
	log.Printf("leaderboard: bucket %s update failed, retrying: %v", bucket, err)

	if err = s.index.IncrementScore(ctx, bucket, userID, delta); err != nil {
		log.Printf("leaderboard: INCONSISTENCY bucket=%s user=%s delta=%d: %v", bucket, userID, delta, err)
		return err
	}
	return nil
}
