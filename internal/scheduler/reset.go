package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vmquan2200/edufinai/internal/clock"
	"github.com/vmquan2200/edufinai/internal/entity"
	challengeRepo "github.com/vmquan2200/edufinai/internal/modules/challenge/repository"
)

// ResetStats reports what one reset pass did.
type ResetStats struct {
	Scope   entity.ChallengeScope
	Kept    int // formerly-completed rows zeroed in place
	Deleted int // untouched rows removed entirely
	Skipped int // parent challenge inactive or out of window
}

// ResetService clears scope-bound progress on schedule. Completed rows are
// zeroed but kept (their startedAt is history); rows that never completed
// are deleted, returning the pair to NotStarted.
type ResetService interface {
	ResetScope(ctx context.Context, scope entity.ChallengeScope) (*ResetStats, error)
}

type resetService struct {
	progressRepo challengeRepo.ProgressRepository
	redisClient  *redis.Client
	clk          clock.Clock
	loc          *time.Location

	// one active run per scope within this process
	running sync.Map // scope -> *sync.Mutex
}

func NewResetService(progress challengeRepo.ProgressRepository, redisClient *redis.Client, clk clock.Clock, loc *time.Location) ResetService {
	if clk == nil {
		clk = clock.System()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &resetService{
		progressRepo: progress,
		redisClient:  redisClient,
		clk:          clk,
		loc:          loc,
	}
}

func (s *resetService) scopeLock(scope entity.ChallengeScope) *sync.Mutex {
	l, _ := s.running.LoadOrStore(scope, &sync.Mutex{})
	return l.(*sync.Mutex)
}

func (s *resetService) ResetScope(ctx context.Context, scope entity.ChallengeScope) (*ResetStats, error) {
	lock := s.scopeLock(scope)
	if !lock.TryLock() {
		log.Printf("reset: scope %s already running, skipping", scope)
		return &ResetStats{Scope: scope}, nil
	}
	defer lock.Unlock()

	// Cross-replica guard: only one instance resets a scope per window.
	if s.redisClient != nil {
		key := fmt.Sprintf("challenge_reset_lock:%s", scope)
		ok, err := s.redisClient.SetNX(ctx, key, s.clk.Now().Unix(), 10*time.Minute).Result()
		if err != nil {
			log.Printf("reset: redis lock check failed for %s, proceeding locally: %v", scope, err)
		} else if !ok {
			log.Printf("reset: scope %s held by another replica, skipping", scope)
			return &ResetStats{Scope: scope}, nil
		}
	}

	now := s.clk.Now().In(s.loc)
	stats := &ResetStats{Scope: scope}

	rows, err := s.progressRepo.ListByScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	for i := range rows {
		row := &rows[i]
		ch := row.Challenge
		if ch == nil || !ch.Active || !ch.WindowContains(now) {
			stats.Skipped++
			continue
		}

		err := s.progressRepo.Mutate(ctx, row.UserID, row.ChallengeID, func(locked *entity.UserChallengeProgress, found bool) (challengeRepo.MutateAction, error) {
			if !found {
				// Deleted between the listing and the lock.
				return challengeRepo.ActionNone, nil
			}

			wasCompleted := locked.Completed

			// A row zeroed by an earlier reset that has seen no new
			// progress since: a second reset is a no-op, it does not
			// demote the pair back to NotStarted.
			if !wasCompleted && locked.CurrentProgress == 0 {
				return challengeRepo.ActionNone, nil
			}

			locked.CurrentProgress = 0
			locked.ProgressCountToday = 0
			locked.Completed = false
			locked.CompletedAt = nil
			locked.LastProgressDate = nil

			if wasCompleted {
				// Keep the zeroed row: the pair re-enters InProgress with
				// its original startedAt.
				stats.Kept++
				return challengeRepo.ActionSave, nil
			}

			// Never completed: remove the row so the pair returns to
			// NotStarted instead of lingering at zero progress.
			stats.Deleted++
			return challengeRepo.ActionDelete, nil
		})
		if err != nil {
			log.Printf("reset: row (%s, %s) failed: %v", row.UserID, row.ChallengeID, err)
		}
	}

	log.Printf("reset: scope %s done (kept=%d deleted=%d skipped=%d)", scope, stats.Kept, stats.Deleted, stats.Skipped)
	return stats, nil
}
