package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vmquan2200/edufinai/internal/clock"
	"github.com/vmquan2200/edufinai/internal/entity"
	"github.com/vmquan2200/edufinai/internal/modules/challenge/dto"
	challengeRepo "github.com/vmquan2200/edufinai/internal/modules/challenge/repository"
	rewardService "github.com/vmquan2200/edufinai/internal/modules/reward/service"
	"github.com/vmquan2200/edufinai/internal/modules/rule"
	"github.com/vmquan2200/edufinai/pkg/apperror"
)

// RewardGranter is the slice of the reward ledger the tracker needs.
type RewardGranter interface {
	Grant(ctx context.Context, in rewardService.GrantInput) (*rewardService.GrantResult, error)
}

// BadgeAwarder is the slice of the badge ledger the tracker needs.
type BadgeAwarder interface {
	Award(ctx context.Context, userID uuid.UUID, badgeCode string, sourceChallengeID *uuid.UUID) error
}

// CompletionNotifier delivers the completion notification; failures are
// logged here, never propagated.
type CompletionNotifier interface {
	Notify(ctx context.Context, userID uuid.UUID, notifType, title, message string, entityID uuid.UUID, metadata map[string]interface{}) error
}

// ProgressTracker consumes activity events and drives the per-(user,
// challenge) state machine: NotStarted -> InProgress -> Completed.
type ProgressTracker interface {
	ProcessEvent(ctx context.Context, userID uuid.UUID, ev rule.Event) error

	GetProgress(ctx context.Context, userID, challengeID uuid.UUID) (*dto.ProgressResponse, error)
	GetActiveProgress(ctx context.Context, userID uuid.UUID) ([]dto.ProgressResponse, error)
	GetCompletedProgress(ctx context.Context, userID uuid.UUID) ([]dto.ProgressResponse, error)
	GetSummary(ctx context.Context, userID uuid.UUID) (*dto.ProgressSummaryResponse, error)
}

type progressTracker struct {
	challengeRepo challengeRepo.ChallengeRepository
	progressRepo  challengeRepo.ProgressRepository
	rewards       RewardGranter
	badges        BadgeAwarder
	notifier      CompletionNotifier
	clk           clock.Clock
	loc           *time.Location
}

func NewProgressTracker(
	challenges challengeRepo.ChallengeRepository,
	progress challengeRepo.ProgressRepository,
	rewards RewardGranter,
	badges BadgeAwarder,
	notifier CompletionNotifier,
	clk clock.Clock,
	loc *time.Location,
) ProgressTracker {
	if clk == nil {
		clk = clock.System()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &progressTracker{
		challengeRepo: challenges,
		progressRepo:  progress,
		rewards:       rewards,
		badges:        badges,
		notifier:      notifier,
		clk:           clk,
		loc:           loc,
	}
}

func (t *progressTracker) ProcessEvent(ctx context.Context, userID uuid.UUID, ev rule.Event) error {
	now := t.clk.Now().In(t.loc)

	challenges, err := t.challengeRepo.ListEligible(ctx, now)
	if err != nil {
		return err
	}

	for i := range challenges {
		ch := &challenges[i]
		if err := t.handleChallenge(ctx, userID, ch, ev, now); err != nil {
			// One broken challenge must not stall the rest.
			log.Printf("tracker: challenge %s (%s) failed for user %s: %v", ch.ID, ch.Title, userID, err)
		}
	}
	return nil
}

func (t *progressTracker) handleChallenge(ctx context.Context, userID uuid.UUID, ch *entity.Challenge, ev rule.Event, now time.Time) error {
	r, err := rule.Parse(ch.RuleSpec)
	if err != nil {
		return err
	}
	if !r.Matches(ev) {
		return nil
	}

	completedNow := false

	err = t.progressRepo.Mutate(ctx, userID, ch.ID, func(row *entity.UserChallengeProgress, found bool) (challengeRepo.MutateAction, error) {
		if !found {
			// Lazy creation on the first qualifying event; target snapshot
			// taken now and never re-resolved.
			row.TargetProgress = rule.ResolveTarget(r, ch.TargetValue)
			row.StartedAt = now
		}

		// Completed is terminal until reset: replayed qualifying events
		// are no-ops and never re-trigger side effects.
		if row.Completed {
			return challengeRepo.ActionNone, nil
		}

		if row.LastProgressDate == nil || !sameDay(*row.LastProgressDate, now, t.loc) {
			row.ProgressCountToday = 0
		}
		if ch.MaxProgressPerDay > 0 && row.ProgressCountToday >= ch.MaxProgressPerDay {
			return challengeRepo.ActionNone, nil
		}

		// One unit per qualifying event. Event-supplied amounts are
		// ignored so a single large deposit cannot inflate progress.
		row.CurrentProgress++
		row.ProgressCountToday++
		day := now
		row.LastProgressDate = &day

		if row.CurrentProgress >= row.TargetProgress {
			row.Completed = true
			completedAt := now
			row.CompletedAt = &completedAt
			completedNow = true
		}

		return challengeRepo.ActionSave, nil
	})
	if err != nil {
		return err
	}

	if completedNow {
		t.runCompletionSideEffects(ctx, userID, ch)
	}
	return nil
}

// runCompletionSideEffects fires reward, badge and notification for a fresh
// completion. Each side effect is isolated: one failing is logged and must
// not block the others, and the Completed transition is never rolled back.
func (t *progressTracker) runCompletionSideEffects(ctx context.Context, userID uuid.UUID, ch *entity.Challenge) {
	if ch.RewardScore > 0 {
		_, err := t.rewards.Grant(ctx, rewardService.GrantInput{
			UserID:      userID,
			Score:       ch.RewardScore,
			SourceType:  entity.SourceChallenge,
			ChallengeID: &ch.ID,
			BadgeCode:   ch.RewardBadgeCode,
			Reason:      "Challenge completed: " + ch.Title,
		})
		if err != nil {
			log.Printf("tracker: reward grant failed for challenge %s user %s: %v", ch.ID, userID, err)
		}
	}

	if ch.RewardBadgeCode != "" {
		if err := t.badges.Award(ctx, userID, ch.RewardBadgeCode, &ch.ID); err != nil {
			log.Printf("tracker: badge award failed for challenge %s user %s: %v", ch.ID, userID, err)
		}
	}

	if t.notifier != nil {
		metadata := map[string]interface{}{}
		if ch.RewardScore > 0 {
			metadata["reward_score"] = ch.RewardScore
		}
		if ch.RewardBadgeCode != "" {
			metadata["badge_code"] = ch.RewardBadgeCode
		}
		err := t.notifier.Notify(ctx, userID, "challenge_completed", ch.Title,
			"You completed the challenge: "+ch.Title, ch.ID, metadata)
		if err != nil {
			log.Printf("tracker: completion notification failed for challenge %s user %s: %v", ch.ID, userID, err)
		}
	}
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (t *progressTracker) GetProgress(ctx context.Context, userID, challengeID uuid.UUID) (*dto.ProgressResponse, error) {
	row, err := t.progressRepo.Get(ctx, userID, challengeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	resp := toProgressResponse(row)
	return &resp, nil
}

func (t *progressTracker) GetActiveProgress(ctx context.Context, userID uuid.UUID) ([]dto.ProgressResponse, error) {
	completed := false
	return t.listProgress(ctx, userID, &completed)
}

func (t *progressTracker) GetCompletedProgress(ctx context.Context, userID uuid.UUID) ([]dto.ProgressResponse, error) {
	completed := true
	return t.listProgress(ctx, userID, &completed)
}

func (t *progressTracker) listProgress(ctx context.Context, userID uuid.UUID, completed *bool) ([]dto.ProgressResponse, error) {
	rows, err := t.progressRepo.ListByUser(ctx, userID, completed)
	if err != nil {
		return nil, err
	}

	out := make([]dto.ProgressResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toProgressResponse(&rows[i]))
	}
	return out, nil
}

func (t *progressTracker) GetSummary(ctx context.Context, userID uuid.UUID) (*dto.ProgressSummaryResponse, error) {
	now := t.clk.Now().In(t.loc)

	eligible, err := t.challengeRepo.ListEligible(ctx, now)
	if err != nil {
		return nil, err
	}

	rows, err := t.progressRepo.ListByUser(ctx, userID, nil)
	if err != nil {
		return nil, err
	}

	byChallenge := make(map[uuid.UUID]*entity.UserChallengeProgress, len(rows))
	for i := range rows {
		byChallenge[rows[i].ChallengeID] = &rows[i]
	}

	items := make([]dto.ProgressSummaryItem, 0, len(eligible))
	for i := range eligible {
		ch := &eligible[i]
		item := dto.ProgressSummaryItem{ChallengeID: ch.ID, Title: ch.Title}
		if row, ok := byChallenge[ch.ID]; ok {
			item.ProgressPercent = progressPercent(row)
		}
		items = append(items, item)
	}

	return &dto.ProgressSummaryResponse{
		Items:               items,
		TotalChallengeCount: len(eligible),
	}, nil
}

func progressPercent(row *entity.UserChallengeProgress) float64 {
	if row.TargetProgress <= 0 {
		return 0
	}
	pct := float64(row.CurrentProgress) / float64(row.TargetProgress) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

func toProgressResponse(row *entity.UserChallengeProgress) dto.ProgressResponse {
	resp := dto.ProgressResponse{
		ChallengeID:     row.ChallengeID,
		CurrentProgress: row.CurrentProgress,
		TargetProgress:  row.TargetProgress,
		ProgressPercent: progressPercent(row),
		Completed:       row.Completed,
		CompletedAt:     row.CompletedAt,
		StartedAt:       row.StartedAt,
	}
	if row.Challenge != nil {
		resp.Title = row.Challenge.Title
		resp.Scope = string(row.Challenge.Scope)
	}
	return resp
}
