package service

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/vmquan2200/edufinai/internal/entity"
	lbService "github.com/vmquan2200/edufinai/internal/modules/leaderboard/service"
	lessonService "github.com/vmquan2200/edufinai/internal/modules/lessonscore/service"
	"github.com/vmquan2200/edufinai/internal/modules/reward/dto"
	rewardRepo "github.com/vmquan2200/edufinai/internal/modules/reward/repository"
	"github.com/vmquan2200/edufinai/pkg/apperror"
)

// PointsPerQuestion converts quiz answer counts to a raw score when the
// caller does not supply one directly.
const PointsPerQuestion = 10

// GrantInput is the single entry point for new points. Everything that
// awards score goes through Grant.
type GrantInput struct {
	UserID     uuid.UUID
	Score      int
	SourceType entity.RewardSourceType

	LessonID    *uuid.UUID
	AttemptID   *string
	ChallengeID *uuid.UUID
	BadgeCode   string
	Reason      string
}

type GrantResult struct {
	Status   string
	RecordID *uuid.UUID
	Score    int
}

type RewardService interface {
	Grant(ctx context.Context, in GrantInput) (*GrantResult, error)

	// GrantReward is the upward-facing operation: quiz-sourced requests run
	// through the lesson score ledger first and only the improvement delta
	// is granted.
	GrantReward(ctx context.Context, userID uuid.UUID, req dto.GrantRewardRequest) (*dto.GrantRewardResponse, error)

	GetSummary(ctx context.Context, userID uuid.UUID) (*dto.ScoreSummaryResponse, error)
	GetHistory(ctx context.Context, userID uuid.UUID, limit, offset int) (*dto.RewardHistoryResponse, error)
}

type rewardService struct {
	repo        rewardRepo.RewardRepository
	lessonScore lessonService.LessonScoreService
	leaderboard lbService.LeaderboardService
}

func NewRewardService(repo rewardRepo.RewardRepository, lessonScore lessonService.LessonScoreService, leaderboard lbService.LeaderboardService) RewardService {
	return &rewardService{
		repo:        repo,
		lessonScore: lessonScore,
		leaderboard: leaderboard,
	}
}

func (s *rewardService) Grant(ctx context.Context, in GrantInput) (*GrantResult, error) {
	// Fail closed: non-positive grants perform no writes at all.
	if in.Score <= 0 {
		return &GrantResult{Status: dto.StatusNoScoreChange}, nil
	}

	rec := &entity.RewardRecord{
		UserID:      in.UserID,
		Score:       in.Score,
		SourceType:  in.SourceType,
		LessonID:    in.LessonID,
		AttemptID:   in.AttemptID,
		ChallengeID: in.ChallengeID,
		BadgeCode:   in.BadgeCode,
		Reason:      in.Reason,
	}

	if err := s.repo.AppendRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to append reward record: %w", err)
	}

	// The ledger write succeeded; bucket updates must follow. IncrementAll
	// retries and logs inconsistencies, so a leaderboard outage does not
	// fail the grant itself.
	if err := s.leaderboard.IncrementAll(ctx, in.UserID, in.Score); err != nil {
		log.Printf("reward: leaderboard update incomplete for record %s: %v", rec.ID, err)
	}

	return &GrantResult{
		Status:   dto.StatusSuccess,
		RecordID: &rec.ID,
		Score:    in.Score,
	}, nil
}

func (s *rewardService) GrantReward(ctx context.Context, userID uuid.UUID, req dto.GrantRewardRequest) (*dto.GrantRewardResponse, error) {
	sourceType := entity.RewardSourceType(req.SourceType)

	if sourceType == entity.SourceQuiz {
		return s.grantQuizReward(ctx, userID, req)
	}

	result, err := s.Grant(ctx, GrantInput{
		UserID:      userID,
		Score:       req.Score,
		SourceType:  sourceType,
		LessonID:    req.LessonID,
		ChallengeID: req.ChallengeID,
		BadgeCode:   req.BadgeCode,
		Reason:      req.Reason,
	})
	if err != nil {
		return nil, err
	}

	return &dto.GrantRewardResponse{
		RewardID: result.RecordID,
		Status:   result.Status,
		Score:    result.Score,
	}, nil
}

func (s *rewardService) grantQuizReward(ctx context.Context, userID uuid.UUID, req dto.GrantRewardRequest) (*dto.GrantRewardResponse, error) {
	if req.LessonID == nil {
		return nil, fmt.Errorf("%w: lesson_id is required for quiz rewards", apperror.ErrInvalidAttempt)
	}

	rawScore := req.Score
	if rawScore <= 0 && req.TotalQuestions > 0 {
		rawScore = req.CorrectAnswers * PointsPerQuestion
	}

	attempt, err := s.lessonScore.ProcessAttempt(ctx, userID, *req.LessonID, req.AttemptID, rawScore)
	if err != nil {
		return nil, err
	}

	if attempt.Duplicate {
		return &dto.GrantRewardResponse{Status: dto.StatusDuplicateAttempt}, nil
	}
	if attempt.DeltaScore <= 0 {
		return &dto.GrantRewardResponse{
			Status:       dto.StatusNoScoreChange,
			RawScore:     &attempt.RawScore,
			PreviousBest: &attempt.PreviousBest,
		}, nil
	}

	result, err := s.Grant(ctx, GrantInput{
		UserID:     userID,
		Score:      attempt.DeltaScore,
		SourceType: entity.SourceQuiz,
		LessonID:   req.LessonID,
		AttemptID:  &req.AttemptID,
		Reason:     req.Reason,
	})
	if err != nil {
		return nil, err
	}

	return &dto.GrantRewardResponse{
		RewardID:     result.RecordID,
		Status:       result.Status,
		Score:        result.Score,
		RawScore:     &attempt.RawScore,
		PreviousBest: &attempt.PreviousBest,
	}, nil
}

func (s *rewardService) GetSummary(ctx context.Context, userID uuid.UUID) (*dto.ScoreSummaryResponse, error) {
	summary, err := s.repo.GetSummary(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &dto.ScoreSummaryResponse{UserID: userID, TotalScore: summary.TotalScore}, nil
}

func (s *rewardService) GetHistory(ctx context.Context, userID uuid.UUID, limit, offset int) (*dto.RewardHistoryResponse, error) {
	records, total, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}

	data := make([]dto.RewardRecordResponse, 0, len(records))
	for _, rec := range records {
		data = append(data, dto.RewardRecordResponse{
			ID:          rec.ID,
			Score:       rec.Score,
			SourceType:  string(rec.SourceType),
			LessonID:    rec.LessonID,
			AttemptID:   rec.AttemptID,
			ChallengeID: rec.ChallengeID,
			BadgeCode:   rec.BadgeCode,
			Reason:      rec.Reason,
			CreatedAt:   rec.CreatedAt,
		})
	}

	return &dto.RewardHistoryResponse{Data: data, Total: total}, nil
}
