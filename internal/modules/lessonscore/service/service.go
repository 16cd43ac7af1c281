package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vmquan2200/edufinai/internal/entity"
	lessonRepo "github.com/vmquan2200/edufinai/internal/modules/lessonscore/repository"
	"github.com/vmquan2200/edufinai/pkg/apperror"
)

// AttemptResult describes what one attempt submission did to the ledger.
// DeltaScore is the only portion eligible for a reward grant: repeated
// attempts that do not beat the previous best yield a zero delta.
type AttemptResult struct {
	Duplicate    bool
	DeltaScore   int
	RawScore     int
	PreviousBest int
}

type LessonScoreService interface {
	ProcessAttempt(ctx context.Context, userID, lessonID uuid.UUID, attemptID string, rawScore int) (*AttemptResult, error)
}

type lessonScoreService struct {
	repo lessonRepo.Repository
}

func NewLessonScoreService(repo lessonRepo.Repository) LessonScoreService {
	return &lessonScoreService{repo: repo}
}

func (s *lessonScoreService) ProcessAttempt(ctx context.Context, userID, lessonID uuid.UUID, attemptID string, rawScore int) (*AttemptResult, error) {
	if strings.TrimSpace(attemptID) == "" {
		return nil, fmt.Errorf("%w: attempt_id is blank", apperror.ErrInvalidAttempt)
	}
	if lessonID == uuid.Nil {
		return nil, fmt.Errorf("%w: lesson_id is missing", apperror.ErrInvalidAttempt)
	}
	if rawScore < 0 {
		rawScore = 0
	}

	att := &entity.AttemptRecord{
		AttemptID: attemptID,
		UserID:    userID,
		LessonID:  lessonID,
		RawScore:  rawScore,
	}

	result := &AttemptResult{RawScore: rawScore}

	duplicate, err := s.repo.WithAttempt(ctx, att, func(state *entity.LessonScoreState) {
		result.PreviousBest = state.BestScore

		delta := rawScore - state.BestScore
		if delta < 0 {
			delta = 0
		}
		result.DeltaScore = delta

		state.LastScore = rawScore
		state.LastAttemptID = attemptID
		state.AttemptCount++
		if delta > 0 || state.AttemptCount == 1 {
			if rawScore > state.BestScore {
				state.BestScore = rawScore
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if duplicate {
		return &AttemptResult{Duplicate: true, RawScore: rawScore}, nil
	}

	return result, nil
}
