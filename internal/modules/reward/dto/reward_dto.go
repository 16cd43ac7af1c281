package dto

import (
	"time"

	"github.com/google/uuid"
)

const (
	StatusSuccess          = "SUCCESS"
	StatusDuplicateAttempt = "DUPLICATE_ATTEMPT"
	StatusNoScoreChange    = "NO_SCORE_CHANGE"
)

type GrantRewardRequest struct {
	SourceType string `json:"source_type" binding:"required,oneof=MANUAL QUIZ CHALLENGE GOAL"`
	Score      int    `json:"score"`

	// Quiz-sourced grants: the attempt pair is mandatory, score is derived
	// from the answer counts when not supplied.
	LessonID       *uuid.UUID `json:"lesson_id"`
	AttemptID      string     `json:"attempt_id"`
	TotalQuestions int        `json:"total_questions" binding:"omitempty,min=1"`
	CorrectAnswers int        `json:"correct_answers" binding:"omitempty,min=0"`

	ChallengeID *uuid.UUID `json:"challenge_id"`
	BadgeCode   string     `json:"badge_code"`
	Reason      string     `json:"reason"`
}

type GrantRewardResponse struct {
	RewardID *uuid.UUID `json:"reward_id"`
	Status   string     `json:"status"`
	Score    int        `json:"score"`

	// Quiz grants carry the ledger view of the attempt.
	RawScore     *int `json:"raw_score,omitempty"`
	PreviousBest *int `json:"previous_best,omitempty"`
}

type RewardRecordResponse struct {
	ID          uuid.UUID  `json:"id"`
	Score       int        `json:"score"`
	SourceType  string     `json:"source_type"`
	LessonID    *uuid.UUID `json:"lesson_id,omitempty"`
	AttemptID   *string    `json:"attempt_id,omitempty"`
	ChallengeID *uuid.UUID `json:"challenge_id,omitempty"`
	BadgeCode   string     `json:"badge_code,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type RewardHistoryResponse struct {
	Data  []RewardRecordResponse `json:"data"`
	Total int64                  `json:"total"`
}

type ScoreSummaryResponse struct {
	UserID     uuid.UUID `json:"user_id"`
	TotalScore int       `json:"total_score"`
}
