package dto

import (
	"time"

	"github.com/google/uuid"
)

type EventRequest struct {
	EventType string   `json:"event_type" binding:"required"`
	Action    string   `json:"action"`
	Score     *int     `json:"score"`
	Accuracy  *float64 `json:"accuracy" binding:"omitempty,min=0,max=100"`
	Amount    *int     `json:"amount"`

	// AttemptID and OccurredAt are accepted for wire compatibility with
	// existing clients and ignored; progress accounting uses server time.
	AttemptID  string     `json:"attempt_id"`
	OccurredAt *time.Time `json:"occurred_at"`
}

type ProgressResponse struct {
	ChallengeID     uuid.UUID  `json:"challenge_id"`
	Title           string     `json:"title"`
	Scope           string     `json:"scope"`
	CurrentProgress int        `json:"current_progress"`
	TargetProgress  int        `json:"target_progress"`
	ProgressPercent float64    `json:"progress_percent"`
	Completed       bool       `json:"completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
}

type ProgressSummaryItem struct {
	ChallengeID     uuid.UUID `json:"challenge_id"`
	Title           string    `json:"title"`
	ProgressPercent float64   `json:"progress_percent"`
}

type ProgressSummaryResponse struct {
	Items               []ProgressSummaryItem `json:"items"`
	TotalChallengeCount int                   `json:"total_challenge_count"`
}

type CreateChallengeRequest struct {
	Title       string `json:"title" binding:"required,max=150"`
	Description string `json:"description"`
	Type        string `json:"type" binding:"required,oneof=QUIZ GOAL"`
	Scope       string `json:"scope" binding:"required,oneof=DAILY WEEKLY MONTHLY ALLTIME ONEOFF SEASONAL"`

	TargetValue *int       `json:"target_value" binding:"omitempty,min=1"`
	StartAt     *time.Time `json:"start_at"`
	EndAt       *time.Time `json:"end_at"`
	Active      *bool      `json:"active"`

	RuleSpec string `json:"rule_spec" binding:"required"`

	RewardScore       int    `json:"reward_score" binding:"omitempty,min=0"`
	RewardBadgeCode   string `json:"reward_badge_code"`
	MaxProgressPerDay int    `json:"max_progress_per_day" binding:"omitempty,min=0"`
}

type UpdateChallengeRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=150"`
	Description *string `json:"description"`

	TargetValue *int       `json:"target_value" binding:"omitempty,min=1"`
	StartAt     *time.Time `json:"start_at"`
	EndAt       *time.Time `json:"end_at"`
	Active      *bool      `json:"active"`

	RuleSpec *string `json:"rule_spec"`

	RewardScore       *int    `json:"reward_score" binding:"omitempty,min=0"`
	RewardBadgeCode   *string `json:"reward_badge_code"`
	MaxProgressPerDay *int    `json:"max_progress_per_day" binding:"omitempty,min=0"`
}

type ApprovalRequest struct {
	Status string `json:"status" binding:"required,oneof=APPROVED REJECTED"`
	Note   string `json:"note"`
}

type ChallengeListFilter struct {
	Scope          string `form:"scope"`
	Type           string `form:"type"`
	ApprovalStatus string `form:"approval_status"`
	Page           int    `form:"page"`
	Limit          int    `form:"limit" binding:"omitempty,min=1,max=50"`
}
