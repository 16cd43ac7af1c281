package entity

import (
	"time"

	"github.com/google/uuid"
)

type RewardSourceType string

const (
	SourceManual    RewardSourceType = "MANUAL"
	SourceQuiz      RewardSourceType = "QUIZ"
	SourceChallenge RewardSourceType = "CHALLENGE"
	SourceGoal      RewardSourceType = "GOAL"
)

// RewardRecord is append-only. The core never mutates or deletes rows; the
// record stream is the source of truth for every score in the system.
type RewardRecord struct {
	ID         uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID     uuid.UUID        `gorm:"type:uuid;not null;index:idx_reward_user_date,priority:1" json:"user_id"`
	Score      int              `gorm:"not null" json:"score"`
	SourceType RewardSourceType `gorm:"size:20;not null" json:"source_type"`

	LessonID    *uuid.UUID `gorm:"type:uuid" json:"lesson_id,omitempty"`
	AttemptID   *string    `gorm:"size:100" json:"attempt_id,omitempty"`
	ChallengeID *uuid.UUID `gorm:"type:uuid" json:"challenge_id,omitempty"`

	BadgeCode string `gorm:"size:50" json:"badge_code,omitempty"`
	Reason    string `gorm:"type:text" json:"reason,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_reward_user_date,priority:2" json:"created_at"`
}

// UserScoreSummary is a denormalized cumulative total kept in lockstep with
// RewardRecord inserts. Read-optimization cache only.
type UserScoreSummary struct {
	UserID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	TotalScore    int       `gorm:"not null;default:0" json:"total_score"`
	LastUpdatedAt time.Time `gorm:"autoUpdateTime" json:"last_updated_at"`
}
