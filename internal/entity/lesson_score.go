package entity

import (
	"time"

	"github.com/google/uuid"
)

// LessonScoreState tracks the best result per (user, lesson) so repeated
// attempts only reward the improvement delta.
type LessonScoreState struct {
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	LessonID uuid.UUID `gorm:"type:uuid;primaryKey" json:"lesson_id"`

	BestScore     int    `gorm:"not null;default:0" json:"best_score"`
	LastScore     int    `gorm:"not null;default:0" json:"last_score"`
	LastAttemptID string `gorm:"size:100" json:"last_attempt_id"`
	AttemptCount  int    `gorm:"not null;default:0" json:"attempt_count"`

	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// AttemptRecord exists solely as idempotency proof: one row per unique
// attempt identifier. The unique index on attempt_id is the race-safe
// duplicate signal, not any prior existence check.
type AttemptRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AttemptID string    `gorm:"size:100;uniqueIndex;not null" json:"attempt_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	LessonID  uuid.UUID `gorm:"type:uuid;not null" json:"lesson_id"`
	RawScore  int       `gorm:"not null" json:"raw_score"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
