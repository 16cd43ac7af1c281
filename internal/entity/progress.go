package entity

import (
	"time"

	"github.com/google/uuid"
)

// UserChallengeProgress is the per-user, per-challenge state machine row.
// No row means NotStarted; completed=false means InProgress; completed=true
// is terminal until a scheduled reset clears it.
type UserChallengeProgress struct {
	UserID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	ChallengeID uuid.UUID `gorm:"type:uuid;primaryKey" json:"challenge_id"`

	Challenge *Challenge `gorm:"foreignKey:ChallengeID" json:"challenge,omitempty"`

	CurrentProgress int `gorm:"not null;default:0" json:"current_progress"`

	// TargetProgress is a snapshot of the resolved target at row creation.
	// Later edits to the challenge's target do not move the goalposts for
	// users already in progress.
	TargetProgress int `gorm:"not null" json:"target_progress"`

	Completed   bool       `gorm:"not null;default:false;index" json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`

	LastProgressDate   *time.Time `json:"last_progress_date"`
	ProgressCountToday int        `gorm:"not null;default:0" json:"progress_count_today"`

	StartedAt time.Time `gorm:"autoCreateTime" json:"started_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
