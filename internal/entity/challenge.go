package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChallengeType string

const (
	ChallengeTypeQuiz ChallengeType = "QUIZ"
	ChallengeTypeGoal ChallengeType = "GOAL"
)

// ChallengeScope classifies the reset cadence of a challenge. DAILY, WEEKLY
// and MONTHLY challenges are zeroed by the reset scheduler; the rest never
// reset on a timer.
type ChallengeScope string

const (
	ScopeDaily    ChallengeScope = "DAILY"
	ScopeWeekly   ChallengeScope = "WEEKLY"
	ScopeMonthly  ChallengeScope = "MONTHLY"
	ScopeAllTime  ChallengeScope = "ALLTIME"
	ScopeOneOff   ChallengeScope = "ONEOFF"
	ScopeSeasonal ChallengeScope = "SEASONAL"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

type Challenge struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string         `gorm:"size:150;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Type        ChallengeType  `gorm:"size:20;not null;index" json:"type"`
	Scope       ChallengeScope `gorm:"size:20;not null;index" json:"scope"`

	// TargetValue is nullable; when absent the rule descriptor supplies its
	// own count, with 1 as the final fallback.
	TargetValue *int       `json:"target_value"`
	StartAt     *time.Time `json:"start_at"`
	EndAt       *time.Time `json:"end_at"`
	Active      bool       `gorm:"default:true;index" json:"active"`

	// RuleSpec is a serialized predicate set, see internal/modules/rule.
	RuleSpec string `gorm:"type:text;not null" json:"rule_spec"`

	RewardScore       int    `gorm:"default:0" json:"reward_score"`
	RewardBadgeCode   string `gorm:"size:50" json:"reward_badge_code"`
	MaxProgressPerDay int    `gorm:"default:0" json:"max_progress_per_day"` // 0 = uncapped

	ApprovalStatus ApprovalStatus `gorm:"size:20;not null;default:'PENDING';index" json:"approval_status"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c *Challenge) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// WindowContains reports whether t falls inside the challenge's active
// window. A nil bound is open-ended.
func (c *Challenge) WindowContains(t time.Time) bool {
	if c.StartAt != nil && t.Before(*c.StartAt) {
		return false
	}
	if c.EndAt != nil && t.After(*c.EndAt) {
		return false
	}
	return true
}

// Eligible reports whether the challenge may accrue progress at t.
func (c *Challenge) Eligible(t time.Time) bool {
	return c.Active && c.ApprovalStatus == ApprovalApproved && c.WindowContains(t)
}

// ChallengeApprovalLog is an append-only history of approval transitions.
type ChallengeApprovalLog struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ChallengeID uuid.UUID      `gorm:"type:uuid;not null;index" json:"challenge_id"`
	ReviewerID  uuid.UUID      `gorm:"type:uuid;not null" json:"reviewer_id"`
	Status      ApprovalStatus `gorm:"size:20;not null" json:"status"`
	Note        string         `gorm:"type:text" json:"note"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
