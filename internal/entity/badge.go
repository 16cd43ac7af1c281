package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BadgeDefinition struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code        string    `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IconURL     string    `gorm:"type:text" json:"icon_url"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (b *BadgeDefinition) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// BadgeAward keeps earn counts per (user, badge). Repeat awards bump the
// count and refresh last_earned_at; source_challenge_id is last-write-wins.
type BadgeAward struct {
	UserID  uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	BadgeID uuid.UUID `gorm:"type:uuid;primaryKey" json:"badge_id"`

	Badge *BadgeDefinition `gorm:"foreignKey:BadgeID" json:"badge,omitempty"`

	Count             int        `gorm:"not null;default:0" json:"count"`
	FirstEarnedAt     time.Time  `gorm:"not null" json:"first_earned_at"`
	LastEarnedAt      time.Time  `gorm:"not null" json:"last_earned_at"`
	SourceChallengeID *uuid.UUID `gorm:"type:uuid" json:"source_challenge_id,omitempty"`
}
