package entity

import (
	"time"

	"github.com/google/uuid"
)

type Notification struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`

	// EntityID points at the challenge or badge the event refers to.
	EntityID uuid.UUID `gorm:"type:uuid" json:"entity_id"`

	// Type is 'challenge_completed' or 'badge_earned'.
	Type    string `gorm:"type:varchar(50);not null" json:"type"`
	Title   string `gorm:"type:varchar(150)" json:"title"`
	Message string `gorm:"type:text" json:"message"`

	// Metadata is a JSON blob (reward score, badge code).
	Metadata string `gorm:"type:text" json:"metadata"`
	IsRead   bool   `gorm:"default:false" json:"is_read"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
