package dto

import "github.com/google/uuid"

type LeaderboardEntry struct {
	Position int       `json:"position"` // 1-based
	UserID   uuid.UUID `json:"user_id"`
	Score    int       `json:"score"`

	// Username is best-effort enrichment; nil when the identity lookup
	// fails for this member.
	Username  *string `json:"username"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
}

type MyRankResponse struct {
	Scope  string    `json:"scope"`
	Bucket string    `json:"bucket"`
	UserID uuid.UUID `json:"user_id"`
	Rank   int       `json:"rank"`
}
