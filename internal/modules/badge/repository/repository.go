package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vmquan2200/edufinai/internal/entity"
)

type BadgeRepository interface {
	FindDefinitionByCode(ctx context.Context, code string) (*entity.BadgeDefinition, error)
	// UpsertAward creates the first award or increments an existing one.
	// source_challenge_id is last-write-wins.
	UpsertAward(ctx context.Context, userID, badgeID uuid.UUID, sourceChallengeID *uuid.UUID, now time.Time) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.BadgeAward, error)
}

type badgeRepository struct {
	db *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) BadgeRepository {
	return &badgeRepository{db: db}
}

func (r *badgeRepository) FindDefinitionByCode(ctx context.Context, code string) (*entity.BadgeDefinition, error) {
	var def entity.BadgeDefinition
	if err := r.db.WithContext(ctx).First(&def, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &def, nil
}

func (r *badgeRepository) UpsertAward(ctx context.Context, userID, badgeID uuid.UUID, sourceChallengeID *uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "badge_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":               gorm.Expr("badge_awards.count + 1"),
			"last_earned_at":      now,
			"source_challenge_id": sourceChallengeID,
		}),
	}).Create(&entity.BadgeAward{
		UserID:            userID,
		BadgeID:           badgeID,
		Count:             1,
		FirstEarnedAt:     now,
		LastEarnedAt:      now,
		SourceChallengeID: sourceChallengeID,
	}).Error
}

func (r *badgeRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]entity.BadgeAward, error) {
	var awards []entity.BadgeAward
	err := r.db.WithContext(ctx).Preload("Badge").
		Where("user_id = ?", userID).
		Order("last_earned_at DESC").
		Find(&awards).Error
	return awards, err
}
