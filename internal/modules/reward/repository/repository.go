package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vmquan2200/edufinai/internal/entity"
)

type RewardRepository interface {
	// AppendRecord inserts the reward record and adds its score to the
	// user's denormalized summary in a single transaction.
	AppendRecord(ctx context.Context, rec *entity.RewardRecord) error

	GetSummary(ctx context.Context, userID uuid.UUID) (*entity.UserScoreSummary, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.RewardRecord, int64, error)
}

type rewardRepository struct {
	db *gorm.DB
}

func NewRewardRepository(db *gorm.DB) RewardRepository {
	return &rewardRepository{db: db}
}

func (r *rewardRepository) AppendRecord(ctx context.Context, rec *entity.RewardRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return err
		}

		// Upsert with an in-database add keeps concurrent grants atomic.
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_score":     gorm.Expr("user_score_summaries.total_score + ?", rec.Score),
				"last_updated_at": gorm.Expr("CURRENT_TIMESTAMP"),
			}),
		}).Create(&entity.UserScoreSummary{
			UserID:     rec.UserID,
			TotalScore: rec.Score,
		}).Error
	})
}

func (r *rewardRepository) GetSummary(ctx context.Context, userID uuid.UUID) (*entity.UserScoreSummary, error) {
	var summary entity.UserScoreSummary
	err := r.db.WithContext(ctx).First(&summary, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// No grants yet: a zero summary, not an error.
			return &entity.UserScoreSummary{UserID: userID}, nil
		}
		return nil, err
	}
	return &summary, nil
}

func (r *rewardRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.RewardRecord, int64, error) {
	var records []entity.RewardRecord
	var total int64

	q := r.db.WithContext(ctx).Model(&entity.RewardRecord{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
