package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vmquan2200/edufinai/internal/entity"
)

type ChallengeFilter struct {
	Scope          string
	Type           string
	ApprovalStatus string
	ActiveOnly     bool
	Page           int
	Limit          int
}

type ChallengeRepository interface {
	Create(ctx context.Context, challenge *entity.Challenge) error
	Update(ctx context.Context, challenge *entity.Challenge) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Challenge, error)
	List(ctx context.Context, filter ChallengeFilter) ([]entity.Challenge, int64, error)

	// ListEligible returns active, approved challenges whose window
	// contains now. These are the only challenges that accrue progress.
	ListEligible(ctx context.Context, now time.Time) ([]entity.Challenge, error)

	// SetApproval updates the status and appends to the approval history in
	// one transaction.
	SetApproval(ctx context.Context, id uuid.UUID, status entity.ApprovalStatus, reviewerID uuid.UUID, note string) error
}

type challengeRepository struct {
	db *gorm.DB
}

func NewChallengeRepository(db *gorm.DB) ChallengeRepository {
	return &challengeRepository{db: db}
}

func (r *challengeRepository) Create(ctx context.Context, challenge *entity.Challenge) error {
	return r.db.WithContext(ctx).Create(challenge).Error
}

func (r *challengeRepository) Update(ctx context.Context, challenge *entity.Challenge) error {
	return r.db.WithContext(ctx).Save(challenge).Error
}

func (r *challengeRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Challenge, error) {
	var challenge entity.Challenge
	if err := r.db.WithContext(ctx).First(&challenge, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (r *challengeRepository) List(ctx context.Context, filter ChallengeFilter) ([]entity.Challenge, int64, error) {
	q := r.db.WithContext(ctx).Model(&entity.Challenge{})

	if filter.Scope != "" {
		q = q.Where("scope = ?", filter.Scope)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.ApprovalStatus != "" {
		q = q.Where("approval_status = ?", filter.ApprovalStatus)
	}
	if filter.ActiveOnly {
		q = q.Where("active = ?", true)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}

	var challenges []entity.Challenge
	err := q.Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&challenges).Error
	return challenges, total, err
}

func (r *challengeRepository) ListEligible(ctx context.Context, now time.Time) ([]entity.Challenge, error) {
	var challenges []entity.Challenge
	err := r.db.WithContext(ctx).
		Where("active = ? AND approval_status = ?", true, entity.ApprovalApproved).
		Where("(start_at IS NULL OR start_at <= ?) AND (end_at IS NULL OR end_at >= ?)", now, now).
		Find(&challenges).Error
	return challenges, err
}

func (r *challengeRepository) SetApproval(ctx context.Context, id uuid.UUID, status entity.ApprovalStatus, reviewerID uuid.UUID, note string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&entity.Challenge{}).
			Where("id = ?", id).
			Update("approval_status", status)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		return tx.Create(&entity.ChallengeApprovalLog{
			ChallengeID: id,
			ReviewerID:  reviewerID,
			Status:      status,
			Note:        note,
		}).Error
	})
}
