package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vmquan2200/edufinai/internal/entity"
)

// MutateAction tells Mutate what to do with the row after the closure ran.
type MutateAction int

const (
	ActionNone MutateAction = iota
	ActionSave
	ActionDelete
)

// ProgressRepository owns the per-(user, challenge) state machine rows.
//
// Mutate serializes all writers of one row behind SELECT ... FOR UPDATE:
// concurrent events for the same pair see exactly-one-increment semantics,
// and a scheduled reset can never interleave with an in-flight increment.
// Racing first writers are resolved by rerunning the losing transaction
// once against the freshly committed row.
type ProgressRepository interface {
	Mutate(ctx context.Context, userID, challengeID uuid.UUID, fn func(row *entity.UserChallengeProgress, found bool) (MutateAction, error)) error

	Get(ctx context.Context, userID, challengeID uuid.UUID) (*entity.UserChallengeProgress, error)
	ListByUser(ctx context.Context, userID uuid.UUID, completed *bool) ([]entity.UserChallengeProgress, error)

	// ListByScope returns all progress rows whose parent challenge has the
	// given scope, challenge preloaded. Used by the reset scheduler.
	ListByScope(ctx context.Context, scope entity.ChallengeScope) ([]entity.UserChallengeProgress, error)
}

type progressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) ProgressRepository {
	return &progressRepository{db: db}
}

func (r *progressRepository) Mutate(ctx context.Context, userID, challengeID uuid.UUID, fn func(row *entity.UserChallengeProgress, found bool) (MutateAction, error)) error {
	return retryOnDuplicate(func() error {
		return r.mutateOnce(ctx, userID, challengeID, fn)
	})
}

// retryOnDuplicate reruns op once after a duplicate-key violation. FOR
// UPDATE cannot lock a row that does not exist yet, so two first writers
// for the same pair can both take the create path; the loser's insert hits
// the composite primary key. Its second pass finds the committed row and
// locks it, so the write still lands.
func retryOnDuplicate(op func() error) error {
	err := op()
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = op()
	}
	return err
}

func (r *progressRepository) mutateOnce(ctx context.Context, userID, challengeID uuid.UUID, fn func(row *entity.UserChallengeProgress, found bool) (MutateAction, error)) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := entity.UserChallengeProgress{UserID: userID, ChallengeID: challengeID}
		found := true

		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND challenge_id = ?", userID, challengeID).
			First(&row).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			found = false
			row = entity.UserChallengeProgress{UserID: userID, ChallengeID: challengeID}
		}

		action, err := fn(&row, found)
		if err != nil {
			return err
		}

		switch action {
		case ActionSave:
			if found {
				return tx.Save(&row).Error
			}
			return tx.Create(&row).Error
		case ActionDelete:
			if !found {
				return nil
			}
			return tx.Where("user_id = ? AND challenge_id = ?", userID, challengeID).
				Delete(&entity.UserChallengeProgress{}).Error
		default:
			return nil
		}
	})
}

func (r *progressRepository) Get(ctx context.Context, userID, challengeID uuid.UUID) (*entity.UserChallengeProgress, error) {
	var row entity.UserChallengeProgress
	err := r.db.WithContext(ctx).Preload("Challenge").
		Where("user_id = ? AND challenge_id = ?", userID, challengeID).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *progressRepository) ListByUser(ctx context.Context, userID uuid.UUID, completed *bool) ([]entity.UserChallengeProgress, error) {
	q := r.db.WithContext(ctx).Preload("Challenge").Where("user_id = ?", userID)
	if completed != nil {
		q = q.Where("completed = ?", *completed)
	}

	var rows []entity.UserChallengeProgress
	err := q.Order("updated_at DESC").Find(&rows).Error
	return rows, err
}

func (r *progressRepository) ListByScope(ctx context.Context, scope entity.ChallengeScope) ([]entity.UserChallengeProgress, error) {
	var rows []entity.UserChallengeProgress
	err := r.db.WithContext(ctx).Preload("Challenge").
		Joins("JOIN challenges ON challenges.id = user_challenge_progresses.challenge_id").
		Where("challenges.scope = ?", scope).
		Find(&rows).Error
	return rows, err
}
