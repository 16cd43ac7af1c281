package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vmquan2200/edufinai/internal/entity"
)

// Repository persists attempt records and per-lesson score state.
type Repository interface {
	// WithAttempt inserts att and hands the caller the score state for the
	// attempt's (user, lesson), locked for the duration of one transaction.
	// apply mutates the state in place; the mutated state is saved before
	// commit. A replayed attempt id surfaces as duplicate=true via the
	// unique constraint on attempt_id, with no state change.
	WithAttempt(ctx context.Context, att *entity.AttemptRecord, apply func(state *entity.LessonScoreState)) (duplicate bool, err error)

	GetState(ctx context.Context, userID, lessonID uuid.UUID) (*entity.LessonScoreState, error)
}

type lessonScoreRepository struct {
	db *gorm.DB
}

func NewLessonScoreRepository(db *gorm.DB) Repository {
	return &lessonScoreRepository{db: db}
}

func (r *lessonScoreRepository) WithAttempt(ctx context.Context, att *entity.AttemptRecord, apply func(state *entity.LessonScoreState)) (bool, error) {
	duplicate := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The insert is the idempotency gate. A check-then-insert would race
		// under concurrent replays of the same attempt id.
		if err := tx.Create(att).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				duplicate = true
				return err // roll back, nothing else happened yet
			}
			return err
		}

		state := entity.LessonScoreState{UserID: att.UserID, LessonID: att.LessonID}
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND lesson_id = ?", att.UserID, att.LessonID).
			First(&state).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		apply(&state)

		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"best_score", "last_score", "last_attempt_id", "attempt_count",
			}),
		}).Create(&state).Error
	})

	if duplicate {
		return true, nil
	}
	return false, err
}

func (r *lessonScoreRepository) GetState(ctx context.Context, userID, lessonID uuid.UUID) (*entity.LessonScoreState, error) {
	var state entity.LessonScoreState
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}
