package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmquan2200/edufinai/internal/entity"
	"github.com/vmquan2200/edufinai/pkg/apperror"
)

// fakeRepo mirrors the storage contract in memory: attempt ids are unique,
// state mutation happens under a lock.
type fakeRepo struct {
	mu       sync.Mutex
	attempts map[string]*entity.AttemptRecord
	states   map[string]*entity.LessonScoreState
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		attempts: make(map[string]*entity.AttemptRecord),
		states:   make(map[string]*entity.LessonScoreState),
	}
}

func stateKey(userID, lessonID uuid.UUID) string {
	return userID.String() + "/" + lessonID.String()
}

func (f *fakeRepo) WithAttempt(_ context.Context, att *entity.AttemptRecord, apply func(state *entity.LessonScoreState)) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.attempts[att.AttemptID]; exists {
		return true, nil
	}
	f.attempts[att.AttemptID] = att

	key := stateKey(att.UserID, att.LessonID)
	state, ok := f.states[key]
	if !ok {
		state = &entity.LessonScoreState{UserID: att.UserID, LessonID: att.LessonID}
		f.states[key] = state
	}
	apply(state)
	return false, nil
}

func (f *fakeRepo) GetState(_ context.Context, userID, lessonID uuid.UUID) (*entity.LessonScoreState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.states[stateKey(userID, lessonID)]; ok {
		return s, nil
	}
	return nil, apperror.ErrNotFound
}

func TestProcessAttempt_Validation(t *testing.T) {
	svc := NewLessonScoreService(newFakeRepo())
	userID := uuid.New()

	_, err := svc.ProcessAttempt(context.Background(), userID, uuid.New(), "  ", 40)
	assert.ErrorIs(t, err, apperror.ErrInvalidAttempt)

	_, err = svc.ProcessAttempt(context.Background(), userID, uuid.Nil, "a1", 40)
	assert.ErrorIs(t, err, apperror.ErrInvalidAttempt)
}

func TestProcessAttempt_FirstAttempt(t *testing.T) {
	repo := newFakeRepo()
	svc := NewLessonScoreService(repo)
	userID, lessonID := uuid.New(), uuid.New()

	res, err := svc.ProcessAttempt(context.Background(), userID, lessonID, "a1", 40)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 40, res.DeltaScore)
	assert.Equal(t, 0, res.PreviousBest)

	state, err := repo.GetState(context.Background(), userID, lessonID)
	require.NoError(t, err)
	assert.Equal(t, 40, state.BestScore)
	assert.Equal(t, 40, state.LastScore)
	assert.Equal(t, "a1", state.LastAttemptID)
	assert.Equal(t, 1, state.AttemptCount)
}

func TestProcessAttempt_DuplicateIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	svc := NewLessonScoreService(repo)
	userID, lessonID := uuid.New(), uuid.New()

	_, err := svc.ProcessAttempt(context.Background(), userID, lessonID, "a1", 40)
	require.NoError(t, err)

	res, err := svc.ProcessAttempt(context.Background(), userID, lessonID, "a1", 99)
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, 0, res.DeltaScore)

	state, err := repo.GetState(context.Background(), userID, lessonID)
	require.NoError(t, err)
	assert.Equal(t, 40, state.BestScore, "replay must not mutate state")
	assert.Equal(t, 1, state.AttemptCount)
}

func TestProcessAttempt_DeltaOnlyOnImprovement(t *testing.T) {
	repo := newFakeRepo()
	svc := NewLessonScoreService(repo)
	userID, lessonID := uuid.New(), uuid.New()

	res, err := svc.ProcessAttempt(context.Background(), userID, lessonID, "a1", 40)
	require.NoError(t, err)
	assert.Equal(t, 40, res.DeltaScore)

	// Regression: recorded but no delta and best unchanged.
	res, err = svc.ProcessAttempt(context.Background(), userID, lessonID, "a2", 25)
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	assert.Equal(t, 0, res.DeltaScore)
	assert.Equal(t, 40, res.PreviousBest)

	state, err := repo.GetState(context.Background(), userID, lessonID)
	require.NoError(t, err)
	assert.Equal(t, 40, state.BestScore)
	assert.Equal(t, 25, state.LastScore)
	assert.Equal(t, "a2", state.LastAttemptID)
	assert.Equal(t, 2, state.AttemptCount)

	// Improvement rewards only the difference.
	res, err = svc.ProcessAttempt(context.Background(), userID, lessonID, "a3", 50)
	require.NoError(t, err)
	assert.Equal(t, 10, res.DeltaScore)
	assert.Equal(t, 40, res.PreviousBest)

	state, _ = repo.GetState(context.Background(), userID, lessonID)
	assert.Equal(t, 50, state.BestScore)
	assert.Equal(t, 3, state.AttemptCount)
}

func TestProcessAttempt_NegativeRawClamped(t *testing.T) {
	svc := NewLessonScoreService(newFakeRepo())
	res, err := svc.ProcessAttempt(context.Background(), uuid.New(), uuid.New(), "a1", -10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.RawScore)
	assert.Equal(t, 0, res.DeltaScore)
}
