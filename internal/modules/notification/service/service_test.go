package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vmquan2200/edufinai/internal/entity"
	"github.com/vmquan2200/edufinai/pkg/apperror"
)

// fakeNotificationRepo mirrors the repository's ownership semantics: an
// update only matches when both the id and the user id line up.
type fakeNotificationRepo struct {
	rows map[uuid.UUID]*entity.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{rows: make(map[uuid.UUID]*entity.Notification)}
}

func (f *fakeNotificationRepo) Create(_ context.Context, n *entity.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	f.rows[n.ID] = n
	return nil
}

func (f *fakeNotificationRepo) GetByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error) {
	var out []entity.Notification
	for _, n := range f.rows {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) MarkAsRead(_ context.Context, userID, id uuid.UUID) error {
	n, ok := f.rows[id]
	if !ok || n.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	n.IsRead = true
	return nil
}

func (f *fakeNotificationRepo) CountUnread(_ context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	for _, n := range f.rows {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func TestMarkAsRead_OwnNotification(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, nil, 0)

	owner := uuid.New()
	notif := &entity.Notification{UserID: owner, Type: "badge_earned", Title: "Badge earned"}
	require.NoError(t, repo.Create(context.Background(), notif))

	require.NoError(t, svc.MarkAsRead(context.Background(), owner, notif.ID))
	assert.True(t, repo.rows[notif.ID].IsRead)

	count, err := svc.UnreadCount(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestMarkAsRead_ForeignNotificationNotFound(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, nil, 0)

	owner := uuid.New()
	other := uuid.New()
	notif := &entity.Notification{UserID: owner, Type: "challenge_completed", Title: "Challenge done"}
	require.NoError(t, repo.Create(context.Background(), notif))

	err := svc.MarkAsRead(context.Background(), other, notif.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound, "another user's id must not leak or mutate the row")
	assert.False(t, repo.rows[notif.ID].IsRead)
}

func TestMarkAsRead_UnknownID(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, nil, 0)

	err := svc.MarkAsRead(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
