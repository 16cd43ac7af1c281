package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/vmquan2200/edufinai/internal/entity"
	notifRepo "github.com/vmquan2200/edufinai/internal/modules/notification/repository"
	"github.com/vmquan2200/edufinai/pkg/apperror"
)

type NotificationService interface {
	// Notify persists the notification and publishes it on the user's Redis
	// channel. Callers treat it as fire-and-forget; an error here is logged
	// by the caller, never propagated further.
	Notify(ctx context.Context, userID uuid.UUID, notifType, title, message string, entityID uuid.UUID, metadata map[string]interface{}) error

	GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error)
	// MarkAsRead only touches notifications owned by userID; anyone else's
	// id comes back as apperror.ErrNotFound.
	MarkAsRead(ctx context.Context, userID, id uuid.UUID) error
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

type notificationService struct {
	repo        notifRepo.NotificationRepository
	redisClient *redis.Client
	timeout     time.Duration
}

func NewNotificationService(repo notifRepo.NotificationRepository, redisClient *redis.Client, timeout time.Duration) NotificationService {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &notificationService{
		repo:        repo,
		redisClient: redisClient,
		timeout:     timeout,
	}
}

func (s *notificationService) Notify(ctx context.Context, userID uuid.UUID, notifType, title, message string, entityID uuid.UUID, metadata map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var metaJSON string
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			metaJSON = string(raw)
		}
	}

	notification := &entity.Notification{
		UserID:   userID,
		EntityID: entityID,
		Type:     notifType,
		Title:    title,
		Message:  message,
		Metadata: metaJSON,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}

	// Best-effort realtime fan-out for connected clients.
	if s.redisClient != nil {
		channel := fmt.Sprintf("user_notifications:%s", userID.String())
		if payload, err := json.Marshal(notification); err == nil {
			s.redisClient.Publish(ctx, channel, payload)
		}
	}

	return nil
}

func (s *notificationService) GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error) {
	return s.repo.GetByUserID(ctx, userID, limit, offset)
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.MarkAsRead(ctx, userID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.ErrNotFound
		}
		return err
	}
	return nil
}

func (s *notificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}
