package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"edvora.com/lms/internal/entity"
	notifRepo "edvora.com/lms/internal/modules/notification/repository"
	"edvora.com/lms/pkg/apperror"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// PubSubChannel carries freshly created notifications to the admin WebSocket
// stream.
const PubSubChannel = "admin_notifications"

// RetentionWindow is how long read notifications are kept before the daily
// prune job removes them.
const RetentionWindow = 30 * 24 * time.Hour

type NotificationService interface {
	CreateNotification(ctx context.Context, notification *entity.Notification) error
	GetNotifications(ctx context.Context) ([]entity.Notification, error)
	MarkAsRead(ctx context.Context, id uuid.UUID) ([]entity.Notification, error)
	PruneRead(ctx context.Context) (int64, error)
}

type notificationService struct {
	repo        notifRepo.NotificationRepository
	redisClient *redis.Client
	now         func() time.Time
}

func NewNotificationService(repo notifRepo.NotificationRepository, redisClient *redis.Client) NotificationService {
	return &notificationService{
		repo:        repo,
		redisClient: redisClient,
		now:         time.Now,
	}
}

func (s *notificationService) CreateNotification(ctx context.Context, notification *entity.Notification) error {
	if err := s.repo.Create(ctx, notification); err != nil {
		return err
	}

	// Publish to Redis if Redis is available
	if s.redisClient != nil {
		payload, err := json.Marshal(notification)
		if err == nil {
			s.redisClient.Publish(ctx, PubSubChannel, payload)
		}
	}

	return nil
}

func (s *notificationService) GetNotifications(ctx context.Context) ([]entity.Notification, error) {
	return s.repo.FindAll(ctx)
}

// MarkAsRead flips the status and returns the refreshed list, the shape the
// admin dashboard expects back.
func (s *notificationService) MarkAsRead(ctx context.Context, id uuid.UUID) ([]entity.Notification, error) {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("notification not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}

	notification.Status = entity.NotificationRead
	if err := s.repo.Update(ctx, notification); err != nil {
		return nil, err
	}

	return s.repo.FindAll(ctx)
}

// PruneRead deletes read notifications older than the retention window.
func (s *notificationService) PruneRead(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-RetentionWindow)
	deleted, err := s.repo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.Printf("pruned %d read notifications", deleted)
	}
	return deleted, nil
}
