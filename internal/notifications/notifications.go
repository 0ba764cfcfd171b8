// Package notifications stores in-app notifications for users.
package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/beanhop/backend/internal/database"
	svcerrors "github.com/beanhop/backend/internal/errors"
	"github.com/beanhop/backend/pkg/logger"
)

// DefaultLimit is the page size for List.
const DefaultLimit = 50

// Types accepted for a notification.
var Types = []string{"order", "promo", "reward", "gift", "system"}

type CreateRequest struct {
	UserID  string              `json:"user_id"`
	Title   string              `json:"title"`
	Message string              `json:"message"`
	Type    string              `json:"type"`
	Data    database.JSONObject `json:"data"`
}

// Ack is returned by the mark-read operations.
type Ack struct {
	Success bool `json:"success"`
}

type Service struct {
	repo database.NotificationRepository
	log  *logger.Logger
	now  func() time.Time
}

func NewService(repo database.NotificationRepository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log, now: time.Now}
}

// List returns the newest notifications. A datastore failure yields an empty list.
func (s *Service) List(ctx context.Context, userID string, limit int) []database.Notification {
	if limit <= 0 {
		limit = DefaultLimit
	}
	items, err := s.repo.ListNotifications(ctx, userID, limit)
	if err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("user_id", userID).Warn("listing notifications failed")
		return []database.Notification{}
	}
	return items
}

// Create stores an unread notification and returns it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*database.Notification, error) {
	if req.UserID == "" || req.Title == "" || req.Message == "" || req.Type == "" {
		return nil, svcerrors.Validation("user_id, title, message and type are required")
	}

	n := &database.Notification{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Title:     req.Title,
		Message:   req.Message,
		Type:      req.Type,
		Data:      req.Data,
		Read:      false,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}
	return n, nil
}

func (s *Service) MarkRead(ctx context.Context, id string) (*Ack, error) {
	if err := s.repo.MarkNotificationRead(ctx, id); err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}
	return &Ack{Success: true}, nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (*Ack, error) {
	if err := s.repo.MarkAllNotificationsRead(ctx, userID); err != nil {
		return nil, svcerrors.Internal(err.Error(), err)
	}
	return &Ack{Success: true}, nil
}
