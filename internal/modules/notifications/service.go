package notifications

import (
	"context"
	"encoding/json"

	"github.com/linkora/core/internal/models"
	"github.com/linkora/core/internal/modules/gateway/notify"
	"gorm.io/gorm"
)

// Service persists durable notification records. Callers record first, then
// ask the dispatcher for a live push; a user who was offline finds the
// record here. Listing and read-state UI belong to the domain layer, which
// queries the model directly.
type Service struct {
	db *gorm.DB
}

// NewService creates the recorder.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Record writes the durable row for a notification about to be dispatched.
func (s *Service) Record(ctx context.Context, userID string, n notify.Notification) (*models.NotificationModel, error) {
	data := ""
	if n.Data != nil {
		raw, err := json.Marshal(n.Data)
		if err != nil {
			return nil, err
		}
		data = string(raw)
	}

	rec := &models.NotificationModel{
		UserID:    userID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Data:      data,
		ActionURL: n.ActionURL,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkRead flags one of the user's notifications as read. Returns false when
// no matching unread row exists.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.NotificationModel{}).
		Where("id = ? AND user_id = ? AND `read` = ?", notificationID, userID, false).
		Update("read", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
