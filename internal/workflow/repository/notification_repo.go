package repository

import (
	"context"
	"time"

	"github.com/oakline/procure/internal/workflow/entity"
	"gorm.io/gorm"
)

// NotificationRepository 通知仓库
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create 写入通知
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// UnreadExists 同一用户同一关联对象同一类型是否已有未读通知
func (r *NotificationRepository) UnreadExists(ctx context.Context, userID, relatedID, relatedType, notifType string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("user_id = ? AND related_id = ? AND related_type = ? AND type = ? AND status = ?",
			userID, relatedID, relatedType, notifType, entity.NotificationStatusUnread).
		Count(&count).Error
	return count > 0, err
}

// ListByUser 查询用户通知列表
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, onlyUnread bool, page, pageSize int) ([]entity.Notification, int64, error) {
	var items []entity.Notification
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Notification{}).Where("user_id = ?", userID)
	if onlyUnread {
		query = query.Where("status = ?", entity.NotificationStatusUnread)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&items).Error
	return items, total, err
}

// MarkRead 未读→已读
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, notificationID string) (bool, error) {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("id = ? AND user_id = ? AND status = ?", notificationID, userID, entity.NotificationStatusUnread).
		Updates(map[string]interface{}{"status": entity.NotificationStatusRead, "read_at": &now})
	return result.RowsAffected > 0, result.Error
}

// ResolveFor 用户对某对象采取动作后，归档其未读/已读通知
func (r *NotificationRepository) ResolveFor(ctx context.Context, userID, relatedID, relatedType string) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&entity.Notification{}).
		Where("user_id = ? AND related_id = ? AND related_type = ? AND status IN ?",
			userID, relatedID, relatedType,
			[]string{entity.NotificationStatusUnread, entity.NotificationStatusRead}).
		Updates(map[string]interface{}{"status": entity.NotificationStatusResolved, "resolved_at": &now}).Error
}
