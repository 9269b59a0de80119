package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NotificationSink 实时推送通道（尽力而为），由SSE Hub实现
type NotificationSink interface {
	Push(userID, eventType string, data []byte)
}

// 突发去重快路径的key有效期，权威去重以库内未读唯一性为准
const notifDedupTTL = 10 * time.Minute

// NotificationService 通知服务：落库、去重、推送、生命周期
type NotificationService struct {
	repo   *repository.NotificationRepository
	rdb    *redis.Client // 可为nil，降级为纯DB去重
	sink   NotificationSink
	logger *zap.Logger
}

func NewNotificationService(repo *repository.NotificationRepository, rdb *redis.Client, sink NotificationSink, logger *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, rdb: rdb, sink: sink, logger: logger}
}

// Dispatch 异步发送通知。失败只记日志，绝不影响已提交的业务变更。
func (s *NotificationService) Dispatch(userID, notifType, title, content, relatedID, relatedType string) {
	go func() {
		ctx := context.Background()
		if err := s.deliver(ctx, userID, notifType, title, content, relatedID, relatedType); err != nil {
			s.logger.Warn("通知投递失败",
				zap.String("user_id", userID),
				zap.String("type", notifType),
				zap.String("related_id", relatedID),
				zap.Error(err))
		}
	}()
}

// DispatchAll 给一组用户发送同一通知
func (s *NotificationService) DispatchAll(users []entity.User, notifType, title, content, relatedID, relatedType string) {
	for _, u := range users {
		s.Dispatch(u.ID, notifType, title, content, relatedID, relatedType)
	}
}

func (s *NotificationService) deliver(ctx context.Context, userID, notifType, title, content, relatedID, relatedType string) error {
	// redis SETNX 快路径：抑制突发重复，redis不可用时直接走DB
	if s.rdb != nil {
		key := fmt.Sprintf("wf:notif:%s:%s:%s:%s", userID, relatedType, relatedID, notifType)
		ok, err := s.rdb.SetNX(ctx, key, 1, notifDedupTTL).Result()
		if err == nil && !ok {
			return nil
		}
	}

	// 权威去重：同用户同对象同类型的未读通知只存在一条
	exists, err := s.repo.UnreadExists(ctx, userID, relatedID, relatedType, notifType)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	n := &entity.Notification{
		ID:          newID(),
		UserID:      userID,
		Type:        notifType,
		Title:       title,
		Content:     content,
		RelatedID:   relatedID,
		RelatedType: relatedType,
		Status:      entity.NotificationStatusUnread,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}

	if s.sink != nil {
		data, err := json.Marshal(n)
		if err == nil {
			s.sink.Push(userID, "notification", data)
		}
	}
	return nil
}

// List 用户通知列表
func (s *NotificationService) List(ctx context.Context, userID string, onlyUnread bool, page, pageSize int) ([]entity.Notification, int64, error) {
	return s.repo.ListByUser(ctx, userID, onlyUnread, page, pageSize)
}

// MarkRead 未读→已读
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) (bool, error) {
	return s.repo.MarkRead(ctx, userID, notificationID)
}

// ResolveFor 用户对某对象采取动作后归档其相关通知，失败只记日志
func (s *NotificationService) ResolveFor(userID, relatedID, relatedType string) {
	go func() {
		if err := s.repo.ResolveFor(context.Background(), userID, relatedID, relatedType); err != nil {
			s.logger.Warn("通知归档失败",
				zap.String("user_id", userID),
				zap.String("related_id", relatedID),
				zap.Error(err))
		}
	}()
}
