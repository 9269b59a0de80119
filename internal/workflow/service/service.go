package service

import (
	"strings"

	"github.com/google/uuid"
	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/repository"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Services 工作流服务集合
type Services struct {
	Sequence     *SequenceAllocator
	PR           *PRService
	Approval     *ApprovalService
	Assignment   *AssignmentService
	RFQ          *RFQService
	Budget       *BudgetService
	Notification *NotificationService
}

// NewServices 创建工作流服务集合
func NewServices(db *gorm.DB, repos *repository.Repositories, directory repository.DirectoryLookup, rdb *redis.Client, sink NotificationSink, logger *zap.Logger) *Services {
	notifier := NewNotificationService(repos.Notification, rdb, sink, logger)
	allocator := NewSequenceAllocator(repos.PR)
	return &Services{
		Sequence:     allocator,
		PR:           NewPRService(db, repos, directory, allocator, notifier, logger),
		Approval:     NewApprovalService(db, repos, directory, notifier, logger),
		Assignment:   NewAssignmentService(db, repos, directory, notifier, logger),
		RFQ:          NewRFQService(db, repos, directory, notifier, logger),
		Budget:       NewBudgetService(db, repos, directory, notifier, logger),
		Notification: notifier,
	}
}

// newID 32位无连字符ID
func newID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// writeAudit 在业务事务内写入前后快照审计行
func writeAudit(tx *gorm.DB, entityType, entityID, action, from, to, operatorID, detail string) error {
	return tx.Create(&entity.AuditLog{
		ID:         newID(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		OperatorID: operatorID,
		Detail:     detail,
	}).Error
}
