package repository

import (
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories 工作流仓库集合
type Repositories struct {
	PR           *PRRepository
	Approval     *ApprovalRepository
	Assignment   *AssignmentRepository
	RFQ          *RFQRepository
	Budget       *BudgetRepository
	Notification *NotificationRepository
	AuditLog     *AuditLogRepository
	Directory    *DirectoryRepository
}

// NewRepositories 创建工作流仓库集合
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		PR:           NewPRRepository(db),
		Approval:     NewApprovalRepository(db),
		Assignment:   NewAssignmentRepository(db),
		RFQ:          NewRFQRepository(db),
		Budget:       NewBudgetRepository(db),
		Notification: NewNotificationRepository(db),
		AuditLog:     NewAuditLogRepository(db),
		Directory:    NewDirectoryRepository(db, logger),
	}
}
