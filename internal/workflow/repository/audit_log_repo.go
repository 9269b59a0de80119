package repository

import (
	"context"

	"github.com/oakline/procure/internal/workflow/entity"
	"gorm.io/gorm"
)

// AuditLogRepository 审计日志仓库
type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Create 写入审计日志
func (r *AuditLogRepository) Create(ctx context.Context, log *entity.AuditLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

// ListByEntity 查询某对象的审计轨迹
func (r *AuditLogRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]entity.AuditLog, error) {
	var items []entity.AuditLog
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}
