package repository

import (
	"context"

	"github.com/oakline/procure/internal/workflow/entity"
	"gorm.io/gorm"
)

// ApprovalRepository 审批记录仓库
type ApprovalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// Create 写入审批记录
func (r *ApprovalRepository) Create(ctx context.Context, a *entity.Approval) error {
	return r.db.WithContext(ctx).Create(a).Error
}

// ListByPR 查询某PR的审批轨迹
func (r *ApprovalRepository) ListByPR(ctx context.Context, prID string) ([]entity.Approval, error) {
	var items []entity.Approval
	err := r.db.WithContext(ctx).
		Where("pr_id = ?", prID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}
