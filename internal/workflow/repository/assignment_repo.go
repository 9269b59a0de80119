package repository

import (
	"context"

	"github.com/oakline/procure/internal/workflow/entity"
	"gorm.io/gorm"
)

// AssignmentRepository 分派仓库
type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListActiveByPR 查询某PR全部有效分派
func (r *AssignmentRepository) ListActiveByPR(ctx context.Context, prID string) ([]entity.Assignment, error) {
	var items []entity.Assignment
	err := r.db.WithContext(ctx).
		Where("pr_id = ? AND deleted = ?", prID, false).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// ExistsForBuyer 某采购员是否已有该PR的有效分派
func (r *AssignmentRepository) ExistsForBuyer(ctx context.Context, prID, buyerID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.Assignment{}).
		Where("pr_id = ? AND buyer_id = ? AND deleted = ?", prID, buyerID, false).
		Count(&count).Error
	return count > 0, err
}
