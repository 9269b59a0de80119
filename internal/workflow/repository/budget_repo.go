package repository

import (
	"context"
	"errors"

	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/wferr"
	"gorm.io/gorm"
)

// BudgetRepository 超预算例外与选标记录仓库
type BudgetRepository struct {
	db *gorm.DB
}

func NewBudgetRepository(db *gorm.DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

// FindExceptionByID 根据ID查找超预算例外单
func (r *BudgetRepository) FindExceptionByID(ctx context.Context, id string) (*entity.BudgetException, error) {
	var ex entity.BudgetException
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&ex).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wferr.E(wferr.KindNotFound, "超预算例外单不存在").WithID("exception_id", id)
		}
		return nil, err
	}
	return &ex, nil
}

// ListExceptionsByPR 查询某PR的超预算例外历史
func (r *BudgetRepository) ListExceptionsByPR(ctx context.Context, prID string) ([]entity.BudgetException, error) {
	var items []entity.BudgetException
	err := r.db.WithContext(ctx).
		Where("pr_id = ?", prID).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// ListSelectionsByPR 查询某PR的选标历史（含被搁置的历史选标）
func (r *BudgetRepository) ListSelectionsByPR(ctx context.Context, prID string) ([]entity.SupplierSelection, error) {
	var items []entity.SupplierSelection
	err := r.db.WithContext(ctx).
		Where("pr_id = ?", prID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// SelectionExists 某报价是否已被选中过
func (r *BudgetRepository) SelectionExists(ctx context.Context, quotationID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.SupplierSelection{}).
		Where("quotation_id = ?", quotationID).
		Count(&count).Error
	return count > 0, err
}
