package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/wferr"
	"gorm.io/gorm"
)

// PRRepository 采购申请仓库
type PRRepository struct {
	db *gorm.DB
}

func NewPRRepository(db *gorm.DB) *PRRepository {
	return &PRRepository{db: db}
}

// FindAll 查询采购申请列表
func (r *PRRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseRequest, int64, error) {
	var items []entity.PurchaseRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.PurchaseRequest{}).Where("deleted = ?", false)

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if dept := filters["department_code"]; dept != "" {
		query = query.Where("department_code = ?", dept)
	}
	if requestor := filters["requestor_id"]; requestor != "" {
		query = query.Where("requestor_id = ?", requestor)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("title ILIKE ? OR pr_number ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_no ASC")
		}).
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByStatuses 按状态集合查询（待办列表）
func (r *PRRepository) FindByStatuses(ctx context.Context, statuses []string) ([]entity.PurchaseRequest, error) {
	var items []entity.PurchaseRequest
	err := r.db.WithContext(ctx).
		Where("deleted = ? AND status IN ?", false, statuses).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// FindPendingForManager 直属上级为该用户的待一级审批PR
func (r *PRRepository) FindPendingForManager(ctx context.Context, managerID string) ([]entity.PurchaseRequest, error) {
	var items []entity.PurchaseRequest
	err := r.db.WithContext(ctx).
		Where("deleted = ? AND status = ? AND requestor_id IN (SELECT id FROM wf_users WHERE manager_id = ?)",
			false, entity.PRStatusManagerPending, managerID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// FindPendingForBranch 某分支机构的待二级审批PR
func (r *PRRepository) FindPendingForBranch(ctx context.Context, branchCode string) ([]entity.PurchaseRequest, error) {
	var items []entity.PurchaseRequest
	err := r.db.WithContext(ctx).
		Where("deleted = ? AND status = ? AND branch_code = ?",
			false, entity.PRStatusBranchManagerPending, branchCode).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// FindPendingForBuyer 分派给该采购员且仍在采购阶段的PR
func (r *PRRepository) FindPendingForBuyer(ctx context.Context, buyerID string) ([]entity.PurchaseRequest, error) {
	var items []entity.PurchaseRequest
	err := r.db.WithContext(ctx).
		Where("deleted = ? AND status IN ? AND id IN (SELECT pr_id FROM wf_assignments WHERE buyer_id = ? AND deleted = false)",
			false,
			[]string{entity.PRStatusAssignedToBuyer, entity.PRStatusRFQInProgress, entity.PRStatusQuotationReceived},
			buyerID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// FindByID 根据ID查找采购申请（含行项，已删除的视为不存在）
func (r *PRRepository) FindByID(ctx context.Context, id string) (*entity.PurchaseRequest, error) {
	var pr entity.PurchaseRequest
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_no ASC")
		}).
		Where("id = ? AND deleted = ?", id, false).
		First(&pr).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wferr.E(wferr.KindNotFound, "采购申请不存在").WithID("pr_id", id)
		}
		return nil, err
	}
	return &pr, nil
}

// Create 创建采购申请
func (r *PRRepository) Create(ctx context.Context, pr *entity.PurchaseRequest) error {
	return r.db.WithContext(ctx).Create(pr).Error
}

// Update 更新采购申请
func (r *PRRepository) Update(ctx context.Context, pr *entity.PurchaseRequest) error {
	return r.db.WithContext(ctx).Save(pr).Error
}

// SoftDelete 软删除（释放其序列号供回填）
func (r *PRRepository) SoftDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&entity.PurchaseRequest{}).
		Where("id = ?", id).
		Update("deleted", true).Error
}

// ReplaceItems 整体替换行项（仅草稿/补充信息阶段允许）
func (r *PRRepository) ReplaceItems(ctx context.Context, tx *gorm.DB, prID string, items []entity.PurchaseRequestItem) error {
	if err := tx.WithContext(ctx).Where("pr_id = ?", prID).Delete(&entity.PurchaseRequestItem{}).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].PRID = prID
		if err := tx.WithContext(ctx).Create(&items[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// ListSequences 列出指定前缀下非删除PR已占用的4位序号
func (r *PRRepository) ListSequences(ctx context.Context, prefix string) ([]int, error) {
	var numbers []string
	err := r.db.WithContext(ctx).
		Model(&entity.PurchaseRequest{}).
		Where("pr_number LIKE ? AND deleted = ?", prefix+"%", false).
		Pluck("pr_number", &numbers).Error
	if err != nil {
		return nil, err
	}
	seqs := make([]int, 0, len(numbers))
	for _, n := range numbers {
		suffix := strings.TrimPrefix(n, prefix)
		if seq, err := strconv.Atoi(suffix); err == nil {
			seqs = append(seqs, seq)
		}
	}
	return seqs, nil
}

// SequenceExists 指定编号是否已被非删除PR占用
func (r *PRRepository) SequenceExists(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&entity.PurchaseRequest{}).
		Where("pr_number = ? AND deleted = ?", number, false).
		Count(&count).Error
	return count > 0, err
}

// TransitionStatus 带前置状态条件的守卫更新。
// 影响0行说明当前状态已不是from（并发输家），返回InvalidStateTransition。
func TransitionStatus(tx *gorm.DB, prID, from, to string, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	result := tx.Model(&entity.PurchaseRequest{}).
		Where("id = ? AND status = ? AND deleted = ?", prID, from, false).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return wferr.E(wferr.KindInvalidTransition,
			fmt.Sprintf("采购申请状态已变化，无法从 %s 转换到 %s", from, to)).
			WithID("pr_id", prID)
	}
	return nil
}
