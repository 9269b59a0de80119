package repository

import (
	"context"
	"errors"

	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/wferr"
	"gorm.io/gorm"
)

// RFQRepository 询价/报价仓库
type RFQRepository struct {
	db *gorm.DB
}

func NewRFQRepository(db *gorm.DB) *RFQRepository {
	return &RFQRepository{db: db}
}

// CreateRFQ 创建询价单
func (r *RFQRepository) CreateRFQ(ctx context.Context, rfq *entity.RFQ) error {
	return r.db.WithContext(ctx).Create(rfq).Error
}

// FindOpenByPR 查询某PR当前进行中的询价单
func (r *RFQRepository) FindOpenByPR(ctx context.Context, prID string) (*entity.RFQ, error) {
	var rfq entity.RFQ
	err := r.db.WithContext(ctx).
		Where("pr_id = ? AND status = ?", prID, entity.RFQStatusOpen).
		Order("created_at DESC").
		First(&rfq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wferr.E(wferr.KindNotFound, "该采购申请没有进行中的询价单").WithID("pr_id", prID)
		}
		return nil, err
	}
	return &rfq, nil
}

// FindRFQByID 根据ID查找询价单
func (r *RFQRepository) FindRFQByID(ctx context.Context, id string) (*entity.RFQ, error) {
	var rfq entity.RFQ
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rfq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wferr.E(wferr.KindNotFound, "询价单不存在").WithID("rfq_id", id)
		}
		return nil, err
	}
	return &rfq, nil
}

// CreateQuotation 创建报价（含行项）
func (r *RFQRepository) CreateQuotation(ctx context.Context, q *entity.Quotation) error {
	return r.db.WithContext(ctx).Create(q).Error
}

// FindQuotationByID 根据ID查找报价
func (r *RFQRepository) FindQuotationByID(ctx context.Context, id string) (*entity.Quotation, error) {
	var q entity.Quotation
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&q).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wferr.E(wferr.KindNotFound, "报价不存在").WithID("quotation_id", id)
		}
		return nil, err
	}
	return &q, nil
}

// ListQuotationsByRFQ 查询询价单下全部报价，按创建时间稳定排序
func (r *RFQRepository) ListQuotationsByRFQ(ctx context.Context, rfqID string) ([]entity.Quotation, error) {
	var items []entity.Quotation
	err := r.db.WithContext(ctx).
		Where("rfq_id = ?", rfqID).
		Order("created_at ASC, id ASC").
		Find(&items).Error
	return items, err
}

// UpdateQuotationScore 更新报价得分与推荐标记
func (r *RFQRepository) UpdateQuotationScore(ctx context.Context, id string, score *float64, recommended bool) error {
	return r.db.WithContext(ctx).
		Model(&entity.Quotation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"score": score, "is_recommended": recommended}).Error
}

// UpdateQuotationStatus 更新报价状态
func (r *RFQRepository) UpdateQuotationStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).
		Model(&entity.Quotation{}).
		Where("id = ?", id).
		Update("status", status).Error
}
