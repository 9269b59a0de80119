package service

import (
	"context"
	"fmt"
	"time"

	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/repository"
	"github.com/oakline/procure/internal/workflow/wferr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RFQService 询价/报价服务
type RFQService struct {
	db        *gorm.DB
	repos     *repository.Repositories
	directory repository.DirectoryLookup
	notifier  *NotificationService
	logger    *zap.Logger
}

func NewRFQService(db *gorm.DB, repos *repository.Repositories, directory repository.DirectoryLookup, notifier *NotificationService, logger *zap.Logger) *RFQService {
	return &RFQService{db: db, repos: repos, directory: directory, notifier: notifier, logger: logger}
}

// OpenRFQ 发起询价：ASSIGNED_TO_BUYER → RFQ_IN_PROGRESS，仅被分派的采购员可发起
func (s *RFQService) OpenRFQ(ctx context.Context, buyerID, prID, notes string) (*entity.RFQ, error) {
	pr, err := s.repos.PR.FindByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	target, err := TargetStatus(pr.Status, ActionOpenRFQ)
	if err != nil {
		return nil, err
	}
	if err := s.assignedBuyerGuard(ctx, buyerID, prID); err != nil {
		return nil, err
	}

	rfq := &entity.RFQ{
		ID:        newID(),
		PRID:      prID,
		CreatedBy: buyerID,
		Status:    entity.RFQStatusOpen,
		Notes:     notes,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rfq).Error; err != nil {
			return err
		}
		if err := repository.TransitionStatus(tx, prID, pr.Status, target, nil); err != nil {
			return err
		}
		return writeAudit(tx, entity.RelatedTypePurchaseRequest, prID, string(ActionOpenRFQ), pr.Status, target, buyerID, rfq.ID)
	})
	if err != nil {
		return nil, err
	}
	return rfq, nil
}

// QuotationItemInput 报价行项入参
type QuotationItemInput struct {
	PRItemID    string  `json:"pr_item_id" binding:"required"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity" binding:"required"`
	UnitPrice   float64 `json:"unit_price"`
}

// QuotationReq 报价入参
type QuotationReq struct {
	SupplierID   string               `json:"supplier_id" binding:"required"`
	SupplierName string               `json:"supplier_name"`
	TotalAmount  float64              `json:"total_amount" binding:"required"`
	Currency     string               `json:"currency"`
	LeadTimeDays *int                 `json:"lead_time_days"`
	PaymentTerms string               `json:"payment_terms"`
	Warranty     string               `json:"warranty"`
	ValidUntil   *time.Time           `json:"valid_until"`
	Items        []QuotationItemInput `json:"items"`
}

// AddQuotation 录入供应商报价并重算推荐分。
// 有效报价（valid/pending）达到2份时，PR自动 RFQ_IN_PROGRESS → QUOTATION_RECEIVED。
func (s *RFQService) AddQuotation(ctx context.Context, buyerID, rfqID string, req QuotationReq) (*entity.Quotation, error) {
	rfq, err := s.repos.RFQ.FindRFQByID(ctx, rfqID)
	if err != nil {
		return nil, err
	}
	if rfq.Status != entity.RFQStatusOpen {
		return nil, wferr.E(wferr.KindValidation, "询价单已关闭，无法录入报价").WithID("rfq_id", rfqID)
	}
	if err := s.assignedBuyerGuard(ctx, buyerID, rfq.PRID); err != nil {
		return nil, err
	}
	if req.TotalAmount <= 0 {
		return nil, wferr.E(wferr.KindValidation, "报价金额必须为正数")
	}

	pr, err := s.repos.PR.FindByID(ctx, rfq.PRID)
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = pr.Currency
	}
	q := &entity.Quotation{
		ID:           newID(),
		RFQID:        rfqID,
		SupplierID:   req.SupplierID,
		SupplierName: req.SupplierName,
		TotalAmount:  req.TotalAmount,
		Currency:     currency,
		LeadTimeDays: req.LeadTimeDays,
		PaymentTerms: req.PaymentTerms,
		Warranty:     req.Warranty,
		ValidUntil:   req.ValidUntil,
		Status:       entity.QuotationStatusPending,
	}
	for _, in := range req.Items {
		q.Items = append(q.Items, entity.QuotationItem{
			ID:          newID(),
			QuotationID: q.ID,
			PRItemID:    in.PRItemID,
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Amount:      in.Quantity * in.UnitPrice,
		})
	}

	if err := s.repos.RFQ.CreateQuotation(ctx, q); err != nil {
		return nil, err
	}

	eligible, err := s.rescore(ctx, rfqID)
	if err != nil {
		return nil, err
	}

	// 报价齐备：自动进入待选标
	if eligible >= 2 && pr.Status == entity.PRStatusRFQInProgress {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := repository.TransitionStatus(tx, pr.ID, entity.PRStatusRFQInProgress, entity.PRStatusQuotationReceived, nil); err != nil {
				return err
			}
			return writeAudit(tx, entity.RelatedTypePurchaseRequest, pr.ID, string(ActionReceiveQuotations),
				entity.PRStatusRFQInProgress, entity.PRStatusQuotationReceived, buyerID, "")
		})
		if err != nil {
			// 并发下另一次录入已完成转换，不视为失败
			if !wferr.IsKind(err, wferr.KindInvalidTransition) {
				return nil, err
			}
		} else {
			leaders, lerr := s.directory.ResolveBuyerLeaders(ctx)
			if lerr == nil {
				s.notifier.DispatchAll(leaders, entity.NotificationTypeQuotationReady,
					"报价齐备待选标", fmt.Sprintf("采购申请 %s 的报价已齐备，请选标", pr.PRNumber),
					pr.ID, entity.RelatedTypePurchaseRequest)
			}
		}
	}

	return s.repos.RFQ.FindQuotationByID(ctx, q.ID)
}

// SetQuotationStatus 标记报价有效/作废并重算推荐分。
// 已进入QUOTATION_RECEIVED的PR不因作废而回退；有效报价不足2份时仅清分。
func (s *RFQService) SetQuotationStatus(ctx context.Context, buyerID, quotationID, status string) (*entity.Quotation, error) {
	if status != entity.QuotationStatusValid && status != entity.QuotationStatusInvalid {
		return nil, wferr.E(wferr.KindValidation, "报价状态只能标记为 valid 或 invalid")
	}
	q, err := s.repos.RFQ.FindQuotationByID(ctx, quotationID)
	if err != nil {
		return nil, err
	}
	if q.Status == entity.QuotationStatusSelected {
		return nil, wferr.E(wferr.KindInvalidTransition, "已选中的报价不能变更状态").
			WithID("quotation_id", quotationID)
	}
	rfq, err := s.repos.RFQ.FindRFQByID(ctx, q.RFQID)
	if err != nil {
		return nil, err
	}
	if err := s.assignedBuyerGuard(ctx, buyerID, rfq.PRID); err != nil {
		return nil, err
	}

	if err := s.repos.RFQ.UpdateQuotationStatus(ctx, quotationID, status); err != nil {
		return nil, err
	}
	if _, err := s.rescore(ctx, q.RFQID); err != nil {
		return nil, err
	}
	return s.repos.RFQ.FindQuotationByID(ctx, quotationID)
}

// GetRFQForPR 查询PR进行中的询价单及其报价
func (s *RFQService) GetRFQForPR(ctx context.Context, prID string) (*entity.RFQ, []entity.Quotation, error) {
	rfq, err := s.repos.RFQ.FindOpenByPR(ctx, prID)
	if err != nil {
		return nil, nil, err
	}
	quotations, err := s.repos.RFQ.ListQuotationsByRFQ(ctx, rfq.ID)
	if err != nil {
		return nil, nil, err
	}
	return rfq, quotations, nil
}

// rescore 重算询价单全部报价的推荐分并落库，返回参与评分的报价数
func (s *RFQService) rescore(ctx context.Context, rfqID string) (int, error) {
	quotations, err := s.repos.RFQ.ListQuotationsByRFQ(ctx, rfqID)
	if err != nil {
		return 0, err
	}
	results := ScoreQuotations(quotations)
	eligible := 0
	for i, q := range quotations {
		if q.Status == entity.QuotationStatusValid || q.Status == entity.QuotationStatusPending {
			eligible++
		}
		r := results[i]
		changed := r.IsRecommended != q.IsRecommended ||
			(r.Score == nil) != (q.Score == nil) ||
			(r.Score != nil && q.Score != nil && *r.Score != *q.Score)
		if changed {
			if err := s.repos.RFQ.UpdateQuotationScore(ctx, q.ID, r.Score, r.IsRecommended); err != nil {
				return 0, err
			}
		}
	}
	return eligible, nil
}

// assignedBuyerGuard 调用者必须是该PR的被分派采购员
func (s *RFQService) assignedBuyerGuard(ctx context.Context, buyerID, prID string) error {
	ok, err := s.repos.Assignment.ExistsForBuyer(ctx, prID, buyerID)
	if err != nil {
		return err
	}
	if !ok {
		return wferr.E(wferr.KindForbidden, "只有被分派的采购员可以操作询价").
			WithID("pr_id", prID).WithID("user_id", buyerID)
	}
	return nil
}
