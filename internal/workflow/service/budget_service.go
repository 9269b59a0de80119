package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/repository"
	"github.com/oakline/procure/internal/workflow/wferr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BudgetService 选标与超预算例外服务
type BudgetService struct {
	db        *gorm.DB
	repos     *repository.Repositories
	directory repository.DirectoryLookup
	notifier  *NotificationService
	logger    *zap.Logger
}

func NewBudgetService(db *gorm.DB, repos *repository.Repositories, directory repository.DirectoryLookup, notifier *NotificationService, logger *zap.Logger) *BudgetService {
	return &BudgetService{db: db, repos: repos, directory: directory, notifier: notifier, logger: logger}
}

// SelectSupplierReq 选标入参
type SelectSupplierReq struct {
	QuotationID      string `json:"quotation_id" binding:"required"`
	Reason           string `json:"reason" binding:"required"`
	OverBudgetReason string `json:"over_budget_reason"`
}

// SelectSupplier 采购主管选标。
// 报价金额超出PR金额时必须填写超预算理由，生成例外单并转入BUDGET_EXCEPTION；
// 否则直接SUPPLIER_SELECTED。一份报价最多被选中一次。
func (s *BudgetService) SelectSupplier(ctx context.Context, leaderID, prID string, req SelectSupplierReq) (*entity.PurchaseRequest, error) {
	leader, err := s.directory.FindUserByID(ctx, leaderID)
	if err != nil {
		return nil, err
	}
	if leader.Role != entity.RoleBuyerLeader && leader.Role != entity.RoleAdmin {
		return nil, wferr.E(wferr.KindForbidden, "只有采购主管可以选标").WithID("user_id", leaderID)
	}

	pr, err := s.repos.PR.FindByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	target, err := TargetStatus(pr.Status, ActionSelectSupplier)
	if err != nil {
		return nil, err
	}

	q, err := s.repos.RFQ.FindQuotationByID(ctx, req.QuotationID)
	if err != nil {
		return nil, err
	}
	rfq, err := s.repos.RFQ.FindRFQByID(ctx, q.RFQID)
	if err != nil {
		return nil, err
	}
	if rfq.PRID != prID {
		return nil, wferr.E(wferr.KindValidation, "报价不属于该采购申请").
			WithID("pr_id", prID).WithID("quotation_id", req.QuotationID)
	}
	if q.Status != entity.QuotationStatusValid && q.Status != entity.QuotationStatusPending {
		return nil, wferr.E(wferr.KindValidation, "该报价已不可选").WithID("quotation_id", req.QuotationID)
	}

	selected, err := s.repos.Budget.SelectionExists(ctx, req.QuotationID)
	if err != nil {
		return nil, err
	}
	if selected {
		return nil, wferr.E(wferr.KindAlreadySelected, "该报价已被选中过").
			WithID("quotation_id", req.QuotationID)
	}

	overBudget := q.TotalAmount > pr.TotalAmount
	var overPercent float64
	if overBudget {
		if strings.TrimSpace(req.OverBudgetReason) == "" {
			return nil, wferr.E(wferr.KindValidation, "超预算选标必须填写超预算理由").
				WithID("pr_id", prID).WithID("quotation_id", req.QuotationID)
		}
		overPercent = (q.TotalAmount - pr.TotalAmount) / pr.TotalAmount * 100
		target = entity.PRStatusBudgetException
	}

	var exception *entity.BudgetException
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		selection := &entity.SupplierSelection{
			ID:               newID(),
			PRID:             prID,
			QuotationID:      req.QuotationID,
			SelectedBy:       leaderID,
			Reason:           req.Reason,
			OverBudgetReason: req.OverBudgetReason,
		}
		if err := tx.Create(selection).Error; err != nil {
			// 唯一索引兜底并发重复选中
			if strings.Contains(strings.ToLower(err.Error()), "duplicate") ||
				strings.Contains(strings.ToLower(err.Error()), "unique") {
				return wferr.E(wferr.KindAlreadySelected, "该报价已被选中过").
					WithID("quotation_id", req.QuotationID)
			}
			return err
		}

		if overBudget {
			exception = &entity.BudgetException{
				ID:             newID(),
				PRID:           prID,
				QuotationID:    req.QuotationID,
				PRAmount:       pr.TotalAmount,
				PurchaseAmount: q.TotalAmount,
				OverPercent:    overPercent,
				Reason:         req.OverBudgetReason,
				Status:         entity.BudgetExceptionStatusPending,
			}
			if err := tx.Create(exception).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Model(&entity.Quotation{}).
				Where("id = ?", req.QuotationID).
				Update("status", entity.QuotationStatusSelected).Error; err != nil {
				return err
			}
		}

		if err := repository.TransitionStatus(tx, prID, pr.Status, target, nil); err != nil {
			return err
		}
		return writeAudit(tx, entity.RelatedTypePurchaseRequest, prID, string(ActionSelectSupplier), pr.Status, target, leaderID, req.QuotationID)
	})
	if err != nil {
		return nil, err
	}

	if overBudget {
		resolvers, rerr := s.directory.ResolveBranchManagers(ctx, pr.BranchCode)
		if rerr == nil {
			s.notifier.DispatchAll(resolvers, entity.NotificationTypeBudgetException,
				"超预算待裁决",
				fmt.Sprintf("采购申请 %s 选标超预算 %.1f%%，等待裁决", pr.PRNumber, overPercent),
				exception.ID, entity.RelatedTypeBudgetException)
		} else {
			s.logger.Warn("超预算裁决人解析失败", zap.String("pr_id", prID), zap.Error(rerr))
		}
	} else {
		s.notifier.Dispatch(pr.RequestorID, entity.NotificationTypeSupplierSelected,
			"采购申请已选标", fmt.Sprintf("采购申请 %s 已完成选标", pr.PRNumber),
			prID, entity.RelatedTypePurchaseRequest)
	}
	s.notifier.ResolveFor(leaderID, prID, entity.RelatedTypePurchaseRequest)

	return s.repos.PR.FindByID(ctx, prID)
}

// ApproveException 裁决通过：例外单APPROVED，PR → BUDGET_APPROVED，报价落选中
func (s *BudgetService) ApproveException(ctx context.Context, resolverID, exceptionID, comment string) (*entity.BudgetException, error) {
	return s.resolve(ctx, resolverID, exceptionID, comment, false,
		ActionBudgetApprove, entity.BudgetExceptionStatusApproved, entity.ApprovalActionApprove)
}

// RejectException 裁决拒绝（终态），必须填写意见
func (s *BudgetService) RejectException(ctx context.Context, resolverID, exceptionID, comment string) (*entity.BudgetException, error) {
	return s.resolve(ctx, resolverID, exceptionID, comment, true,
		ActionBudgetReject, entity.BudgetExceptionStatusRejected, entity.ApprovalActionReject)
}

// RequestNegotiation 要求重新议价：PR回到QUOTATION_RECEIVED重新选标，
// 原选标记录保留为历史。必须填写意见。
func (s *BudgetService) RequestNegotiation(ctx context.Context, resolverID, exceptionID, comment string) (*entity.BudgetException, error) {
	return s.resolve(ctx, resolverID, exceptionID, comment, true,
		ActionRequestNegotiation, entity.BudgetExceptionStatusNegotiationRequested, entity.ApprovalActionReturn)
}

func (s *BudgetService) resolve(ctx context.Context, resolverID, exceptionID, comment string, commentRequired bool, action Action, exceptionStatus, approvalAction string) (*entity.BudgetException, error) {
	if commentRequired && strings.TrimSpace(comment) == "" {
		return nil, wferr.E(wferr.KindValidation, "必须填写裁决意见").WithID("exception_id", exceptionID)
	}

	ex, err := s.repos.Budget.FindExceptionByID(ctx, exceptionID)
	if err != nil {
		return nil, err
	}
	if ex.Status != entity.BudgetExceptionStatusPending {
		return nil, wferr.E(wferr.KindInvalidTransition,
			"例外单已裁决（当前状态 %s）", ex.Status).WithID("exception_id", exceptionID)
	}

	pr, err := s.repos.PR.FindByID(ctx, ex.PRID)
	if err != nil {
		return nil, err
	}
	target, err := TargetStatus(pr.Status, action)
	if err != nil {
		return nil, err
	}

	resolver, err := s.directory.FindUserByID(ctx, resolverID)
	if err != nil {
		return nil, err
	}
	if resolver.Role != entity.RoleAdmin &&
		(resolver.Role != entity.RoleBranchManager || resolver.BranchCode != pr.BranchCode) {
		return nil, wferr.E(wferr.KindForbidden, "只有该分支机构的分支经理可以裁决超预算").
			WithID("exception_id", exceptionID).WithID("user_id", resolverID)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		// 状态前置条件守卫，并发裁决只允许一个成功
		result := tx.Model(&entity.BudgetException{}).
			Where("id = ? AND status = ?", exceptionID, entity.BudgetExceptionStatusPending).
			Updates(map[string]interface{}{
				"status":      exceptionStatus,
				"resolved_by": resolverID,
				"resolved_at": &now,
				"comment":     comment,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return wferr.E(wferr.KindInvalidTransition, "例外单已被其他人裁决").
				WithID("exception_id", exceptionID)
		}

		if err := repository.TransitionStatus(tx, pr.ID, pr.Status, target, nil); err != nil {
			return err
		}

		if action == ActionBudgetApprove {
			if err := tx.Model(&entity.Quotation{}).
				Where("id = ?", ex.QuotationID).
				Update("status", entity.QuotationStatusSelected).Error; err != nil {
				return err
			}
		}

		approval := &entity.Approval{
			ID:         newID(),
			PRID:       pr.ID,
			ApproverID: resolverID,
			Tier:       entity.ApprovalTierBudget,
			Action:     approvalAction,
			Comment:    comment,
		}
		if err := tx.Create(approval).Error; err != nil {
			return err
		}

		if err := writeAudit(tx, entity.RelatedTypeBudgetException, exceptionID, string(action),
			entity.BudgetExceptionStatusPending, exceptionStatus, resolverID, comment); err != nil {
			return err
		}
		return writeAudit(tx, entity.RelatedTypePurchaseRequest, pr.ID, string(action), pr.Status, target, resolverID, comment)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(pr.RequestorID, entity.NotificationTypeBudgetResolved,
		"超预算裁决结果", fmt.Sprintf("采购申请 %s 的超预算裁决：%s", pr.PRNumber, exceptionStatus),
		pr.ID, entity.RelatedTypePurchaseRequest)
	if action == ActionRequestNegotiation {
		leaders, lerr := s.directory.ResolveBuyerLeaders(ctx)
		if lerr == nil {
			s.notifier.DispatchAll(leaders, entity.NotificationTypeQuotationReady,
				"需重新选标", fmt.Sprintf("采购申请 %s 要求重新议价，请重新选标", pr.PRNumber),
				pr.ID, entity.RelatedTypePurchaseRequest)
		}
	}
	s.notifier.ResolveFor(resolverID, ex.ID, entity.RelatedTypeBudgetException)

	return s.repos.Budget.FindExceptionByID(ctx, exceptionID)
}

// GetException 查询例外单
func (s *BudgetService) GetException(ctx context.Context, exceptionID string) (*entity.BudgetException, error) {
	return s.repos.Budget.FindExceptionByID(ctx, exceptionID)
}
