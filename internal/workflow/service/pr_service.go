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

// PRService 采购申请生命周期服务：创建、提交、重提、取消、付款
type PRService struct {
	db        *gorm.DB
	repos     *repository.Repositories
	directory repository.DirectoryLookup
	allocator *SequenceAllocator
	notifier  *NotificationService
	logger    *zap.Logger
}

func NewPRService(db *gorm.DB, repos *repository.Repositories, directory repository.DirectoryLookup, allocator *SequenceAllocator, notifier *NotificationService, logger *zap.Logger) *PRService {
	return &PRService{db: db, repos: repos, directory: directory, allocator: allocator, notifier: notifier, logger: logger}
}

// PRItemInput 行项入参
type PRItemInput struct {
	Description string  `json:"description" binding:"required"`
	Quantity    float64 `json:"quantity" binding:"required"`
	UnitPrice   float64 `json:"unit_price"`
}

// CreatePRReq 创建采购申请入参
type CreatePRReq struct {
	Title       string        `json:"title" binding:"required"`
	TotalAmount *float64      `json:"total_amount"`
	Currency    string        `json:"currency"`
	Items       []PRItemInput `json:"items"`
}

// buildItems 校验行项并按1起连续行号物化，返回行项与金额合计
func buildItems(inputs []PRItemInput) ([]entity.PurchaseRequestItem, float64, error) {
	items := make([]entity.PurchaseRequestItem, 0, len(inputs))
	var sum float64
	for i, in := range inputs {
		if in.Description == "" {
			return nil, 0, wferr.E(wferr.KindValidation, "第%d行缺少描述", i+1)
		}
		if in.Quantity <= 0 {
			return nil, 0, wferr.E(wferr.KindValidation, "第%d行数量必须为正数", i+1)
		}
		if in.UnitPrice < 0 {
			return nil, 0, wferr.E(wferr.KindValidation, "第%d行单价不能为负", i+1)
		}
		amount := in.Quantity * in.UnitPrice
		items = append(items, entity.PurchaseRequestItem{
			ID:          newID(),
			LineNo:      i + 1,
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			Amount:      amount,
		})
		sum += amount
	}
	return items, sum, nil
}

// resolveTotal 行项合计为基准，外部总额仅允许上调
func resolveTotal(itemSum float64, override *float64) float64 {
	if override != nil && *override >= itemSum {
		return *override
	}
	return itemSum
}

// Create 创建草稿PR，分配 {DEPT}-{YYYYMMDD}-{seq4} 编号
func (s *PRService) Create(ctx context.Context, requestorID string, req CreatePRReq) (*entity.PurchaseRequest, error) {
	requestor, err := s.directory.FindUserByID(ctx, requestorID)
	if err != nil {
		return nil, err
	}
	if requestor.DepartmentCode == "" {
		return nil, wferr.E(wferr.KindValidation, "申请人未配置部门编码").WithID("requestor_id", requestorID)
	}

	items, sum, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	number, err := s.allocator.Allocate(ctx, requestor.DepartmentCode, time.Now())
	if err != nil {
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = "CNY"
	}

	pr := &entity.PurchaseRequest{
		ID:             newID(),
		PRNumber:       number,
		Title:          req.Title,
		Status:         entity.PRStatusDraft,
		RequestorID:    requestorID,
		DepartmentCode: requestor.DepartmentCode,
		BranchCode:     requestor.BranchCode,
		TotalAmount:    resolveTotal(sum, req.TotalAmount),
		Currency:       currency,
	}
	for i := range items {
		items[i].PRID = pr.ID
	}
	pr.Items = items

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(pr).Error; err != nil {
			return err
		}
		return writeAudit(tx, entity.RelatedTypePurchaseRequest, pr.ID, "create", "", entity.PRStatusDraft, requestorID, pr.PRNumber)
	})
	if err != nil {
		return nil, err
	}
	return pr, nil
}

// UpdateDraft 编辑草稿/待补充信息的PR（仅这两个状态允许改行项）
func (s *PRService) UpdateDraft(ctx context.Context, requestorID, prID string, req CreatePRReq) (*entity.PurchaseRequest, error) {
	pr, err := s.ownPR(ctx, requestorID, prID)
	if err != nil {
		return nil, err
	}
	if pr.Status != entity.PRStatusDraft && pr.Status != entity.PRStatusNeedMoreInfo {
		return nil, wferr.E(wferr.KindInvalidTransition,
			"状态 %s 不允许编辑行项", pr.Status).WithID("pr_id", prID)
	}

	items, sum, err := buildItems(req.Items)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repos.PR.ReplaceItems(ctx, tx, prID, items); err != nil {
			return err
		}
		updates := map[string]interface{}{
			"total_amount": resolveTotal(sum, req.TotalAmount),
		}
		if req.Title != "" {
			updates["title"] = req.Title
		}
		return tx.Model(&entity.PurchaseRequest{}).Where("id = ?", prID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return s.repos.PR.FindByID(ctx, prID)
}

// Submit 提交送审：DRAFT → MANAGER_PENDING。
// 提交本身不是审批动作，不写审批记录。
func (s *PRService) Submit(ctx context.Context, requestorID, prID string) (*entity.PurchaseRequest, error) {
	pr, err := s.ownPR(ctx, requestorID, prID)
	if err != nil {
		return nil, err
	}
	target, err := TargetStatus(pr.Status, ActionSubmit)
	if err != nil {
		return nil, err
	}
	if len(pr.Items) == 0 {
		return nil, wferr.E(wferr.KindValidation, "至少需要一个行项才能提交").WithID("pr_id", prID)
	}
	manager, err := s.directory.ResolveManagerOf(ctx, requestorID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.TransitionStatus(tx, prID, pr.Status, target, nil); err != nil {
			return err
		}
		return writeAudit(tx, entity.RelatedTypePurchaseRequest, prID, string(ActionSubmit), pr.Status, target, requestorID, "")
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(manager.ID, entity.NotificationTypeApprovalPending,
		"待审批的采购申请", fmt.Sprintf("采购申请 %s 等待您审批", pr.PRNumber),
		prID, entity.RelatedTypePurchaseRequest)
	s.notifier.ResolveFor(requestorID, prID, entity.RelatedTypePurchaseRequest)

	return s.repos.PR.FindByID(ctx, prID)
}

// Resubmit 被退回/待补充信息后重新提交，一律回到一级审批。
// 可携带修订后的行项，总额随之重算。
func (s *PRService) Resubmit(ctx context.Context, requestorID, prID string, req *CreatePRReq) (*entity.PurchaseRequest, error) {
	pr, err := s.ownPR(ctx, requestorID, prID)
	if err != nil {
		return nil, err
	}
	target, err := TargetStatus(pr.Status, ActionResubmit)
	if err != nil {
		return nil, err
	}

	var items []entity.PurchaseRequestItem
	var sum float64
	if req != nil && len(req.Items) > 0 {
		items, sum, err = buildItems(req.Items)
		if err != nil {
			return nil, err
		}
	} else if len(pr.Items) == 0 {
		return nil, wferr.E(wferr.KindValidation, "至少需要一个行项才能提交").WithID("pr_id", prID)
	}

	manager, err := s.directory.ResolveManagerOf(ctx, requestorID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		extra := map[string]interface{}{"notes": ""}
		if items != nil {
			if err := s.repos.PR.ReplaceItems(ctx, tx, prID, items); err != nil {
				return err
			}
			var override *float64
			if req != nil {
				override = req.TotalAmount
			}
			extra["total_amount"] = resolveTotal(sum, override)
		}
		if err := repository.TransitionStatus(tx, prID, pr.Status, target, extra); err != nil {
			return err
		}
		return writeAudit(tx, entity.RelatedTypePurchaseRequest, prID, string(ActionResubmit), pr.Status, target, requestorID, "")
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(manager.ID, entity.NotificationTypeApprovalPending,
		"待审批的采购申请", fmt.Sprintf("采购申请 %s 重新提交，等待您审批", pr.PRNumber),
		prID, entity.RelatedTypePurchaseRequest)
	s.notifier.ResolveFor(requestorID, prID, entity.RelatedTypePurchaseRequest)

	return s.repos.PR.FindByID(ctx, prID)
}

// Cancel 申请人撤销自己的PR（终态）
func (s *PRService) Cancel(ctx context.Context, requestorID, prID, reason string) (*entity.PurchaseRequest, error) {
	pr, err := s.ownPR(ctx, requestorID, prID)
	if err != nil {
		return nil, err
	}
	target, err := TargetStatus(pr.Status, ActionCancel)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		extra := map[string]interface{}{}
		if reason != "" {
			extra["notes"] = reason
		}
		if err := repository.TransitionStatus(tx, prID, pr.Status, target, extra); err != nil {
			return err
		}
		return writeAudit(tx, entity.RelatedTypePurchaseRequest, prID, string(ActionCancel), pr.Status, target, requestorID, reason)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.ResolveFor(requestorID, prID, entity.RelatedTypePurchaseRequest)
	return s.repos.PR.FindByID(ctx, prID)
}

// DeleteDraft 删除草稿（软删，释放其序列号供回填）
func (s *PRService) DeleteDraft(ctx context.Context, requestorID, prID string) error {
	pr, err := s.ownPR(ctx, requestorID, prID)
	if err != nil {
		return err
	}
	if pr.Status != entity.PRStatusDraft {
		return wferr.E(wferr.KindInvalidTransition,
			"仅草稿可删除，当前状态 %s", pr.Status).WithID("pr_id", prID)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&entity.PurchaseRequest{}).
			Where("id = ? AND status = ?", prID, entity.PRStatusDraft).
			Update("deleted", true).Error; err != nil {
			return err
		}
		return writeAudit(tx, entity.RelatedTypePurchaseRequest, prID, "delete", pr.Status, pr.Status, requestorID, pr.PRNumber)
	})
}

// MarkPaymentDone 财务确认付款：BUDGET_APPROVED / SUPPLIER_SELECTED → PAYMENT_DONE
func (s *PRService) MarkPaymentDone(ctx context.Context, userID, prID string) (*entity.PurchaseRequest, error) {
	user, err := s.directory.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role != entity.RoleFinance && user.Role != entity.RoleAdmin {
		return nil, wferr.E(wferr.KindForbidden, "只有财务可以确认付款").WithID("user_id", userID)
	}
	pr, err := s.repos.PR.FindByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	target, err := TargetStatus(pr.Status, ActionMarkPaymentDone)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.TransitionStatus(tx, prID, pr.Status, target, nil); err != nil {
			return err
		}
		return writeAudit(tx, entity.RelatedTypePurchaseRequest, prID, string(ActionMarkPaymentDone), pr.Status, target, userID, "")
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(pr.RequestorID, entity.NotificationTypePaymentDone,
		"采购申请已付款", fmt.Sprintf("采购申请 %s 已完成付款", pr.PRNumber),
		prID, entity.RelatedTypePurchaseRequest)
	s.notifier.ResolveFor(userID, prID, entity.RelatedTypePurchaseRequest)

	return s.repos.PR.FindByID(ctx, prID)
}

// Get 查询PR详情
func (s *PRService) Get(ctx context.Context, prID string) (*entity.PurchaseRequest, error) {
	return s.repos.PR.FindByID(ctx, prID)
}

// PRDetail PR聚合详情
type PRDetail struct {
	PR         *entity.PurchaseRequest    `json:"pr"`
	Approvals  []entity.Approval          `json:"approvals"`
	Assignments []entity.Assignment       `json:"assignments"`
	Selections []entity.SupplierSelection `json:"selections"`
	Exceptions []entity.BudgetException   `json:"exceptions"`
	AuditTrail []entity.AuditLog          `json:"audit_trail"`
}

// GetDetail 查询PR聚合详情（审批轨迹、分派、选标、超预算、审计）
func (s *PRService) GetDetail(ctx context.Context, prID string) (*PRDetail, error) {
	pr, err := s.repos.PR.FindByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	approvals, err := s.repos.Approval.ListByPR(ctx, prID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.repos.Assignment.ListActiveByPR(ctx, prID)
	if err != nil {
		return nil, err
	}
	selections, err := s.repos.Budget.ListSelectionsByPR(ctx, prID)
	if err != nil {
		return nil, err
	}
	exceptions, err := s.repos.Budget.ListExceptionsByPR(ctx, prID)
	if err != nil {
		return nil, err
	}
	trail, err := s.repos.AuditLog.ListByEntity(ctx, entity.RelatedTypePurchaseRequest, prID)
	if err != nil {
		return nil, err
	}
	return &PRDetail{
		PR:          pr,
		Approvals:   approvals,
		Assignments: assignments,
		Selections:  selections,
		Exceptions:  exceptions,
		AuditTrail:  trail,
	}, nil
}

// List 分页查询PR列表
func (s *PRService) List(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseRequest, int64, error) {
	return s.repos.PR.FindAll(ctx, page, pageSize, filters)
}

// PendingFor 按角色返回当前用户的待办PR
func (s *PRService) PendingFor(ctx context.Context, userID string) ([]entity.PurchaseRequest, error) {
	user, err := s.directory.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	switch user.Role {
	case entity.RoleManager:
		return s.repos.PR.FindPendingForManager(ctx, userID)
	case entity.RoleBranchManager:
		return s.repos.PR.FindPendingForBranch(ctx, user.BranchCode)
	case entity.RoleBuyerLeader:
		return s.repos.PR.FindByStatuses(ctx, []string{entity.PRStatusBuyerLeaderPending, entity.PRStatusQuotationReceived, entity.PRStatusBudgetException})
	case entity.RoleBuyer:
		return s.repos.PR.FindPendingForBuyer(ctx, userID)
	case entity.RoleFinance:
		return s.repos.PR.FindByStatuses(ctx, []string{entity.PRStatusBudgetApproved, entity.PRStatusSupplierSelected})
	default:
		return []entity.PurchaseRequest{}, nil
	}
}

// ownPR 取PR并校验调用者是其申请人
func (s *PRService) ownPR(ctx context.Context, requestorID, prID string) (*entity.PurchaseRequest, error) {
	pr, err := s.repos.PR.FindByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	if pr.RequestorID != requestorID {
		return nil, wferr.E(wferr.KindForbidden, "只能操作自己的采购申请").
			WithID("pr_id", prID).WithID("user_id", requestorID)
	}
	return pr, nil
}
