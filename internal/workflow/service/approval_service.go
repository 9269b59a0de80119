package service

import (
	"context"
	"fmt"

	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/repository"
	"github.com/oakline/procure/internal/workflow/wferr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ApprovalService 审批服务：一级（直属上级）与二级（分支经理）审批动作
type ApprovalService struct {
	db        *gorm.DB
	repos     *repository.Repositories
	directory repository.DirectoryLookup
	notifier  *NotificationService
	logger    *zap.Logger
}

func NewApprovalService(db *gorm.DB, repos *repository.Repositories, directory repository.DirectoryLookup, notifier *NotificationService, logger *zap.Logger) *ApprovalService {
	return &ApprovalService{db: db, repos: repos, directory: directory, notifier: notifier, logger: logger}
}

// ManagerApprove 一级审批通过。
// 按分支策略决定去向：需要二级审批→BRANCH_MANAGER_PENDING，否则直达BUYER_LEADER_PENDING。
func (s *ApprovalService) ManagerApprove(ctx context.Context, approverID, prID, comment string) (*entity.PurchaseRequest, error) {
	pr, err := s.repos.PR.FindByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	target, err := TargetStatus(pr.Status, ActionManagerApprove)
	if err != nil {
		return nil, err
	}
	if err := s.managerGuard(ctx, approverID, pr); err != nil {
		return nil, err
	}

	// 动态去向：分支策略关闭二级审批时跳过分支经理
	var nextApprovers []entity.User
	if s.directory.BranchNeedsSecondApproval(ctx, pr.BranchCode) {
		nextApprovers, err = s.directory.ResolveBranchManagers(ctx, pr.BranchCode)
	} else {
		target = entity.PRStatusBuyerLeaderPending
		nextApprovers, err = s.directory.ResolveBuyerLeaders(ctx)
	}
	if err != nil {
		return nil, err
	}

	if err := s.applyDecision(ctx, pr, ActionManagerApprove, target, approverID,
		entity.ApprovalTierManager, entity.ApprovalActionApprove, comment, false); err != nil {
		return nil, err
	}

	notifType := entity.NotificationTypeApprovalPending
	title := "待审批的采购申请"
	if target == entity.PRStatusBuyerLeaderPending {
		notifType = entity.NotificationTypeAssignmentPending
		title = "待分派的采购申请"
	}
	s.notifier.DispatchAll(nextApprovers, notifType, title,
		fmt.Sprintf("采购申请 %s 等待处理", pr.PRNumber), prID, entity.RelatedTypePurchaseRequest)
	s.notifier.ResolveFor(approverID, prID, entity.RelatedTypePurchaseRequest)

	return s.repos.PR.FindByID(ctx, prID)
}

// ManagerReject 一级审批拒绝（终态），必须填写意见
func (s *ApprovalService) ManagerReject(ctx context.Context, approverID, prID, comment string) (*entity.PurchaseRequest, error) {
	return s.managerDecide(ctx, approverID, prID, comment, ActionManagerReject, entity.ApprovalActionReject,
		entity.NotificationTypePRRejected, "采购申请被拒绝")
}

// ManagerReturn 一级审批退回修改，必须填写意见
func (s *ApprovalService) ManagerReturn(ctx context.Context, approverID, prID, comment string) (*entity.PurchaseRequest, error) {
	return s.managerDecide(ctx, approverID, prID, comment, ActionManagerReturn, entity.ApprovalActionReturn,
		entity.NotificationTypePRReturned, "采购申请被退回")
}

func (s *ApprovalService) managerDecide(ctx context.Context, approverID, prID, comment string, action Action, approvalAction, notifType, title string) (*entity.PurchaseRequest, error) {
	if comment == "" {
		return nil, wferr.E(wferr.KindValidation, "必须填写审批意见").WithID("pr_id", prID)
	}
	pr, err := s.repos.PR.FindByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	target, err := TargetStatus(pr.Status, action)
	if err != nil {
		return nil, err
	}
	if err := s.managerGuard(ctx, approverID, pr); err != nil {
		return nil, err
	}

	if err := s.applyDecision(ctx, pr, action, target, approverID,
		entity.ApprovalTierManager, approvalAction, comment, true); err != nil {
		return nil, err
	}

	s.notifier.Dispatch(pr.RequestorID, notifType, title,
		fmt.Sprintf("采购申请 %s：%s", pr.PRNumber, comment), prID, entity.RelatedTypePurchaseRequest)
	s.notifier.ResolveFor(approverID, prID, entity.RelatedTypePurchaseRequest)

	return s.repos.PR.FindByID(ctx, prID)
}

// RequestMoreInfo 一级审批人要求申请人补充信息（非审批决定，不写审批记录）
func (s *ApprovalService) RequestMoreInfo(ctx context.Context, approverID, prID, comment string) (*entity.PurchaseRequest, error) {
	if comment == "" {
		return nil, wferr.E(wferr.KindValidation, "必须说明需要补充的信息").WithID("pr_id", prID)
	}
	pr, err := s.repos.PR.FindByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	target, err := TargetStatus(pr.Status, ActionRequestInfo)
	if err != nil {
		return nil, err
	}
	if err := s.managerGuard(ctx, approverID, pr); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repository.TransitionStatus(tx, pr.ID, pr.Status, target,
			map[string]interface{}{"notes": comment}); err != nil {
			return err
		}
		return writeAudit(tx, entity.RelatedTypePurchaseRequest, pr.ID, string(ActionRequestInfo), pr.Status, target, approverID, comment)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(pr.RequestorID, entity.NotificationTypePRNeedInfo,
		"采购申请需补充信息", fmt.Sprintf("采购申请 %s：%s", pr.PRNumber, comment),
		prID, entity.RelatedTypePurchaseRequest)
	s.notifier.ResolveFor(approverID, prID, entity.RelatedTypePurchaseRequest)

	return s.repos.PR.FindByID(ctx, prID)
}

// BranchManagerApprove 二级审批通过 → BUYER_LEADER_PENDING
func (s *ApprovalService) BranchManagerApprove(ctx context.Context, approverID, prID, comment string) (*entity.PurchaseRequest, error) {
	pr, err := s.repos.PR.FindByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	target, err := TargetStatus(pr.Status, ActionBranchManagerApprove)
	if err != nil {
		return nil, err
	}
	if err := s.branchGuard(ctx, approverID, pr); err != nil {
		return nil, err
	}
	leaders, err := s.directory.ResolveBuyerLeaders(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.applyDecision(ctx, pr, ActionBranchManagerApprove, target, approverID,
		entity.ApprovalTierBranchManager, entity.ApprovalActionApprove, comment, false); err != nil {
		return nil, err
	}

	s.notifier.DispatchAll(leaders, entity.NotificationTypeAssignmentPending,
		"待分派的采购申请", fmt.Sprintf("采购申请 %s 等待分派采购员", pr.PRNumber),
		prID, entity.RelatedTypePurchaseRequest)
	s.notifier.ResolveFor(approverID, prID, entity.RelatedTypePurchaseRequest)

	return s.repos.PR.FindByID(ctx, prID)
}

// BranchManagerReject 二级审批拒绝（终态），必须填写意见
func (s *ApprovalService) BranchManagerReject(ctx context.Context, approverID, prID, comment string) (*entity.PurchaseRequest, error) {
	return s.branchDecide(ctx, approverID, prID, comment, ActionBranchManagerReject, entity.ApprovalActionReject,
		entity.NotificationTypePRRejected, "采购申请被拒绝")
}

// BranchManagerReturn 二级审批退回修改，必须填写意见
func (s *ApprovalService) BranchManagerReturn(ctx context.Context, approverID, prID, comment string) (*entity.PurchaseRequest, error) {
	return s.branchDecide(ctx, approverID, prID, comment, ActionBranchManagerReturn, entity.ApprovalActionReturn,
		entity.NotificationTypePRReturned, "采购申请被退回")
}

func (s *ApprovalService) branchDecide(ctx context.Context, approverID, prID, comment string, action Action, approvalAction, notifType, title string) (*entity.PurchaseRequest, error) {
	if comment == "" {
		return nil, wferr.E(wferr.KindValidation, "必须填写审批意见").WithID("pr_id", prID)
	}
	pr, err := s.repos.PR.FindByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	target, err := TargetStatus(pr.Status, action)
	if err != nil {
		return nil, err
	}
	if err := s.branchGuard(ctx, approverID, pr); err != nil {
		return nil, err
	}

	if err := s.applyDecision(ctx, pr, action, target, approverID,
		entity.ApprovalTierBranchManager, approvalAction, comment, true); err != nil {
		return nil, err
	}

	s.notifier.Dispatch(pr.RequestorID, notifType, title,
		fmt.Sprintf("采购申请 %s：%s", pr.PRNumber, comment), prID, entity.RelatedTypePurchaseRequest)
	s.notifier.ResolveFor(approverID, prID, entity.RelatedTypePurchaseRequest)

	return s.repos.PR.FindByID(ctx, prID)
}

// applyDecision 事务内完成守卫状态变更 + 审批记录 + 审计行
func (s *ApprovalService) applyDecision(ctx context.Context, pr *entity.PurchaseRequest, action Action, target, approverID, tier, approvalAction, comment string, storeNotes bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var extra map[string]interface{}
		if storeNotes {
			extra = map[string]interface{}{"notes": comment}
		}
		if err := repository.TransitionStatus(tx, pr.ID, pr.Status, target, extra); err != nil {
			return err
		}
		approval := &entity.Approval{
			ID:         newID(),
			PRID:       pr.ID,
			ApproverID: approverID,
			Tier:       tier,
			Action:     approvalAction,
			Comment:    comment,
		}
		if err := tx.Create(approval).Error; err != nil {
			return err
		}
		return writeAudit(tx, entity.RelatedTypePurchaseRequest, pr.ID, string(action), pr.Status, target, approverID, comment)
	})
}

// managerGuard 调用者必须恰好是申请人配置的直属上级
func (s *ApprovalService) managerGuard(ctx context.Context, approverID string, pr *entity.PurchaseRequest) error {
	manager, err := s.directory.ResolveManagerOf(ctx, pr.RequestorID)
	if err != nil {
		return err
	}
	if manager.ID != approverID {
		return wferr.E(wferr.KindForbidden, "只有申请人的直属上级可以执行一级审批").
			WithID("pr_id", pr.ID).WithID("user_id", approverID)
	}
	return nil
}

// branchGuard 调用者必须是PR所在分支机构的分支经理
func (s *ApprovalService) branchGuard(ctx context.Context, approverID string, pr *entity.PurchaseRequest) error {
	user, err := s.directory.FindUserByID(ctx, approverID)
	if err != nil {
		return err
	}
	if user.Role != entity.RoleBranchManager || user.BranchCode != pr.BranchCode {
		return wferr.E(wferr.KindForbidden, "只有该分支机构的分支经理可以执行二级审批").
			WithID("pr_id", pr.ID).WithID("user_id", approverID)
	}
	return nil
}
