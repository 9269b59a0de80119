package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/repository"
	"github.com/oakline/procure/internal/workflow/wferr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AssignmentService 分派服务：把PR行项整单或按行拆给采购员
type AssignmentService struct {
	db        *gorm.DB
	repos     *repository.Repositories
	directory repository.DirectoryLookup
	notifier  *NotificationService
	logger    *zap.Logger
}

func NewAssignmentService(db *gorm.DB, repos *repository.Repositories, directory repository.DirectoryLookup, notifier *NotificationService, logger *zap.Logger) *AssignmentService {
	return &AssignmentService{db: db, repos: repos, directory: directory, notifier: notifier, logger: logger}
}

// AssignReq 分派入参
type AssignReq struct {
	BuyerID string   `json:"buyer_id" binding:"required"`
	Scope   string   `json:"scope" binding:"required"` // full/partial
	ItemIDs []string `json:"item_ids"`                 // partial时必填
}

// Assign 分派PR给采购员。
// 重叠检查与插入在同一事务内完成；行项全覆盖时PR恰好一次转入ASSIGNED_TO_BUYER。
func (s *AssignmentService) Assign(ctx context.Context, assignerID, prID string, req AssignReq) (*entity.Assignment, error) {
	assigner, err := s.directory.FindUserByID(ctx, assignerID)
	if err != nil {
		return nil, err
	}
	if assigner.Role != entity.RoleBuyerLeader && assigner.Role != entity.RoleAdmin {
		return nil, wferr.E(wferr.KindForbidden, "只有采购主管可以分派采购申请").WithID("user_id", assignerID)
	}

	pr, err := s.repos.PR.FindByID(ctx, prID)
	if err != nil {
		return nil, err
	}
	if _, err := TargetStatus(pr.Status, ActionAssign); err != nil {
		return nil, err
	}

	buyer, err := s.directory.FindUserByID(ctx, req.BuyerID)
	if err != nil {
		return nil, err
	}
	if buyer.Role != entity.RoleBuyer {
		return nil, wferr.E(wferr.KindValidation, "被分派人不是采购员").WithID("buyer_id", req.BuyerID)
	}

	if req.Scope != entity.AssignScopeFull && req.Scope != entity.AssignScopePartial {
		return nil, wferr.E(wferr.KindValidation, "分派范围必须是 full 或 partial")
	}

	// PR行项全集
	itemSet := make(map[string]bool, len(pr.Items))
	for _, item := range pr.Items {
		itemSet[item.ID] = true
	}

	if req.Scope == entity.AssignScopePartial {
		if len(req.ItemIDs) == 0 {
			return nil, wferr.E(wferr.KindValidation, "部分分派必须指定行项").WithID("pr_id", prID)
		}
		for _, id := range req.ItemIDs {
			if !itemSet[id] {
				return nil, wferr.E(wferr.KindValidation, "行项不属于该采购申请").
					WithID("pr_id", prID).WithID("item_id", id)
			}
		}
	}

	assignment := &entity.Assignment{
		ID:         newID(),
		PRID:       prID,
		BuyerID:    req.BuyerID,
		AssignedBy: assignerID,
		Scope:      req.Scope,
	}
	if req.Scope == entity.AssignScopePartial {
		assignment.ItemIDs = entity.StringSlice(req.ItemIDs)
	}

	covered := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 重叠检查必须和插入同事务，防止并发分派抢占同一行项
		var existing []entity.Assignment
		if err := tx.Where("pr_id = ? AND deleted = ?", prID, false).Find(&existing).Error; err != nil {
			return err
		}

		claimed := make(map[string]string) // item_id → buyer_id
		hasFull := false
		for _, a := range existing {
			if a.Scope == entity.AssignScopeFull {
				hasFull = true
				for id := range itemSet {
					claimed[id] = a.BuyerID
				}
				continue
			}
			for _, id := range a.ItemIDs {
				claimed[id] = a.BuyerID
			}
		}

		if req.Scope == entity.AssignScopeFull {
			if len(existing) > 0 {
				first := existing[0]
				return wferr.E(wferr.KindItemsAssigned, "该采购申请已有分派，无法整单分派").
					WithID("pr_id", prID).WithID("buyer_id", first.BuyerID)
			}
		} else {
			var conflicts []string
			conflictBuyer := ""
			for _, id := range req.ItemIDs {
				if owner, ok := claimed[id]; ok {
					conflicts = append(conflicts, id)
					conflictBuyer = owner
				}
			}
			if len(conflicts) > 0 {
				return wferr.E(wferr.KindItemsAssigned,
					"行项已被分派给其他采购员: %s", strings.Join(conflicts, ",")).
					WithID("pr_id", prID).
					WithID("item_ids", strings.Join(conflicts, ",")).
					WithID("buyer_id", conflictBuyer)
			}
		}

		if err := tx.Create(assignment).Error; err != nil {
			return err
		}

		// 覆盖判定：有整单分派，或partial并集等于行项全集
		if req.Scope == entity.AssignScopeFull || hasFull {
			covered = true
		} else {
			for _, id := range req.ItemIDs {
				claimed[id] = req.BuyerID
			}
			covered = len(claimed) == len(itemSet)
		}

		detail := fmt.Sprintf("buyer=%s scope=%s", req.BuyerID, req.Scope)
		if err := writeAudit(tx, entity.RelatedTypePurchaseRequest, prID, string(ActionAssign), pr.Status, pr.Status, assignerID, detail); err != nil {
			return err
		}

		if covered {
			if err := repository.TransitionStatus(tx, prID, entity.PRStatusBuyerLeaderPending, entity.PRStatusAssignedToBuyer, nil); err != nil {
				return err
			}
			return writeAudit(tx, entity.RelatedTypePurchaseRequest, prID, "assign_complete",
				entity.PRStatusBuyerLeaderPending, entity.PRStatusAssignedToBuyer, assignerID, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Dispatch(req.BuyerID, entity.NotificationTypePRAssigned,
		"新分派的采购申请", fmt.Sprintf("采购申请 %s 已分派给您", pr.PRNumber),
		prID, entity.RelatedTypePurchaseRequest)
	if covered {
		s.notifier.ResolveFor(assignerID, prID, entity.RelatedTypePurchaseRequest)
	}

	return assignment, nil
}

// ListByPR 查询PR的有效分派
func (s *AssignmentService) ListByPR(ctx context.Context, prID string) ([]entity.Assignment, error) {
	return s.repos.Assignment.ListActiveByPR(ctx, prID)
}
