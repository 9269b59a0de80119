package repository

import (
	"context"
	"errors"

	"github.com/oakline/procure/internal/workflow/entity"
	"github.com/oakline/procure/internal/workflow/wferr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DirectoryLookup 身份目录能力接口：审批路由所需的全部人员/策略查询
type DirectoryLookup interface {
	// ResolveManagerOf 解析申请人的直属上级
	ResolveManagerOf(ctx context.Context, requestorID string) (*entity.User, error)
	// ResolveBranchManagers 解析分支机构的全部分支经理
	ResolveBranchManagers(ctx context.Context, branchCode string) ([]entity.User, error)
	// ResolveBuyerLeaders 解析采购主管池
	ResolveBuyerLeaders(ctx context.Context) ([]entity.User, error)
	// BranchNeedsSecondApproval 分支机构是否需要二级审批，规则缺失或读取失败时按需要处理
	BranchNeedsSecondApproval(ctx context.Context, branchCode string) bool
	// FindUserByID 查找用户
	FindUserByID(ctx context.Context, id string) (*entity.User, error)
}

// DirectoryRepository 基于用户/分支策略表的目录实现
type DirectoryRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewDirectoryRepository(db *gorm.DB, logger *zap.Logger) *DirectoryRepository {
	return &DirectoryRepository{db: db, logger: logger}
}

// FindUserByID 查找用户
func (r *DirectoryRepository) FindUserByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	err := r.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, wferr.E(wferr.KindNotFound, "用户不存在").WithID("user_id", id)
		}
		return nil, err
	}
	return &user, nil
}

// ResolveManagerOf 解析申请人的直属上级
func (r *DirectoryRepository) ResolveManagerOf(ctx context.Context, requestorID string) (*entity.User, error) {
	requestor, err := r.FindUserByID(ctx, requestorID)
	if err != nil {
		return nil, err
	}
	if requestor.ManagerID == nil || *requestor.ManagerID == "" {
		return nil, wferr.E(wferr.KindNoApprover, "申请人未配置直属上级").WithID("requestor_id", requestorID)
	}
	manager, err := r.FindUserByID(ctx, *requestor.ManagerID)
	if err != nil {
		if wferr.IsKind(err, wferr.KindNotFound) {
			return nil, wferr.E(wferr.KindNoApprover, "申请人的直属上级不存在或已停用").
				WithID("requestor_id", requestorID).
				WithID("manager_id", *requestor.ManagerID)
		}
		return nil, err
	}
	return manager, nil
}

// ResolveBranchManagers 解析分支机构的全部分支经理
func (r *DirectoryRepository) ResolveBranchManagers(ctx context.Context, branchCode string) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND branch_code = ? AND active = ?", entity.RoleBranchManager, branchCode, true).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, wferr.E(wferr.KindNoApprover, "分支机构 %s 没有可用的分支经理", branchCode).
			WithID("branch_code", branchCode)
	}
	return users, nil
}

// ResolveBuyerLeaders 解析采购主管池
func (r *DirectoryRepository) ResolveBuyerLeaders(ctx context.Context) ([]entity.User, error) {
	var users []entity.User
	err := r.db.WithContext(ctx).
		Where("role = ? AND active = ?", entity.RoleBuyerLeader, true).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, wferr.E(wferr.KindNoApprover, "没有可用的采购主管")
	}
	return users, nil
}

// BranchNeedsSecondApproval 分支机构是否需要二级审批。
// 规则行缺失或查询出错时一律按"需要"处理（fail-safe），并记日志。
func (r *DirectoryRepository) BranchNeedsSecondApproval(ctx context.Context, branchCode string) bool {
	var rule entity.BranchApprovalRule
	err := r.db.WithContext(ctx).Where("branch_code = ?", branchCode).First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.Info("分支审批规则缺失，默认需要二级审批", zap.String("branch_code", branchCode))
		} else {
			r.logger.Warn("分支审批规则读取失败，默认需要二级审批",
				zap.String("branch_code", branchCode), zap.Error(err))
		}
		return true
	}
	return rule.NeedBranchManagerApproval
}
