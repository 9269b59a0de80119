package entity

import "time"

// User 用户目录（身份系统的本地镜像，工作流只读）
type User struct {
	ID             string  `json:"id" gorm:"primaryKey;size:32"`
	Username       string  `json:"username" gorm:"size:50;uniqueIndex;not null"`
	DisplayName    string  `json:"display_name" gorm:"size:100"`
	Role           string  `json:"role" gorm:"size:30;not null;index"` // requestor/manager/branch_manager/buyer_leader/buyer/finance/admin
	ManagerID      *string `json:"manager_id" gorm:"size:32"`          // 直属上级
	BranchCode     string  `json:"branch_code" gorm:"size:20;index"`
	DepartmentCode string  `json:"department_code" gorm:"size:20"`
	Active         bool    `json:"active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "wf_users"
}

// 角色
const (
	RoleRequestor     = "requestor"
	RoleManager       = "manager"
	RoleBranchManager = "branch_manager"
	RoleBuyerLeader   = "buyer_leader"
	RoleBuyer         = "buyer"
	RoleFinance       = "finance"
	RoleAdmin         = "admin"
)

// BranchApprovalRule 分支机构审批策略（缺行视为需要二级审批）
type BranchApprovalRule struct {
	ID                        string `json:"id" gorm:"primaryKey;size:32"`
	BranchCode                string `json:"branch_code" gorm:"size:20;uniqueIndex;not null"`
	NeedBranchManagerApproval bool   `json:"need_branch_manager_approval" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BranchApprovalRule) TableName() string {
	return "wf_branch_approval_rules"
}
