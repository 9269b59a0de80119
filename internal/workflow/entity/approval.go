package entity

import "time"

// Approval 审批动作记录（人工动作发生时写入，创建后不可变）
type Approval struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	PRID       string `json:"pr_id" gorm:"size:32;not null;index"`
	ApproverID string `json:"approver_id" gorm:"size:32;not null;index"`
	Tier       string `json:"tier" gorm:"size:20;not null"`   // manager/branch_manager/budget
	Action     string `json:"action" gorm:"size:20;not null"` // approve/reject/return
	Comment    string `json:"comment" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
}

func (Approval) TableName() string {
	return "wf_approvals"
}

// 审批动作
const (
	ApprovalActionApprove = "approve"
	ApprovalActionReject  = "reject"
	ApprovalActionReturn  = "return"
)

// 审批层级
const (
	ApprovalTierManager       = "manager"
	ApprovalTierBranchManager = "branch_manager"
	ApprovalTierBudget        = "budget"
)
