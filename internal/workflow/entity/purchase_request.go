package entity

import "time"

// PurchaseRequest 采购申请单
type PurchaseRequest struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	PRNumber string `json:"pr_number" gorm:"size:32;uniqueIndex;not null"` // {DEPT}-{YYYYMMDD}-{seq4}
	Title    string `json:"title" gorm:"size:200;not null"`
	Status   string `json:"status" gorm:"size:32;default:draft;index"`

	// 归属
	RequestorID    string `json:"requestor_id" gorm:"size:32;not null;index"`
	DepartmentCode string `json:"department_code" gorm:"size:20;not null;index"`
	BranchCode     string `json:"branch_code" gorm:"size:20;not null"`

	// 金额
	TotalAmount float64 `json:"total_amount" gorm:"type:decimal(15,2);not null"`
	Currency    string  `json:"currency" gorm:"size:10;default:CNY"`

	// 退回/拒绝原因等备注
	Notes string `json:"notes" gorm:"type:text"`

	Deleted   bool      `json:"-" gorm:"default:false;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Items []PurchaseRequestItem `json:"items,omitempty" gorm:"foreignKey:PRID"`
}

func (PurchaseRequest) TableName() string {
	return "wf_purchase_requests"
}

// PR状态
const (
	PRStatusDraft                 = "draft"
	PRStatusManagerPending        = "manager_pending"
	PRStatusManagerRejected       = "manager_rejected"
	PRStatusManagerReturned       = "manager_returned"
	PRStatusBranchManagerPending  = "branch_manager_pending"
	PRStatusBranchManagerRejected = "branch_manager_rejected"
	PRStatusBranchManagerReturned = "branch_manager_returned"
	PRStatusBuyerLeaderPending    = "buyer_leader_pending"
	PRStatusAssignedToBuyer       = "assigned_to_buyer"
	PRStatusRFQInProgress         = "rfq_in_progress"
	PRStatusQuotationReceived     = "quotation_received"
	PRStatusSupplierSelected      = "supplier_selected"
	PRStatusBudgetException       = "budget_exception"
	PRStatusBudgetApproved        = "budget_approved"
	PRStatusBudgetRejected        = "budget_rejected"
	PRStatusPaymentDone           = "payment_done"
	PRStatusCancelled             = "cancelled"
	PRStatusNeedMoreInfo          = "need_more_info"
)

// AllPRStatuses 全部PR状态（用于遍历校验）
var AllPRStatuses = []string{
	PRStatusDraft,
	PRStatusManagerPending,
	PRStatusManagerRejected,
	PRStatusManagerReturned,
	PRStatusBranchManagerPending,
	PRStatusBranchManagerRejected,
	PRStatusBranchManagerReturned,
	PRStatusBuyerLeaderPending,
	PRStatusAssignedToBuyer,
	PRStatusRFQInProgress,
	PRStatusQuotationReceived,
	PRStatusSupplierSelected,
	PRStatusBudgetException,
	PRStatusBudgetApproved,
	PRStatusBudgetRejected,
	PRStatusPaymentDone,
	PRStatusCancelled,
	PRStatusNeedMoreInfo,
}

// TerminalPRStatuses 终态集合
var TerminalPRStatuses = map[string]bool{
	PRStatusManagerRejected:       true,
	PRStatusBranchManagerRejected: true,
	PRStatusBudgetRejected:        true,
	PRStatusPaymentDone:           true,
	PRStatusCancelled:             true,
}

// PurchaseRequestItem 采购申请行项
type PurchaseRequestItem struct {
	ID          string  `json:"id" gorm:"primaryKey;size:32"`
	PRID        string  `json:"pr_id" gorm:"size:32;not null;index"`
	LineNo      int     `json:"line_no" gorm:"not null"` // 单内唯一，从1连续编号
	Description string  `json:"description" gorm:"size:500;not null"`
	Quantity    float64 `json:"quantity" gorm:"type:decimal(12,2);not null"`
	UnitPrice   float64 `json:"unit_price" gorm:"type:decimal(12,4);not null"`
	Amount      float64 `json:"amount" gorm:"type:decimal(15,2);not null"` // quantity × unit_price

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PurchaseRequestItem) TableName() string {
	return "wf_pr_items"
}
