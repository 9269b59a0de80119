package entity

import "time"

// BudgetException 超预算例外单（选标金额超出PR金额时创建）
type BudgetException struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	PRID        string `json:"pr_id" gorm:"size:32;not null;index"`
	QuotationID string `json:"quotation_id" gorm:"size:32;not null"`

	PRAmount       float64 `json:"pr_amount" gorm:"type:decimal(15,2);not null"`
	PurchaseAmount float64 `json:"purchase_amount" gorm:"type:decimal(15,2);not null"`
	OverPercent    float64 `json:"over_percent" gorm:"type:decimal(8,2);not null"`
	Reason         string  `json:"reason" gorm:"size:500;not null"` // 超预算理由

	Status     string     `json:"status" gorm:"size:30;default:pending"` // pending/approved/rejected/negotiation_requested
	ResolvedBy *string    `json:"resolved_by" gorm:"size:32"`
	ResolvedAt *time.Time `json:"resolved_at"`
	Comment    string     `json:"comment" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (BudgetException) TableName() string {
	return "wf_budget_exceptions"
}

// 超预算例外状态
const (
	BudgetExceptionStatusPending              = "pending"
	BudgetExceptionStatusApproved             = "approved"
	BudgetExceptionStatusRejected             = "rejected"
	BudgetExceptionStatusNegotiationRequested = "negotiation_requested"
)

// SupplierSelection 选标记录（一份报价最多被选中一次）
type SupplierSelection struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	PRID        string `json:"pr_id" gorm:"size:32;not null;index"`
	QuotationID string `json:"quotation_id" gorm:"size:32;not null;uniqueIndex"`
	SelectedBy  string `json:"selected_by" gorm:"size:32;not null"`

	Reason           string `json:"reason" gorm:"size:500;not null"`
	OverBudgetReason string `json:"over_budget_reason" gorm:"size:500"` // 超预算时必填

	CreatedAt time.Time `json:"created_at"`
}

func (SupplierSelection) TableName() string {
	return "wf_supplier_selections"
}
