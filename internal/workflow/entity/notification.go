package entity

import "time"

// Notification 工作流通知，按 (user_id, related_id, related_type, type) 去重
type Notification struct {
	ID          string `json:"id" gorm:"primaryKey;size:32"`
	UserID      string `json:"user_id" gorm:"size:32;not null;index"`
	Type        string `json:"type" gorm:"size:40;not null"`
	Title       string `json:"title" gorm:"size:200;not null"`
	Content     string `json:"content" gorm:"size:500"`
	RelatedID   string `json:"related_id" gorm:"size:32;not null;index"`
	RelatedType string `json:"related_type" gorm:"size:30;not null"` // purchase_request/budget_exception
	Status      string `json:"status" gorm:"size:20;default:unread"` // unread/read/resolved

	ReadAt     *time.Time `json:"read_at"`
	ResolvedAt *time.Time `json:"resolved_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Notification) TableName() string {
	return "wf_notifications"
}

// 通知状态
const (
	NotificationStatusUnread   = "unread"
	NotificationStatusRead     = "read"
	NotificationStatusResolved = "resolved"
)

// 通知类型
const (
	NotificationTypeApprovalPending   = "approval_pending"   // 待审批
	NotificationTypePRReturned        = "pr_returned"        // 被退回
	NotificationTypePRRejected        = "pr_rejected"        // 被拒绝
	NotificationTypePRNeedInfo        = "pr_need_info"       // 需补充信息
	NotificationTypeAssignmentPending = "assignment_pending" // 待分派
	NotificationTypePRAssigned        = "pr_assigned"        // 已分派给采购员
	NotificationTypeQuotationReady    = "quotation_ready"    // 报价齐备待选标
	NotificationTypeBudgetException   = "budget_exception"   // 超预算待裁决
	NotificationTypeBudgetResolved    = "budget_resolved"    // 超预算已裁决
	NotificationTypeSupplierSelected  = "supplier_selected"  // 已选标
	NotificationTypePaymentDone       = "payment_done"       // 已付款
)

// 通知关联对象类型
const (
	RelatedTypePurchaseRequest = "purchase_request"
	RelatedTypeBudgetException = "budget_exception"
)
