package entity

import "time"

// AuditLog 审计日志（每次状态变更的前后快照，随业务事务一并落库）
type AuditLog struct {
	ID         string `json:"id" gorm:"primaryKey;size:32"`
	EntityType string `json:"entity_type" gorm:"size:30;not null;index"` // purchase_request/budget_exception
	EntityID   string `json:"entity_id" gorm:"size:32;not null;index"`
	Action     string `json:"action" gorm:"size:40;not null"`
	FromStatus string `json:"from_status" gorm:"size:32"`
	ToStatus   string `json:"to_status" gorm:"size:32"`
	OperatorID string `json:"operator_id" gorm:"size:32;not null"`
	Detail     string `json:"detail" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "wf_audit_logs"
}
