package entity

import "time"

// Assignment PR与采购员的分派关系
type Assignment struct {
	ID         string      `json:"id" gorm:"primaryKey;size:32"`
	PRID       string      `json:"pr_id" gorm:"size:32;not null;index"`
	BuyerID    string      `json:"buyer_id" gorm:"size:32;not null;index"`
	AssignedBy string      `json:"assigned_by" gorm:"size:32;not null"`
	Scope      string      `json:"scope" gorm:"size:10;not null"`       // full/partial
	ItemIDs    StringSlice `json:"item_ids" gorm:"type:jsonb"`          // partial时为非空行项ID集合
	Deleted    bool        `json:"-" gorm:"default:false;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Assignment) TableName() string {
	return "wf_assignments"
}

// 分派范围
const (
	AssignScopeFull    = "full"
	AssignScopePartial = "partial"
)
