package entity

import "time"

// RFQ 询价单（一张PR同一时间只有一张进行中的询价单）
type RFQ struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	PRID      string `json:"pr_id" gorm:"size:32;not null;index"`
	CreatedBy string `json:"created_by" gorm:"size:32;not null"` // 发起询价的采购员
	Status    string `json:"status" gorm:"size:20;default:open"` // open/closed
	Notes     string `json:"notes" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Quotations []Quotation `json:"quotations,omitempty" gorm:"foreignKey:RFQID"`
}

func (RFQ) TableName() string {
	return "wf_rfqs"
}

// 询价单状态
const (
	RFQStatusOpen   = "open"
	RFQStatusClosed = "closed"
)

// Quotation 供应商报价
type Quotation struct {
	ID           string `json:"id" gorm:"primaryKey;size:32"`
	RFQID        string `json:"rfq_id" gorm:"size:32;not null;index"`
	SupplierID   string `json:"supplier_id" gorm:"size:32;not null"`
	SupplierName string `json:"supplier_name" gorm:"size:200"`

	TotalAmount  float64 `json:"total_amount" gorm:"type:decimal(15,2);not null"`
	Currency     string  `json:"currency" gorm:"size:10;default:CNY"`
	LeadTimeDays *int    `json:"lead_time_days"` // 交期（天），缺失按最差处理
	PaymentTerms string  `json:"payment_terms" gorm:"size:100"`
	Warranty     string  `json:"warranty" gorm:"size:200"`
	ValidUntil   *time.Time `json:"valid_until"`

	Status        string   `json:"status" gorm:"size:20;default:pending"` // pending/valid/invalid/selected
	Score         *float64 `json:"score" gorm:"type:decimal(6,2)"`        // 0-100综合推荐分
	IsRecommended bool     `json:"is_recommended" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Items []QuotationItem `json:"items,omitempty" gorm:"foreignKey:QuotationID"`
}

func (Quotation) TableName() string {
	return "wf_quotations"
}

// 报价状态
const (
	QuotationStatusPending  = "pending"
	QuotationStatusValid    = "valid"
	QuotationStatusInvalid  = "invalid"
	QuotationStatusSelected = "selected"
)

// QuotationItem 报价行项（镜像PR行项）
type QuotationItem struct {
	ID          string  `json:"id" gorm:"primaryKey;size:32"`
	QuotationID string  `json:"quotation_id" gorm:"size:32;not null;index"`
	PRItemID    string  `json:"pr_item_id" gorm:"size:32;not null"`
	Description string  `json:"description" gorm:"size:500"`
	Quantity    float64 `json:"quantity" gorm:"type:decimal(12,2);not null"`
	UnitPrice   float64 `json:"unit_price" gorm:"type:decimal(12,4);not null"`
	Amount      float64 `json:"amount" gorm:"type:decimal(15,2);not null"`

	CreatedAt time.Time `json:"created_at"`
}

func (QuotationItem) TableName() string {
	return "wf_quotation_items"
}
